package engine

import (
	"crypto/tls"
	"fmt"
	"net"

	"hftmaker/internal/config"
	"hftmaker/internal/transport"
	"hftmaker/internal/wsclient"
	"hftmaker/pkg/types"
)

// session bundles one venue WebSocket connection's transport pipe, protocol
// state machine, and the epoll registration token the hot loop dispatches
// events by.
type session struct {
	ws   *wsclient.Session
	pipe *transport.Pipe
	role types.SessionRole
	fd   int
}

// dialSession opens a TLS connection to ep and wraps it in a wsclient
// session for role. The dial is the one blocking call in the engine's
// startup sequence; every method on the returned session afterward is
// non-blocking.
func dialSession(ep config.Endpoint, role types.SessionRole) (*session, error) {
	host, _, err := net.SplitHostPort(ep.Host)
	if err != nil {
		host = ep.Host
		ep.Host = net.JoinHostPort(ep.Host, "443")
	}

	pipe, err := transport.Dial(ep.Host, host, &tls.Config{})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", ep.Host, err)
	}

	fd, err := pipe.FD()
	if err != nil {
		pipe.Close()
		return nil, fmt.Errorf("fd for %s: %w", ep.Host, err)
	}

	return &session{
		ws:   wsclient.New(pipe, role, host, ep.Path),
		pipe: pipe,
		role: role,
		fd:   fd,
	}, nil
}

func (s *session) close() {
	s.pipe.Close()
}
