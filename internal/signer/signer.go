// Package signer computes HMAC-SHA256 request signatures for the two venue
// auth modes: signed REST requests and the WebSocket authentication op.
//
// Both signing functions write a hex-encoded tag into a caller-owned 64-byte
// slot rather than returning it; building the message, the HMAC state and
// the hex encoding still allocate on each call.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// HexLen is the length of a hex-encoded SHA-256 HMAC tag.
const HexLen = 64

// Signer holds the decoded API secret used to key every HMAC.
type Signer struct {
	secret []byte
}

// New creates a Signer from the raw (non-base64) API secret string.
func New(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// SignRequest signs a REST request as ts ∥ apiKey ∥ recvWindow ∥ body and
// writes the hex-encoded tag into out. Matches the venue's documented
// X-BAPI-SIGN construction.
func (s *Signer) SignRequest(ts uint64, apiKey string, recvWindow uint64, body []byte, out *[HexLen]byte) {
	msg := make([]byte, 0, 32+len(apiKey)+16+len(body))
	msg = strconv.AppendUint(msg, ts, 10)
	msg = append(msg, apiKey...)
	msg = strconv.AppendUint(msg, recvWindow, 10)
	msg = append(msg, body...)
	s.sign(msg, out)
}

// SignWSAuth signs the WebSocket auth challenge as "GET/realtime" ∥
// expiresMs and writes the hex-encoded tag into out.
func (s *Signer) SignWSAuth(expiresMs uint64, out *[HexLen]byte) {
	msg := make([]byte, 0, 13+16)
	msg = append(msg, "GET/realtime"...)
	msg = strconv.AppendUint(msg, expiresMs, 10)
	s.sign(msg, out)
}

func (s *Signer) sign(msg []byte, out *[HexLen]byte) {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(msg)
	sum := mac.Sum(nil)
	hexBytes := common.Bytes2Hex(sum)
	copy(out[:], hexBytes)
}
