// Command hftmaker runs a single-process, low-latency cross-venue market
// maker for one linear-futures symbol.
//
// Architecture:
//
//	main.go                  — entry point: loads config, starts the engine, waits for SIGINT/SIGTERM
//	internal/engine          — two-thread orchestrator: one hot epoll loop, one cold logging thread
//	internal/strategy        — the on_tick decision function: spread sizing, requote gating, inventory close
//	internal/book            — fixed-depth L2 order book, updated in place
//	internal/parser          — streaming JSON parse of depth/top-of-book payloads straight into the book
//	internal/wsclient        — per-session WebSocket handshake/framing state machine
//	internal/wsframe         — hand-rolled RFC 6455 text-frame encode/decode
//	internal/transport       — non-blocking TLS byte pipe over a raw TCP socket
//	internal/serialize       — venue wire message construction
//	internal/signer          — HMAC-SHA256 request/auth signing
//	internal/restclient      — the one synchronous REST call: startup cancel-all
//	internal/risk            — hot-loop latency budget and venue error-code dispatch
//	internal/logring         — the SPSC ring carrying log records off the hot thread
//	internal/ioloop          — epoll wrapper and CPU core pinning
//
// The engine never reconnects mid-run and never retries past its own
// cold-start sequence — see spec.md §1 Non-goals.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"hftmaker/internal/config"
	"hftmaker/internal/engine"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("HFT_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng := engine.New(cfg, logger)
	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("hftmaker started", "symbol", cfg.Symbol, "dev_mode", cfg.Risk.DevMode, "minimal_log", cfg.Logging.Minimal)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
