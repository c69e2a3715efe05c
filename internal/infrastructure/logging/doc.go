// Package logging provides structured logging for intercom-core.
//
// This package wraps Go's standard log/slog package to provide consistent,
// structured logging across the daemon. The helios client library itself
// never logs; it returns structured outcomes and errors, and callers here
// decide what to record.
//
// # Configuration
//
// Logging is configured via the LoggingConfig in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8089)
//	logger.Error("device unreachable", "error", err)
//
// Never log secrets: the device password and JWT secret must not appear in
// log output at any level.
package logging
