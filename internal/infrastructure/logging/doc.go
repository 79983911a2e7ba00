// Package logging provides structured logging for Planter Core.
//
// It wraps log/slog so every entry carries the service name and build
// version, with JSON output for the appliance and text output for a bench.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("pump finished", "pump", 1, "duration", d)
package logging
