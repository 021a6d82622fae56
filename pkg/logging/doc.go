// Package logging provides structured logging configuration for reqaudit.
//
// This package wraps log/slog so the audit sinks, the CLI and the HTTP
// adapters log the same way. It supports configurable levels, text or JSON
// output, an optional log file and optional shipping to Grafana Loki.
//
// # Usage
//
//	logger, closeFn, err := logging.Setup(logging.Config{
//	    Level:  logging.LevelInfo,
//	    Format: logging.FormatJSON,
//	})
//	defer closeFn()
//
//	logger.Info("listening", "addr", ":8080")
//
// # Integration
//
// Components accept a *slog.Logger in their constructor or via an option.
// If no logger is provided, they use logging.Nop().
package logging
