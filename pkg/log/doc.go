// Package log provides structured flight event logging.
//
// This package defines the Logger interface and Event types for
// capturing everything that crosses the drone link: commands sent,
// acknowledgments, telemetry datagrams, device state changes and
// errors. It is separate from operational logging (slog) - flight
// capture provides a complete machine-readable trace of a flight
// session for post-flight analysis and incident review.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	cfg.FlightLog = log.NewSlogAdapter(slog.Default())
//
//	// For analysis: write to binary file
//	cfg.FlightLog, _ = log.NewFileLogger("flight-2026-08-24.flog")
//
//	// Both: use MultiLogger
//	cfg.FlightLog = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys,
// conventionally with a .flog extension. The flock-log CLI tool
// provides viewing, filtering, and statistics.
package log
