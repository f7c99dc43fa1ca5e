// Package logging provides the structured logging used throughout hostconfd.
//
// It is a thin layer over log/slog. Every call names the subsystem that
// produced it, which becomes the "subsystem" attribute of the record:
//
//	logging.Info("Bootstrap", "Loaded configuration from %s", path)
//	logging.Error("dns", err, "Rebuild pass %s failed", passID)
//
// # Output formats
//
//   - text: slog.TextHandler, the default for interactive use
//   - json: slog.JSONHandler, one object per line
//   - journal: records are sent to systemd-journald with attributes as
//     journal fields (SUBSYSTEM, ERROR, ...); falls back to text when
//     journald is not reachable
//
// Initialization:
//
//	logging.Init(logging.FormatJournal, logging.LevelInfo, os.Stderr)
//
// The package is safe for concurrent use.
package logging
