package refbase

import "log/slog"

// logger is the package-wide logger used by default Base hooks and by
// contract violation reports.
var logger *slog.Logger = slog.Default()

// SetLogger overrides the package logger.
//
// If not set, slog.Default() is used.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}

	logger = l
}
