// Package logging configures the application's structured loggers and holds
// the standardized attribute vocabulary used across components. All packages
// log through *slog.Logger values constructed here; none touch the slog
// default logger directly.
package logging
