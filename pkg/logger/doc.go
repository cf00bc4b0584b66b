// Package logger builds the structured slog logger shared by every component:
// text output in development, JSON in production.
package logger
