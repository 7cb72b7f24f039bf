// Package logging provides structured logging utilities for zoombulk.
//
// All packages log through log/slog. This package builds the process logger
// from configuration and centralizes attribute naming so that log lines from
// the token manager, the identity index and the bulk dispatcher can be
// correlated.
//
// # Usage Patterns
//
//	logger := logging.WithOperation(slog.Default(), "bulk.create")
//	logger.Info("row dispatched",
//	    logging.Row(3),
//	    logging.UserHash(hostEmail))
//
// # Security Considerations
//
//   - Host emails are hashed to prevent PII leakage while allowing correlation
//   - Tokens are never logged directly, only SanitizeToken output
package logging
