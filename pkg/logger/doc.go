// Package logger provides structured logging capabilities for pulseguard.
//
// This package offers a simple yet powerful logging interface that supports structured
// fields, multiple log levels, and contextual logging for better observability and debugging.
//
// # Logger Interface
//
// The Logger interface defines the contract for all logging implementations:
//
//	type Logger interface {
//	    Debug(msg string, fields ...interface{})
//	    Info(msg string, fields ...interface{})
//	    Warn(msg string, fields ...interface{})
//	    Error(msg string, fields ...interface{})
//	    SetLevel(level string)
//	    WithField(key string, value interface{}) Logger
//	    WithFields(fields map[string]interface{}) Logger
//	    With(fields ...Field) Logger
//	}
//
// # Log Levels
//
// Supported log levels in order of severity:
//   - DEBUG: Detailed information for debugging
//   - INFO: General informational messages
//   - WARN: Warning messages for potentially harmful situations
//   - ERROR: Error messages for serious problems
//
// # Structured Logging
//
// All log methods accept structured fields as alternating key/value pairs:
//
//	logger.Info("Processing request",
//	    "user_id", "123",
//	    "action", "create_order",
//	    "duration_ms", 145,
//	)
//
// # Contextual Logging
//
// Create child loggers with persistent fields:
//
//	requestLogger := logger.With(
//	    logger.Field{Key: "request_id", Value: "abc-123"},
//	    logger.Field{Key: "user_id", Value: "456"},
//	)
//
//	// All logs from requestLogger will include request_id and user_id
//	requestLogger.Info("Starting processing")
//	requestLogger.Info("Processing complete", "items_processed", 10)
//
// # Simple Logger Implementation
//
// The package provides SimpleLogger:
//   - Text lines written through the standard log package, which adds the
//     timestamp; there is no JSON output
//   - Fields rendered as key=value
//   - Minimum level set with SetLevel
//
// # Configuration
//
// GetLogLevel reads the LOG_LEVEL environment variable (debug, info, warn,
// error). No other environment variable is read by this package.
//
// # Best Practices
//
//   - Use appropriate log levels to control verbosity
//   - Include relevant context through structured fields
//   - Avoid logging sensitive information (passwords, tokens, PII)
//   - Use child loggers for request-scoped logging
//   - Keep log messages concise and actionable
package logger