// Package logger builds configured log/slog loggers.
//
// Production defaults are JSON output at INFO level; WithDebug switches to
// human-readable text at debug level. Flow components log provider
// diagnostics at debug level only, so a production logger stays quiet about
// protocol details unless debugging is explicitly enabled.
//
//	log := logger.New(
//	    logger.WithAttr(slog.String("service", "cnoauth")),
//	)
package logger
