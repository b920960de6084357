// Package logger provides structured logging for authkit built on zerolog.
//
// Every authkit component logs through a component-tagged Logger so that
// transport diagnostics, auth flow transitions, and configuration loading
// can be filtered by the "component" field.
//
//	log := logger.NewDefault("authkit")
//	log.WithComponent("httpclient").Info("request completed",
//	    logger.Fields(logger.FieldStatus, 200))
package logger
