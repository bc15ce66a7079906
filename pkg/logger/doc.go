// Package logger builds the *slog.Logger used across ssokit components.
//
// New assembles a text or JSON handler from functional options and wraps it in
// a handler that injects attributes pulled from context.Context on every
// record and replaces credential values (see IsSecret) with Redacted. Attribute helpers keep key names consistent between packages; the
// helpers return an empty slog.Attr for nil values, so callers can pass
// optional data without nil checks.
//
// # Usage
//
//	log := logger.New(logger.WithEnvironment(environment.Production, "reports-app"))
//	log.Info("session restored",
//	    logger.Component("session"),
//	    logger.UserID(id),
//	    logger.State("authenticated"),
//	)
//
// Redaction is keyed on attribute names only. Tokens embedded in messages or
// under other keys are logged as is.
package logger
