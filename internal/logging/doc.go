// Package logging provides structured logging for taskbridge.
//
// It wraps Go's log/slog with a JSON handler and adds context propagation
// for the identifiers that matter when debugging a bridge: the conversation
// a line belongs to and the component that wrote it.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/path/to/logdir", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.WithComponent("auth").Debug("attached bearer token", "len", len(token))
//	logger.WithConversation(id).Info("conversation created")
//
// When no directory is configured, [NewStderrLogger] writes the same JSON
// lines to stderr. [NopLogger] discards everything and is what components
// default to when no logger option is given.
//
// # Secrets
//
// Never log bearer tokens or refresh tokens. Log their length instead.
package logging
