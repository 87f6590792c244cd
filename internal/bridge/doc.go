// Package bridge turns a conversation's push-based event stream into an
// ordered, pull-based Session.
//
// A [Bridge] asks a [ConversationManager] to start a conversation and wraps
// the returned [Conversation] handle in a [Session]. Every session begins with
// exactly one synthetic session_configured event (id ""), built from the
// manager's configuration payload, followed by the conversation's own events
// in the order it emitted them.
//
// A single producer goroutine per session forwards stream results into a
// buffered channel that already holds the seed event, so the seed is always
// delivered first. The stream ending (an error matching
// [protocol.ErrStreamClosed]) is reported as end-of-stream rather than as an
// error.
//
// The Bridge uses narrow interfaces so that the concrete engine stays
// encapsulated. Tests substitute fakes.
//
// Lifecycle:
//
//	b := bridge.New(manager, bridge.WithLogger(logger))
//	s, err := b.CreateSession(ctx, pairs)
//	ev, ok, err := s.NextEvent(ctx)   // session_configured first
//	err = s.Submit(ctx, protocol.NewUserInput("hi"))
//	s.Close(ctx)                      // idempotent; later calls fail with ErrSessionClosed
package bridge
