// Package engine runs the local conversation engine as a child process and
// exposes it through the bridge's ConversationManager interface.
//
// Each conversation is one "codex proto" process. Submissions are written to
// its stdin and events are read from its stdout, both as JSON lines. The
// first line the process prints must be a session_configured event; its
// session id becomes the conversation id.
package engine
