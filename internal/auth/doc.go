// Package auth resolves the bearer credential used to talk to the cloud task
// backend.
//
// Credentials come from three places, tried in a fixed order:
//
//  1. An explicit token from configuration.
//  2. The persisted auth.json record under the resolved home directory.
//  3. A [Manager], which reads the same record but may refresh a stale access
//     token or fall back to an API key.
//
// The first source to produce a non-empty token wins. Problems reading a
// source are logged at debug level and never surfaced; the only hard error is
// a [errors.ConfigError] when a home directory is required but cannot be
// resolved.
//
// The account id sent with a token is taken from the source's own record when
// present, and otherwise decoded from the token's JWT payload with
// [AccountIDFromToken].
package auth
