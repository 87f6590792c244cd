// Package protocol defines the JSON-lines wire types exchanged with the
// conversation engine: events flowing out of a conversation and submissions
// flowing in.
//
// Both carry an id and an opaque JSON body discriminated by a "type" field.
// The bridge never interprets bodies beyond that discriminator, so new event
// and operation kinds pass through unchanged.
package protocol
