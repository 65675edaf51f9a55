// Package events is the publish/subscribe surface of the session engine.
//
// Every top-level key of an inbound frame is published under its Key, and
// the engine adds lifecycle keys of its own (state changes, retryable errors
// and their clears, protocol exceptions). Handlers run synchronously in
// publish order; Buffer gives consumers that must not block the engine a
// pull view backed by a GrowableBuffer.
package events
