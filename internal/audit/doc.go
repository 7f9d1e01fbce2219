// Package audit buffers credential lifecycle events and relays them to sinks
// on a background goroutine.
//
// The [Dispatcher] either drops or blocks when its buffer is full, per its
// config, and counts drops and sink failures. Sinks provided here write to a
// channel, to a JSON stream, to several sinks at once, or nowhere. Which
// events exist is decided by the engine; issuance never fails because a sink
// did.
//
// # What this package must NOT do
//
//   - Filter events on business rules.
//   - Import passport or any sibling internal package.
package audit
