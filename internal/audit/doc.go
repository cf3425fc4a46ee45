// Package audit implements async event dispatching for state ticket operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured record with timestamp, type, scheme, purpose, outcome.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; that belongs to the Formatter and the binding layer.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import stateformat or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
