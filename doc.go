// Package stateformat stores authentication state server-side and hands clients
// an encrypted reference to it instead of the state itself.
//
// A [Formatter] serializes [Properties] into a shared [cache.Cache] under a
// random reference and returns that reference sealed by a purpose-scoped
// [protect.Protector]. Resolving a ticket reverses the steps and reports a
// missing entry as [ErrStateNotFound], distinct from [ErrInvalidTicket].
//
// Several named schemes can share one cache and one key ring: each scheme name
// and each per-call purpose selects its own protection context, so tickets
// never resolve across schemes. [Schemes] and [Initializer] bind pending
// [Marker] values to live formatters by exact name.
//
// # Architecture boundaries
//
// stateformat is the public surface. Cache transport lives in cache/, key
// handling in protect/, audit buffering in internal/audit, and metric export
// in metrics/export/.
//
// # What this package must NOT do
//
//   - Set expiry on cache entries (adapters own TTL policy).
//   - Delete cache entries, or retry cache and protector calls.
//   - Reach request-scoped services implicitly; all collaborators are injected.
//
// # Performance contract
//
// Protect performs exactly one cache write; Unprotect at most one cache read
// and none when the ticket fails authentication.
package stateformat
