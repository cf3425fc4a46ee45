// Package cache defines the key-value collaborator used to hold serialized state
// payloads, plus three adapters: [Redis] over go-redis, [Memory] for tests and
// single-instance deployments, and [Ristretto] when a single instance needs a
// hard memory bound.
//
// # Architecture boundaries
//
// This package owns transport to the backing store and miss classification.
// It does NOT know about tickets, purposes, or key layout; callers pass fully
// derived keys.
//
// # What this package must NOT do
//
//   - Retry failed backend calls (retry belongs to the go-redis client options).
//   - Import stateformat or any sibling package.
package cache
