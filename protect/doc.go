// Package protect provides purpose-scoped authenticated encryption for small
// payloads such as state ticket references.
//
// Every [Provider] derives a distinct subkey per purpose chain with HKDF-SHA256,
// so changing any element of the chain selects a different cryptographic
// context rather than just a different label.
//
// # Providers
//
//   - [KeyRing]: compact AEAD envelope (AES-256-GCM or XChaCha20-Poly1305)
//     with key ids for rotation.
//   - [JWEProvider]: compact JWE using direct key agreement and A256GCM.
//   - [SignedProvider]: HS256 JWT; integrity only, the payload is readable.
//
// # What this package must NOT do
//
//   - Persist keys or tokens.
//   - Distinguish failure causes to callers beyond [ErrInvalidToken].
package protect
