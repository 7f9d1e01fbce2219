// Package password implements password hashing and verification with bcrypt.
//
// # Output format
//
// Hashes are standard modular-crypt bcrypt strings ($2a$, $2b$, $2y$), so
// accounts created by earlier deployments verify unchanged. [Bcrypt.NeedsRehash]
// reports hashes produced with a lower cost than the configured one.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Account rules (duplicate
// checks, registration gating) are enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other passport package.
//   - Log plaintext passwords.
package password
