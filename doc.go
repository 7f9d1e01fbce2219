// Package passport brokers identity between game-server clients and web
// accounts: it issues and verifies opaque Redis-backed credentials, runs the
// hybrid RSA-OAEP / AES-GCM verifier protocol, and resolves how a verified
// player relates to an account.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Credentials
//
// Three families share one key space, distinguished by prefix: IT_ session
// credentials, BT_ bind credentials and MT_ mail verification codes. Lifetimes
// are enforced by the store TTL only.
//
// # Architecture boundaries
//
// passport is the public surface. It exposes [Engine], [Builder], [Config], [Result] and the
// collaborator interfaces ([IdentityStore], [RemoteTokenClient], [PasswordHasher],
// [MailSender]). Flow orchestration, envelope cryptography, the credential store and audit
// dispatch live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or envelope key material in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Import any sub-package that re-imports passport (no import cycles).
//   - Lock around issuance: secret uniqueness is checked, not reserved.
package passport
