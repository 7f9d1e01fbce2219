// Package internal holds helpers private to passport, starting with the
// random secret generator used for every credential kind.
//
// # Sub-packages
//
//   - audit: async event dispatch to sinks
//   - flows: issuance, verification and binding orchestration
//   - stores: Redis-backed credential store
//   - verifier: hybrid envelope decryption and hash challenge
//   - rate, limiters: Redis fixed windows for the account flows
//   - security: posture report
//   - logging: slog construction with trace context
//   - config: process configuration for cmd/passport
//   - httpapi: gin HTTP surface over the Engine
//
// # What this package must NOT do
//
//   - Export types that appear in the public passport API.
package internal
