// Package stores provides the Redis-backed credential store used by the
// token manager.
//
// # Design
//
// Credentials are plain string values under kind-prefixed keys with a TTL
// owned by Redis. The store exposes only the primitives the token manager
// needs (exists, put, lookup, expire, set membership). There are no
// transactions: issuance is check-then-set and renewal is read-then-expire.
//
// # Architecture boundaries
//
// This package owns key layout and Redis error mapping. It does NOT generate
// secrets, decide TTLs, or resolve subjects. Those responsibilities belong to
// the flow functions in internal/flows.
//
// # What this package must NOT do
//
//   - Import passport or any sibling internal package.
//   - Log credential values.
package stores
