// Package flows contains pure-function orchestrators for the credential and
// verification operations of the Engine.
//
// Each flow function (RunIssue, RunVerifySession, RunVerify, RunResolveBinding,
// etc.) accepts a typed dependency struct and returns results without
// side-effects beyond those dependencies. Error values are injected by the
// caller so the root package keeps ownership of its sentinels.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the credential store, the decryptor, the
// remote token fetcher and the identity lookups. They do NOT own any of these
// resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import passport (to avoid import cycles).
//   - Emit audit events or metrics; the Engine does that around each call.
package flows
