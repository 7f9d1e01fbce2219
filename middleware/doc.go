// Package middleware exposes gin middleware that resolves passport credential
// headers against a passport.Engine.
//
// # Guards
//
//   - [Session] and [Bind] resolve X-MiaoMC-Introspect-Token and
//     X-MiaoMC-Bind-Token and record the outcome for the handler.
//   - [RequireSession] and [RequireBind] additionally reject the request with
//     a failed Result envelope.
//   - [ClientInfo] records the caller's IP and User-Agent for audit events.
//
// # What this package must NOT do
//
//   - Touch Redis or the identity store directly (the Engine does I/O).
//   - Make decisions beyond pass/reject from the Engine's verification.
package middleware
