// Package rate provides the Redis fixed-window counter the passport limiters
// are built from.
//
// # Window semantics
//
// INCR on every hit, EXPIRE only on the first hit of a window. A window is
// therefore fixed from its first hit and does not slide.
//
// # What this package must NOT do
//
//   - Decide policy. Limits and key namespaces come from internal/limiters.
//   - Be imported outside the passport module.
package rate
