// Package limiters holds the passport abuse limits, each built from
// internal/rate windows.
//
// # Limiters
//
//   - [LoginLimiter]: failed password attempts per identifier and per IP.
//   - [MailCodeLimiter]: verification mails per address and per IP.
//   - [AccountLimiter]: account creations per IP.
//
// All limiters are nil-safe: a nil receiver allows everything.
//
// # What this package must NOT do
//
//   - Import passport or any sibling internal package except internal/rate.
//   - Decide consequences. The engine maps rate errors onto its taxonomy.
package limiters
