// Package security derives a read-only posture report from engine settings.
//
// # What this package must NOT do
//
//   - Read key material or secrets. It sees sizes and switches only.
package security
