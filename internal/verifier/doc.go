// Package verifier authenticates envelopes sent by game-server clients.
//
// An envelope is base64 text of a JSON object carrying an RSA-OAEP wrapped
// AES key and an AES-GCM ciphertext. The plaintext is itself base64 text
// (plainBase64) whose decoding is the JSON claim. The hash challenge binds
// plainBase64 to a remote ephemeral token and the service salt.
//
// # Architecture boundaries
//
// This package owns the cryptographic pipeline and the claim shape. It does
// NOT fetch remote tokens or compare expiry. The engine flow does that
// between Decrypt and HashMatches.
//
// # What this package must NOT do
//
//   - Import passport or any sibling internal package.
//   - Log key material or plaintext claims.
package verifier
