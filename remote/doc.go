// Package remote implements passport.RemoteTokenClient against the info API
// that holds ephemeral verifier tokens.
//
// Requests are signed by query string: key, a millisecond timestamp, a random
// 32-byte hex salt, and token = sha256(method + path + timestamp + secret +
// salt) in hex. Responses are {status, data: {tuuid, token, expire_at,
// create_at}, message}.
//
// # What this package must NOT do
//
//   - Decide token expiry. The engine compares ExpireAt against its own clock.
//   - Retry negative or malformed responses.
package remote
