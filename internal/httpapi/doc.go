// Package httpapi is the gin HTTP surface of the passport service.
//
// Every response body is a passport.Result envelope. Handlers translate
// request fields into Engine calls and nothing more.
//
// # What this package must NOT do
//
//   - Verify credentials itself. Guards in package middleware and the Engine
//     do that.
//   - Leak error chains unless Options.Debug is set.
package httpapi
