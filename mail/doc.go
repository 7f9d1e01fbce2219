// Package mail delivers bind verification codes.
//
// [SMTPSender] renders an HTML message and hands it to an SMTP relay.
// [LogSender] only logs the code and is meant for development and tests.
// Both implement passport.MailSender.
//
// # What this package must NOT do
//
//   - Generate or store codes. The engine issues them.
//   - Retry delivery. A failed send is reported once to the caller.
package mail
