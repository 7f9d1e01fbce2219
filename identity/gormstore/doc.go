// Package gormstore is the gorm-backed identity store: users, players and the
// activity and login logs, on sqlite or mysql.
//
// Absent rows are reported as errors wrapping passport.ErrNotFound and unique
// violations as passport.ErrDuplicate, each carrying samber/oops context.
//
// # What this package must NOT do
//
//   - Hash or verify passwords. It stores what the engine hands it.
//   - Enforce binding rules beyond "a bound player cannot be rebound".
package gormstore
