package passport

import (
	"errors"

	"github.com/miaomc/passport/internal/verifier"
)

var (
	// ErrValidation reports missing or malformed input fields.
	ErrValidation = errors.New("validation failed")
	// ErrDecode reports a malformed verification envelope.
	ErrDecode = verifier.ErrDecode
	// ErrKeyUnwrap reports that the envelope key could not be unwrapped with the service key.
	ErrKeyUnwrap = verifier.ErrKeyUnwrap
	// ErrPayloadDecrypt reports a failed authenticated decryption of the envelope payload.
	ErrPayloadDecrypt = verifier.ErrPayloadDecrypt
	// ErrIncompleteClaim reports a decrypted claim with a missing field.
	ErrIncompleteClaim = verifier.ErrIncompleteClaim
	// ErrHashMismatch reports that the supplied hash does not match the recomputed digest.
	ErrHashMismatch = verifier.ErrHashMismatch
	// ErrRemoteToken reports a failed or negative ephemeral token fetch, timeouts included.
	ErrRemoteToken = errors.New("remote verifier token unavailable")
	// ErrTokenExpired reports a remote ephemeral token past its expiry.
	ErrTokenExpired = errors.New("verifier token expired")
	// ErrNotFound reports an absent credential, player or user.
	ErrNotFound = errors.New("not found")
	// ErrSubjectGone reports a live session credential whose user no longer exists.
	ErrSubjectGone = errors.New("credential subject no longer exists")
	// ErrCollisionExhausted reports that every issuance attempt hit an existing secret.
	ErrCollisionExhausted = errors.New("credential generation attempts exhausted")
	// ErrStore reports an underlying credential or identity store failure.
	ErrStore = errors.New("store failure")

	// ErrInvalidCredentials reports a failed password login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicate reports an email, username or player already registered.
	ErrDuplicate = errors.New("already exists")
	// ErrRegistrationClosed reports that self registration is disabled.
	ErrRegistrationClosed = errors.New("registration is closed")
	// ErrMailCodeMismatch reports a mail code issued for a different address.
	ErrMailCodeMismatch = errors.New("mail verification code does not match")
	// ErrRateLimited reports too many login failures, mails or sign-ups in a window.
	ErrRateLimited = errors.New("too many attempts")

	// ErrEngineNotReady reports a nil engine or one built without a required collaborator.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrPrivateKeyMissing reports that no service private key was configured.
	ErrPrivateKeyMissing = errors.New("verifier private key missing")
)

// ErrorKind is the closed set of failure tags carried by [Result].
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindValidation         ErrorKind = "validation"
	KindDecode             ErrorKind = "decode"
	KindKeyUnwrap          ErrorKind = "key_unwrap"
	KindPayloadDecrypt     ErrorKind = "payload_decrypt"
	KindIncompleteClaim    ErrorKind = "incomplete_claim"
	KindHashMismatch       ErrorKind = "hash_mismatch"
	KindRemoteToken        ErrorKind = "remote_token"
	KindTokenExpired       ErrorKind = "token_expired"
	KindNotFound           ErrorKind = "not_found"
	KindCollisionExhausted ErrorKind = "collision_exhausted"
	KindStore              ErrorKind = "store"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindConflict           ErrorKind = "conflict"
	KindForbidden          ErrorKind = "forbidden"
	KindRateLimited        ErrorKind = "rate_limited"
	KindInternal           ErrorKind = "internal"
)

var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	{ErrValidation, KindValidation},
	{ErrMailCodeMismatch, KindValidation},
	{ErrDecode, KindDecode},
	{ErrKeyUnwrap, KindKeyUnwrap},
	{ErrPayloadDecrypt, KindPayloadDecrypt},
	{ErrIncompleteClaim, KindIncompleteClaim},
	{ErrHashMismatch, KindHashMismatch},
	{ErrTokenExpired, KindTokenExpired},
	{ErrRemoteToken, KindRemoteToken},
	{ErrSubjectGone, KindNotFound},
	{ErrNotFound, KindNotFound},
	{ErrCollisionExhausted, KindCollisionExhausted},
	{ErrInvalidCredentials, KindUnauthorized},
	{ErrDuplicate, KindConflict},
	{ErrRegistrationClosed, KindForbidden},
	{ErrRateLimited, KindRateLimited},
	{ErrStore, KindStore},
}

// KindOf maps err onto its [ErrorKind]. Errors outside the taxonomy are
// KindInternal; nil is KindNone.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, entry := range kindTable {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindInternal
}

var genericMessages = map[ErrorKind]string{
	KindValidation:         "Invalid request",
	KindDecode:             "Verification failed",
	KindKeyUnwrap:          "Verification failed",
	KindPayloadDecrypt:     "Verification failed",
	KindIncompleteClaim:    "Verification failed",
	KindHashMismatch:       "Hash verification failed",
	KindRemoteToken:        "Failed to fetch verifier token",
	KindTokenExpired:       "Verifier token has expired",
	KindNotFound:           "Invalid token",
	KindCollisionExhausted: "Failed to generate token",
	KindStore:              "Internal Error",
	KindUnauthorized:       "Invalid username or password",
	KindConflict:           "Already exists",
	KindForbidden:          "Registration is currently closed by administrator",
	KindRateLimited:        "Too many attempts, please try again later",
	KindInternal:           "Internal Error",
}

// PublicMessage returns the user-facing text for err. With debug set the
// full error chain is returned; otherwise a generic string per kind.
func PublicMessage(err error, debug bool) string {
	if err == nil {
		return ""
	}
	if debug {
		return err.Error()
	}
	return genericMessages[KindOf(err)]
}
