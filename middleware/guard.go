package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/miaomc/passport"
)

const (
	IntrospectTokenHeader = "X-MiaoMC-Introspect-Token"
	BindTokenHeader       = "X-MiaoMC-Bind-Token"
)

// SessionVerifier is satisfied by *passport.Engine.
type SessionVerifier interface {
	VerifySession(ctx context.Context, secret string) (*passport.SessionResult, error)
}

// BindVerifier is satisfied by *passport.Engine.
type BindVerifier interface {
	VerifyBind(ctx context.Context, secret string) (*passport.BindPayload, error)
}

// State is the outcome of resolving a credential header. HasToken is false
// when the header is absent or lacks the expected prefix; Err is set for any
// failure.
type State[T any] struct {
	HasToken bool
	Value    T
	Err      error
}

// OK reports whether the credential resolved.
func (s State[T]) OK() bool {
	return s.HasToken && s.Err == nil
}

type sessionContextKey struct{}

type bindContextKey struct{}

// SessionFromContext returns the session state stored by [Session] or
// [RequireSession].
func SessionFromContext(ctx context.Context) (State[*passport.SessionResult], bool) {
	st, ok := ctx.Value(sessionContextKey{}).(State[*passport.SessionResult])
	return st, ok
}

// BindFromContext returns the bind state stored by [Bind] or [RequireBind].
func BindFromContext(ctx context.Context) (State[*passport.BindPayload], bool) {
	st, ok := ctx.Value(bindContextKey{}).(State[*passport.BindPayload])
	return st, ok
}

// resolve reads header from c, checks prefix and calls verify. The state is
// attached to the request context under key.
func resolve[T any](c *gin.Context, header string, kind passport.CredentialKind, key any, verify func(context.Context, string) (T, error)) State[T] {
	var st State[T]

	secret := strings.TrimSpace(c.GetHeader(header))
	if !strings.HasPrefix(secret, kind.Prefix()) {
		st.Err = fmt.Errorf("%w: missing %s", passport.ErrNotFound, header)
	} else {
		st.HasToken = true
		st.Value, st.Err = verify(c.Request.Context(), secret)
	}

	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), key, st))
	return st
}

// StatusFor maps an error kind to an HTTP status code.
func StatusFor(kind passport.ErrorKind) int {
	switch kind {
	case passport.KindNone:
		return http.StatusOK
	case passport.KindValidation, passport.KindDecode, passport.KindKeyUnwrap,
		passport.KindPayloadDecrypt, passport.KindIncompleteClaim, passport.KindHashMismatch,
		passport.KindTokenExpired:
		return http.StatusBadRequest
	case passport.KindNotFound, passport.KindUnauthorized:
		return http.StatusUnauthorized
	case passport.KindForbidden:
		return http.StatusForbidden
	case passport.KindConflict:
		return http.StatusConflict
	case passport.KindRateLimited:
		return http.StatusTooManyRequests
	case passport.KindRemoteToken:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Abort writes err as a failed Result envelope and stops the chain.
func Abort(c *gin.Context, err error, debug bool) {
	res := passport.Fail[any](err, debug)
	c.AbortWithStatusJSON(StatusFor(res.Kind), res)
}
