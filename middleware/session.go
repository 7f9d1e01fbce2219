package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/miaomc/passport"
)

// Session resolves the introspect token header and stores the outcome
// without rejecting the request. Handlers read it with [SessionFromContext].
func Session(v SessionVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		resolveSession(c, v)
		c.Next()
	}
}

// RequireSession rejects requests without a live session credential.
func RequireSession(v SessionVerifier, debug bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if st := resolveSession(c, v); !st.OK() {
			Abort(c, st.Err, debug)
			return
		}
		c.Next()
	}
}

func resolveSession(c *gin.Context, v SessionVerifier) State[*passport.SessionResult] {
	return resolve(c, IntrospectTokenHeader, passport.KindSession, sessionContextKey{},
		func(ctx context.Context, secret string) (*passport.SessionResult, error) {
			if v == nil {
				return nil, passport.ErrEngineNotReady
			}
			return v.VerifySession(ctx, secret)
		})
}
