package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/miaomc/passport"
)

// Bind resolves the bind token header without rejecting the request.
func Bind(v BindVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		resolveBind(c, v)
		c.Next()
	}
}

// RequireBind rejects requests without a live bind credential.
func RequireBind(v BindVerifier, debug bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if st := resolveBind(c, v); !st.OK() {
			Abort(c, st.Err, debug)
			return
		}
		c.Next()
	}
}

func resolveBind(c *gin.Context, v BindVerifier) State[*passport.BindPayload] {
	return resolve(c, BindTokenHeader, passport.KindBind, bindContextKey{},
		func(ctx context.Context, secret string) (*passport.BindPayload, error) {
			if v == nil {
				return nil, passport.ErrEngineNotReady
			}
			return v.VerifyBind(ctx, secret)
		})
}
