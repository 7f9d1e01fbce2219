package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/miaomc/passport"
	"github.com/miaomc/passport/middleware"
)

type handlers struct {
	engine *passport.Engine
	debug  bool
	logger *slog.Logger
}

func (h *handlers) ok(c *gin.Context, status int, data any) {
	c.JSON(status, passport.NewResult(data, nil, h.debug))
}

func (h *handlers) fail(c *gin.Context, err error) {
	res := passport.Fail[any](err, h.debug)
	status := middleware.StatusFor(res.Kind)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request.Context(), "request failed", "path", c.Request.URL.Path, "kind", res.Kind, "error", err)
	}
	c.JSON(status, res)
}

func (h *handlers) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.fail(c, fmt.Errorf("%w: %v", passport.ErrValidation, err))
		return false
	}
	return true
}

func bindSecret(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(middleware.BindTokenHeader))
}

type healthResponse struct {
	RedisAvailable bool  `json:"redis_available"`
	RedisLatencyMS int64 `json:"redis_latency_ms"`
}

func (h *handlers) health(c *gin.Context) {
	st := h.engine.Health(c.Request.Context())
	status := http.StatusOK
	if !st.RedisAvailable {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, passport.Result[healthResponse]{
		OK: st.RedisAvailable,
		Data: healthResponse{
			RedisAvailable: st.RedisAvailable,
			RedisLatencyMS: st.RedisLatency.Milliseconds(),
		},
	})
}

type handshakeResponse struct {
	Next      passport.BindingDecision `json:"next"`
	Player    passport.VerifiedPlayer  `json:"player"`
	Players   []passport.LinkedPlayer  `json:"players,omitempty"`
	BindToken string                   `json:"bind_token,omitempty"`
	UserID    *int64                   `json:"user_id,omitempty"`
	IToken    string                   `json:"itoken,omitempty"`
}

func (h *handlers) verify(c *gin.Context) {
	data := c.Query("data")
	hash := c.Query("hash")
	if data == "" || hash == "" {
		h.fail(c, fmt.Errorf("%w: missing data or hash", passport.ErrValidation))
		return
	}

	res, err := h.engine.Handshake(c.Request.Context(), data, hash)
	if err != nil {
		h.fail(c, err)
		return
	}

	out := handshakeResponse{
		Next:    res.Binding.Decision,
		Player:  res.Player,
		Players: res.Binding.Players,
	}
	switch res.Binding.Decision {
	case passport.DecisionBind:
		out.BindToken = res.Credential.Secret
	case passport.DecisionLogin:
		out.UserID = res.Binding.Player.UserID
		out.IToken = res.Credential.Secret
	}
	h.ok(c, http.StatusOK, out)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type sessionResponse struct {
	UserID int64  `json:"user_id"`
	IToken string `json:"itoken"`
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.engine.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, sessionResponse{UserID: res.User.ID, IToken: res.Credential.Secret})
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *handlers) register(c *gin.Context) {
	var req registerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.engine.Register(c.Request.Context(), passport.RegisterRequest{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, gin.H{"user_id": user.ID})
}

type introspectResponse struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Nickname  string `json:"nickname,omitempty"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	IsRenewed bool   `json:"is_renewed"`
}

func (h *handlers) introspect(c *gin.Context) {
	st, ok := middleware.SessionFromContext(c.Request.Context())
	if !ok || !st.HasToken {
		h.fail(c, fmt.Errorf("%w: no valid token provided", passport.ErrValidation))
		return
	}
	if st.Err != nil {
		h.fail(c, st.Err)
		return
	}

	u := st.Value.User
	h.ok(c, http.StatusOK, introspectResponse{
		UserID:    u.ID,
		Username:  u.Username,
		Nickname:  u.Nickname,
		Email:     u.Email,
		Role:      u.Role,
		IsRenewed: st.Value.WasRenewed,
	})
}

type sendCodeRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *handlers) sendCode(c *gin.Context) {
	var req sendCodeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.engine.RequestBindCode(c.Request.Context(), bindSecret(c), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, gin.H{"sent": true, "recipient": req.Email})
}

type verifyCodeRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

type bindResponse struct {
	UserID     int64  `json:"user_id"`
	PlayerUUID string `json:"player_uuid"`
	IsPrimary  bool   `json:"is_primary"`
	IToken     string `json:"itoken"`
}

func toBindResponse(res *passport.AccountBindResult) bindResponse {
	return bindResponse{
		UserID:     res.User.ID,
		PlayerUUID: res.Player.UUID,
		IsPrimary:  res.Player.IsPrimary,
		IToken:     res.Credential.Secret,
	}
}

func (h *handlers) verifyCode(c *gin.Context) {
	var req verifyCodeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.engine.CompleteNewAccountBind(c.Request.Context(), bindSecret(c), passport.NewAccountBind{
		Email:    req.Email,
		Password: req.Password,
		Code:     req.Code,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusCreated, toBindResponse(res))
}

func (h *handlers) bindExist(c *gin.Context) {
	var req loginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	res, err := h.engine.BindExistingAccount(c.Request.Context(), bindSecret(c), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.ok(c, http.StatusOK, toBindResponse(res))
}
