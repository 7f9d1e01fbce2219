package passport

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
)

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	User       *User
	Credential *Credential
}

// RegisterRequest is the input of [Engine.Register].
type RegisterRequest struct {
	Email    string
	Username string
	Password string
}

// NewAccountBind is the second step of binding a player to a new account.
type NewAccountBind struct {
	Email    string
	Password string
	Code     string
}

// AccountBindResult is returned by the bind flows.
type AccountBindResult struct {
	User       *User
	Player     *Player
	Credential *Credential
}

// Login authenticates identifier and password and issues a session
// credential. An identifier containing '@' is looked up as an email, anything
// else as a username. Every authentication failure is [ErrInvalidCredentials].
func (e *Engine) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	if e == nil || e.identity == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, fmt.Errorf("%w: identifier and password required", ErrValidation)
	}

	if err := e.checkLoginLimit(ctx, identifier); err != nil {
		return nil, err
	}
	user, err := e.authenticate(ctx, identifier, password)
	e.recordLoginOutcome(ctx, identifier, err)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", "", err, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
			}
		})
		return nil, err
	}

	cred, err := e.IssueSession(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, strconv.FormatInt(user.ID, 10), "", nil, nil)
	return &LoginResult{User: user, Credential: cred}, nil
}

func (e *Engine) authenticate(ctx context.Context, identifier, password string) (*User, error) {
	var (
		user *User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = e.identity.GetUserByEmail(ctx, identifier)
	} else {
		user, err = e.identity.GetUserByUsername(ctx, identifier)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	ok, err := e.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		e.log("account").Warn("stored password hash rejected", "user_id", user.ID, "error", err)
		return nil, ErrInvalidCredentials
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Register creates a user when self registration is enabled.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if e == nil || e.identity == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.Account.AllowRegister {
		e.emitAudit(ctx, auditEventAccountRejected, false, "", "", ErrRegistrationClosed, nil)
		return nil, ErrRegistrationClosed
	}

	email := strings.TrimSpace(req.Email)
	username := strings.TrimSpace(req.Username)
	if email == "" || username == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: email, username and password required", ErrValidation)
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if strings.Contains(username, "@") {
		return nil, fmt.Errorf("%w: username must not contain '@'", ErrValidation)
	}

	if err := e.ensureUnique(ctx, email, username); err != nil {
		e.emitAudit(ctx, auditEventAccountRejected, false, "", "", err, func() map[string]string {
			return map[string]string{
				"email":    email,
				"username": username,
			}
		})
		return nil, err
	}
	if err := e.enforceAccountLimit(ctx); err != nil {
		return nil, err
	}

	user, err := e.createUser(ctx, email, username, req.Password)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RequestBindCode sends a mail verification code to email for the player
// carried by bindSecret.
func (e *Engine) RequestBindCode(ctx context.Context, bindSecret, email string) error {
	if e == nil || e.mailer == nil {
		return ErrEngineNotReady
	}
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	bind, err := e.VerifyBind(ctx, bindSecret)
	if err != nil {
		return err
	}
	if err := e.enforceMailLimit(ctx, email); err != nil {
		return err
	}

	code, err := e.IssueMailCode(ctx, email)
	if err != nil {
		return err
	}

	if err := e.mailer.SendCode(ctx, email, code, MailCodeTTL); err != nil {
		e.log("account").Error("verification code delivery failed", "player_uuid", bind.PlayerUUID, "error", err)
		return err
	}
	return nil
}

// CompleteNewAccountBind creates a user named after the player, links the
// player as its primary and issues a session credential.
func (e *Engine) CompleteNewAccountBind(ctx context.Context, bindSecret string, req NewAccountBind) (*AccountBindResult, error) {
	if e == nil || e.identity == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}
	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" || strings.TrimSpace(req.Code) == "" {
		return nil, fmt.Errorf("%w: email, password and code required", ErrValidation)
	}

	bind, err := e.VerifyBind(ctx, bindSecret)
	if err != nil {
		return nil, err
	}
	if bind.PlayerName == "" {
		return nil, fmt.Errorf("%w: bind credential carries no player name", ErrValidation)
	}

	if err := e.VerifyMailCode(ctx, email, req.Code); err != nil {
		return nil, err
	}
	if err := e.ensurePlayerUnbound(ctx, bind.PlayerUUID); err != nil {
		return nil, err
	}
	if err := e.ensureUnique(ctx, email, bind.PlayerName); err != nil {
		return nil, err
	}
	if err := e.enforceAccountLimit(ctx); err != nil {
		return nil, err
	}

	user, err := e.createUser(ctx, email, bind.PlayerName, req.Password)
	if err != nil {
		return nil, err
	}

	return e.linkPlayer(ctx, user, bind, true)
}

// BindExistingAccount authenticates an existing account and links the bind
// credential's player to it. The player becomes primary when the user owns
// no players yet.
func (e *Engine) BindExistingAccount(ctx context.Context, bindSecret, identifier, password string) (*AccountBindResult, error) {
	if e == nil || e.identity == nil || e.hasher == nil {
		return nil, ErrEngineNotReady
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, fmt.Errorf("%w: identifier and password required", ErrValidation)
	}

	bind, err := e.VerifyBind(ctx, bindSecret)
	if err != nil {
		return nil, err
	}

	if err := e.checkLoginLimit(ctx, identifier); err != nil {
		return nil, err
	}
	user, err := e.authenticate(ctx, identifier, password)
	e.recordLoginOutcome(ctx, identifier, err)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventPlayerBindFailure, false, "", bind.PlayerUUID, err, nil)
		return nil, err
	}
	if err := e.ensurePlayerUnbound(ctx, bind.PlayerUUID); err != nil {
		return nil, err
	}

	owned, err := e.identity.ListPlayersByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	return e.linkPlayer(ctx, user, bind, len(owned) == 0)
}

func (e *Engine) ensureUnique(ctx context.Context, email, username string) error {
	if _, err := e.identity.GetUserByEmail(ctx, email); err == nil {
		return fmt.Errorf("%w: email already registered", ErrDuplicate)
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}

	if _, err := e.identity.GetUserByUsername(ctx, username); err == nil {
		return fmt.Errorf("%w: username already taken", ErrDuplicate)
	} else if !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrStore, err)
	}
	return nil
}

func (e *Engine) ensurePlayerUnbound(ctx context.Context, playerUUID string) error {
	p, err := e.identity.GetPlayer(ctx, playerUUID)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("%w: %v", ErrStore, err)
	case p.Bound():
		return fmt.Errorf("%w: player already bound", ErrDuplicate)
	}
	return nil
}

func (e *Engine) createUser(ctx context.Context, email, username, password string) (*User, error) {
	hash, err := e.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	user, err := e.identity.CreateUser(ctx, CreateUserInput{
		Email:        email,
		Username:     username,
		Nickname:     username,
		PasswordHash: hash,
		Role:         e.config.Account.DefaultRole,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, strconv.FormatInt(user.ID, 10), "", nil, nil)
	return user, nil
}

func (e *Engine) linkPlayer(ctx context.Context, user *User, bind *BindPayload, primary bool) (*AccountBindResult, error) {
	uid := user.ID
	player, err := e.identity.CreatePlayer(ctx, CreatePlayerInput{
		UUID:      bind.PlayerUUID,
		Name:      bind.PlayerName,
		UserID:    &uid,
		IsPrimary: primary,
	})
	if err != nil {
		e.emitAudit(ctx, auditEventPlayerBindFailure, false, strconv.FormatInt(uid, 10), bind.PlayerUUID, err, nil)
		if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	e.metricInc(MetricPlayerBound)
	e.emitAudit(ctx, auditEventPlayerBound, true, strconv.FormatInt(uid, 10), bind.PlayerUUID, nil, func() map[string]string {
		return map[string]string{
			"primary": strconv.FormatBool(primary),
		}
	})

	cred, err := e.IssueSession(ctx, uid)
	if err != nil {
		return nil, err
	}
	return &AccountBindResult{User: user, Player: player, Credential: cred}, nil
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return nil
}
