package passport

import "time"

// CredentialKind distinguishes the three credential families by their key prefix.
type CredentialKind uint8

const (
	// KindSession is an introspect credential mapping to a user id.
	KindSession CredentialKind = iota + 1
	// KindBind is a short-lived credential carrying a verified player.
	KindBind
	// KindMailCode maps a typed mail verification code to an email address.
	KindMailCode
)

const (
	// RenewalThreshold is the remaining session lifetime below which verification renews.
	RenewalThreshold = 180 * time.Second
	// BindTTL is the fixed lifetime of bind credentials.
	BindTTL = 1800 * time.Second
	// MailCodeTTL is the fixed lifetime of mail verification codes.
	MailCodeTTL = 3000 * time.Second
)

// Prefix returns the store key prefix for k.
func (k CredentialKind) Prefix() string {
	switch k {
	case KindSession:
		return "IT_"
	case KindBind:
		return "BT_"
	case KindMailCode:
		return "MT_"
	default:
		return ""
	}
}

func (k CredentialKind) String() string {
	switch k {
	case KindSession:
		return "session"
	case KindBind:
		return "bind"
	case KindMailCode:
		return "mail_code"
	default:
		return "unknown"
	}
}

// Credential is an issued secret. Secret carries the kind prefix and is the
// store key.
type Credential struct {
	Secret    string
	Kind      CredentialKind
	Payload   string
	TTL       time.Duration
	SubjectID string
	ExpiresAt time.Time
}

// SessionPayload is the typed payload of a session credential.
type SessionPayload struct {
	UserID int64
}

// BindPayload is the typed payload of a bind credential.
type BindPayload struct {
	PlayerUUID string `json:"player_uuid"`
	PlayerName string `json:"player_name,omitempty"`
	Action     string `json:"action,omitempty"`
}

// SessionResult is returned by session verification.
type SessionResult struct {
	User       *User
	WasRenewed bool
	// TTL is the remaining lifetime observed before any renewal.
	TTL time.Duration
}
