package security

import "time"

// Report is the security posture of a built engine.
type Report struct {
	DebugMode           bool
	KeyBits             int
	SessionTTL          time.Duration
	SecretBytes         int
	BindSecretBytes     int
	MailCodeBytes       int
	BcryptCost          int
	RegistrationOpen    bool
	AuditEnabled        bool
	AuditMayDrop        bool
	RateLimitingActive  bool
	IPThrottleActive    bool
	WeakKey             bool
	ShortSessionSecrets bool
}

// MinKeyBits is the smallest RSA modulus not flagged as weak.
const MinKeyBits = 2048

// MinSecretBytes is the smallest session secret size not flagged as short.
const MinSecretBytes = 32

type ReportInput struct {
	Debug               bool
	KeyBits             int
	SessionTTL          time.Duration
	SecretBytes         int
	BindSecretBytes     int
	MailCodeBytes       int
	BcryptCost          int
	AllowRegister       bool
	AuditEnabled        bool
	AuditDropIfFull     bool
	RateLimitEnabled    bool
	IPThrottle          bool
	MaxLoginFailures    int
	MaxMailSends        int
	MaxAccountCreations int
}

func BuildReport(input ReportInput) Report {
	rateLimiting := input.RateLimitEnabled &&
		(input.MaxLoginFailures > 0 || input.MaxMailSends > 0 || input.MaxAccountCreations > 0)

	return Report{
		DebugMode:           input.Debug,
		KeyBits:             input.KeyBits,
		SessionTTL:          input.SessionTTL,
		SecretBytes:         input.SecretBytes,
		BindSecretBytes:     input.BindSecretBytes,
		MailCodeBytes:       input.MailCodeBytes,
		BcryptCost:          input.BcryptCost,
		RegistrationOpen:    input.AllowRegister,
		AuditEnabled:        input.AuditEnabled,
		AuditMayDrop:        input.AuditEnabled && input.AuditDropIfFull,
		RateLimitingActive:  rateLimiting,
		IPThrottleActive:    rateLimiting && input.IPThrottle,
		WeakKey:             input.KeyBits > 0 && input.KeyBits < MinKeyBits,
		ShortSessionSecrets: input.SecretBytes < MinSecretBytes,
	}
}

// Warnings lists posture findings worth logging at startup.
func (r Report) Warnings() []string {
	var out []string
	if r.DebugMode {
		out = append(out, "debug mode exposes internal error text")
	}
	if r.WeakKey {
		out = append(out, "service RSA key is shorter than 2048 bits")
	}
	if r.ShortSessionSecrets {
		out = append(out, "session secrets are shorter than 32 bytes")
	}
	if !r.RateLimitingActive {
		out = append(out, "account flows are not rate limited")
	}
	return out
}
