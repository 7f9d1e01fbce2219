package passport

import "github.com/miaomc/passport/internal/security"

// SecurityReport is a read-only snapshot of the engine's security posture.
type SecurityReport = security.Report

// SecurityReport derives the posture from the built configuration and key.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	keyBits := 0
	if pub := e.PublicKey(); pub != nil {
		keyBits = pub.N.BitLen()
	}

	cfg := e.config
	return security.BuildReport(security.ReportInput{
		Debug:               cfg.Debug,
		KeyBits:             keyBits,
		SessionTTL:          cfg.Token.SessionTTL,
		SecretBytes:         cfg.Token.SecretBytes,
		BindSecretBytes:     cfg.Token.BindSecretBytes,
		MailCodeBytes:       cfg.Token.MailCodeBytes,
		BcryptCost:          cfg.Password.BcryptCost,
		AllowRegister:       cfg.Account.AllowRegister,
		AuditEnabled:        cfg.Audit.Enabled,
		AuditDropIfFull:     cfg.Audit.DropIfFull,
		RateLimitEnabled:    cfg.RateLimit.Enabled,
		IPThrottle:          cfg.RateLimit.IPThrottle,
		MaxLoginFailures:    cfg.RateLimit.MaxLoginFailures,
		MaxMailSends:        cfg.RateLimit.MaxMailSends,
		MaxAccountCreations: cfg.RateLimit.MaxAccountCreations,
	})
}
