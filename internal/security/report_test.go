package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildReport(t *testing.T) {
	r := BuildReport(ReportInput{
		KeyBits:          4096,
		SessionTTL:       2 * time.Hour,
		SecretBytes:      32,
		AuditEnabled:     true,
		AuditDropIfFull:  true,
		RateLimitEnabled: true,
		IPThrottle:       true,
		MaxLoginFailures: 5,
	})

	assert.True(t, r.AuditMayDrop)
	assert.True(t, r.RateLimitingActive)
	assert.True(t, r.IPThrottleActive)
	assert.False(t, r.WeakKey)
	assert.False(t, r.ShortSessionSecrets)
	assert.Empty(t, r.Warnings())
}

func TestBuildReportRateLimitNeedsALimit(t *testing.T) {
	r := BuildReport(ReportInput{RateLimitEnabled: true, IPThrottle: true, SecretBytes: 32})
	assert.False(t, r.RateLimitingActive)
	assert.False(t, r.IPThrottleActive)
}

func TestReportWarnings(t *testing.T) {
	r := BuildReport(ReportInput{Debug: true, KeyBits: 1024, SecretBytes: 16})
	assert.Equal(t, []string{
		"debug mode exposes internal error text",
		"service RSA key is shorter than 2048 bits",
		"session secrets are shorter than 32 bytes",
		"account flows are not rate limited",
	}, r.Warnings())
}
