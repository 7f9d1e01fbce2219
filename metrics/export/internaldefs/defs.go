package internaldefs

import (
	"strconv"
	"strings"

	"github.com/miaomc/passport"
	internalmetrics "github.com/miaomc/passport/internal/metrics"
)

type CounterDef struct {
	ID   passport.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   passport.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for events the audit dispatcher discarded.
const AuditDroppedName = "passport_audit_dropped_total"

const AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."

var CounterDefs = []CounterDef{
	{ID: passport.MetricSessionIssued, Name: "passport_session_issued_total", Help: "Session credentials issued."},
	{ID: passport.MetricSessionVerified, Name: "passport_session_verified_total", Help: "Session credentials verified."},
	{ID: passport.MetricSessionRenewed, Name: "passport_session_renewed_total", Help: "Session credentials renewed below the threshold."},
	{ID: passport.MetricSessionInvalid, Name: "passport_session_invalid_total", Help: "Rejected session credentials."},
	{ID: passport.MetricBindIssued, Name: "passport_bind_issued_total", Help: "Bind credentials issued."},
	{ID: passport.MetricBindVerified, Name: "passport_bind_verified_total", Help: "Bind credentials verified."},
	{ID: passport.MetricMailCodeIssued, Name: "passport_mail_code_issued_total", Help: "Mail verification codes issued."},
	{ID: passport.MetricIssueCollision, Name: "passport_issue_collision_total", Help: "Issuance attempts that hit an existing secret."},
	{ID: passport.MetricIssueExhausted, Name: "passport_issue_exhausted_total", Help: "Issuances that ran out of attempts."},
	{ID: passport.MetricVerifySuccess, Name: "passport_verify_success_total", Help: "Successful verifier handshakes."},
	{ID: passport.MetricVerifyFailure, Name: "passport_verify_failure_total", Help: "Failed verifier handshakes."},
	{ID: passport.MetricVerifyHashMismatch, Name: "passport_verify_hash_mismatch_total", Help: "Verifications rejected on the hash challenge."},
	{ID: passport.MetricVerifyExpired, Name: "passport_verify_expired_total", Help: "Verifications rejected on an expired remote token."},
	{ID: passport.MetricBindingBind, Name: "passport_binding_bind_total", Help: "Binding decisions: Bind."},
	{ID: passport.MetricBindingLogin, Name: "passport_binding_login_total", Help: "Binding decisions: Login."},
	{ID: passport.MetricBindingSelect, Name: "passport_binding_select_total", Help: "Binding decisions: Select."},
	{ID: passport.MetricBindingFailed, Name: "passport_binding_failed_total", Help: "Binding decisions: Failed."},
	{ID: passport.MetricLoginSuccess, Name: "passport_login_success_total", Help: "Successful password logins."},
	{ID: passport.MetricLoginFailure, Name: "passport_login_failure_total", Help: "Failed password logins."},
	{ID: passport.MetricAccountCreated, Name: "passport_account_created_total", Help: "Accounts created."},
	{ID: passport.MetricPlayerBound, Name: "passport_player_bound_total", Help: "Players bound to accounts."},
	{ID: passport.MetricRateLimited, Name: "passport_rate_limited_total", Help: "Requests rejected by a rate limit."},
}

var HistogramDefs = []HistogramDef{
	{ID: passport.MetricVerifyLatency, Name: "passport_verify_latency_seconds", Help: "Verifier pipeline latency."},
}

// BucketCount is the number of histogram buckets, the last unbounded.
const BucketCount = internalmetrics.HistBucketCount

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, len(internalmetrics.BucketBounds))
	for i, d := range internalmetrics.BucketBounds {
		out[i] = d.Seconds()
	}
	return out
}

// BoundSuffix renders a bound for use in an instrument name: 0.005 becomes
// "0_005", the unbounded bucket "inf".
func BoundSuffix(i int) string {
	bounds := UpperBounds()
	if i >= len(bounds) {
		return "inf"
	}
	return strings.ReplaceAll(strconv.FormatFloat(bounds[i], 'f', -1, 64), ".", "_")
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
