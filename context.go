package passport

import "context"

type contextKey int

const (
	clientIPKey contextKey = iota
	userAgentKey
)

// WithClientIP attaches the caller's IP address to ctx. The engine records it
// on audit events and uses it for per-IP rate limits.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// WithUserAgent attaches the caller's User-Agent to ctx for audit events.
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey, ua)
}

func clientIPFromContext(ctx context.Context) string {
	return stringFromContext(ctx, clientIPKey)
}

func userAgentFromContext(ctx context.Context) string {
	return stringFromContext(ctx, userAgentKey)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
