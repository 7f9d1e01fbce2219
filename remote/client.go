package remote

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/miaomc/passport"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const (
	saltBytes       = 32
	maxResponseBody = 1 << 20

	defaultTimeout    = 5 * time.Second
	defaultMaxRetries = 2
	defaultRetryBase  = 200 * time.Millisecond
)

// Config describes the remote info API.
type Config struct {
	// BaseURL is the API endpoint without trailing slash, e.g. https://info.example.com/api.
	BaseURL   string
	APIKey    string
	APISecret string
	// Timeout bounds each HTTP attempt.
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64
	// RetryBase is the first exponential backoff step.
	RetryBase time.Duration
}

// Client fetches ephemeral verifier tokens over signed URLs. It implements
// passport.RemoteTokenClient.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	now    func() time.Time
	salt   func() (string, error)
}

type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Its Timeout is left as set.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides the signing timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New validates cfg and returns a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, oops.In("remote").Code("REMOTE_CONFIG").Errorf("base url required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, oops.In("remote").Code("REMOTE_CONFIG").With("base_url", cfg.BaseURL).Wrap(err)
	}
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, oops.In("remote").Code("REMOTE_CONFIG").Errorf("api key and secret required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = defaultRetryBase
	}

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: slog.Default(),
		now:    time.Now,
		salt:   randomSalt,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "remote")
	return c, nil
}

// DefaultConfig returns timeouts and retry bounds with no endpoint set.
func DefaultConfig() Config {
	return Config{
		Timeout:    defaultTimeout,
		MaxRetries: defaultMaxRetries,
		RetryBase:  defaultRetryBase,
	}
}

// Signature computes the request token: hex sha256 over
// method + path + timestamp + secret + salt.
func Signature(method, path string, timestampMillis int64, secret, salt string) string {
	sum := sha256.Sum256([]byte(method + path + strconv.FormatInt(timestampMillis, 10) + secret + salt))
	return hex.EncodeToString(sum[:])
}

// SignedURL builds the full request URL for method and path with a fresh
// timestamp and salt.
func (c *Client) SignedURL(method, path string) (string, error) {
	salt, err := c.salt()
	if err != nil {
		return "", err
	}
	ts := c.now().UnixMilli()

	q := url.Values{}
	q.Set("key", c.cfg.APIKey)
	q.Set("timestamp", strconv.FormatInt(ts, 10))
	q.Set("salt", salt)
	q.Set("token", Signature(method, path, ts, c.cfg.APISecret, salt))

	return c.cfg.BaseURL + path + "?" + q.Encode(), nil
}

type tokenData struct {
	TokenID  string          `json:"tuuid"`
	Token    string          `json:"token"`
	ExpireAt json.RawMessage `json:"expire_at"`
	CreateAt json.RawMessage `json:"create_at"`
}

type tokenResponse struct {
	Status  bool       `json:"status"`
	Message string     `json:"message"`
	Data    *tokenData `json:"data"`
}

// FetchToken requests GET /token/{tokenID}. Transport failures, 5xx and 429
// responses are retried with exponential backoff; everything else fails at
// once. Every error wraps passport.ErrRemoteToken.
func (c *Client) FetchToken(ctx context.Context, tokenID string) (passport.RemoteToken, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return passport.RemoteToken{}, c.fail(tokenID, "INVALID_TOKEN_ID", errors.New("empty token id"))
	}
	path := "/token/" + url.PathEscape(tokenID)

	var out passport.RemoteToken
	backoff := retry.WithMaxRetries(c.cfg.MaxRetries, retry.NewExponential(c.cfg.RetryBase))
	attempt := 0

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		tok, retryable, err := c.fetchOnce(ctx, path)
		if err != nil {
			if retryable {
				c.logger.WarnContext(ctx, "remote token fetch attempt failed", "token_id", tokenID, "attempt", attempt, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		out = tok
		return nil
	})
	if err != nil {
		return passport.RemoteToken{}, c.fail(tokenID, "REMOTE_TOKEN_FETCH", err)
	}
	if out.TokenID == "" {
		out.TokenID = tokenID
	}
	return out, nil
}

func (c *Client) fetchOnce(ctx context.Context, path string) (passport.RemoteToken, bool, error) {
	full, err := c.SignedURL(http.MethodGet, path)
	if err != nil {
		return passport.RemoteToken{}, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return passport.RemoteToken{}, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return passport.RemoteToken{}, false, err
		}
		return passport.RemoteToken{}, true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return passport.RemoteToken{}, true, err
	}

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return passport.RemoteToken{}, true, fmt.Errorf("remote status %d", resp.StatusCode)
	}

	var parsed tokenResponse
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&parsed); err != nil {
		return passport.RemoteToken{}, false, fmt.Errorf("invalid response format (status %d): %v", resp.StatusCode, err)
	}
	if !parsed.Status || parsed.Data == nil {
		msg := parsed.Message
		if msg == "" {
			msg = "negative response"
		}
		return passport.RemoteToken{}, false, fmt.Errorf("remote status %d: %s", resp.StatusCode, msg)
	}
	if parsed.Data.Token == "" {
		return passport.RemoteToken{}, false, errors.New("response carries no token")
	}

	expireAt, err := parseTimestamp(parsed.Data.ExpireAt)
	if err != nil {
		return passport.RemoteToken{}, false, fmt.Errorf("expire_at: %v", err)
	}
	createdAt, err := parseTimestamp(parsed.Data.CreateAt)
	if err != nil {
		createdAt = time.Time{}
	}

	return passport.RemoteToken{
		TokenID:   parsed.Data.TokenID,
		Token:     parsed.Data.Token,
		ExpireAt:  expireAt,
		CreatedAt: createdAt,
	}, false, nil
}

func (c *Client) fail(tokenID, code string, err error) error {
	return oops.
		In("remote").
		Code(code).
		With("token_id", tokenID).
		With("base_url", c.cfg.BaseURL).
		Wrap(fmt.Errorf("%w: %v", passport.ErrRemoteToken, err))
}

// parseTimestamp accepts unix milliseconds as a number or numeric string,
// RFC 3339, or a "2006-01-02 15:04:05" UTC datetime.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, errors.New("missing timestamp")
	}

	s := string(raw)
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}

	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.UnixMilli(int64(f)), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateTime, s, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func randomSalt() (string, error) {
	buf := make([]byte, saltBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
