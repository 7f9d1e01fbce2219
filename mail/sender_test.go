package mail

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/smtp"
	"testing"
	"time"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func captureSend(c *captured, err error) SendFunc {
	return func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		c.addr = addr
		c.auth = a
		c.from = from
		c.to = to
		c.msg = string(msg)
		return err
	}
}

func TestSMTPSenderSendsRenderedCode(t *testing.T) {
	var got captured
	s, err := NewSMTPSender(Config{
		Host:     "smtp.example.com",
		Username: "bot",
		Password: "pw",
		From:     "noreply@example.com",
	}, WithSendFunc(captureSend(&got, nil)))
	require.NoError(t, err)

	require.NoError(t, s.SendCode(context.Background(), "alice@example.com", "a1b2c3d4", 3000*time.Second))

	assert.Equal(t, "smtp.example.com:587", got.addr)
	assert.NotNil(t, got.auth)
	assert.Equal(t, "noreply@example.com", got.from)
	assert.Equal(t, []string{"alice@example.com"}, got.to)
	assert.Contains(t, got.msg, "To: alice@example.com\r\n")
	assert.Contains(t, got.msg, "Content-Type: text/html")
	assert.Contains(t, got.msg, "a1b2c3d4")
	assert.Contains(t, got.msg, "50 minutes")
}

func TestSMTPSenderWithoutAuth(t *testing.T) {
	var got captured
	s, err := NewSMTPSender(Config{Host: "localhost", Port: 25, From: "a@b.c"}, WithSendFunc(captureSend(&got, nil)))
	require.NoError(t, err)

	require.NoError(t, s.SendCode(context.Background(), "x@y.z", "00000000", time.Minute))
	assert.Equal(t, "localhost:25", got.addr)
	assert.Nil(t, got.auth)
}

func TestSMTPSenderEscapesTemplateInput(t *testing.T) {
	var got captured
	s, err := NewSMTPSender(Config{Host: "localhost", From: "a@b.c"}, WithSendFunc(captureSend(&got, nil)))
	require.NoError(t, err)

	require.NoError(t, s.SendCode(context.Background(), "x@y.z", "<b>", time.Minute))
	assert.NotContains(t, got.msg, "<strong><b></strong>")
	assert.Contains(t, got.msg, "&lt;b&gt;")
}

func TestSMTPSenderSendFailure(t *testing.T) {
	var got captured
	s, err := NewSMTPSender(Config{Host: "localhost", From: "a@b.c"}, WithSendFunc(captureSend(&got, errors.New("connection refused"))))
	require.NoError(t, err)

	err = s.SendCode(context.Background(), "x@y.z", "00000000", time.Minute)
	require.Error(t, err)

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.EqualValues(t, "MAIL_SEND", oopsErr.Code())
}

func TestSMTPSenderCanceledContext(t *testing.T) {
	called := false
	s, err := NewSMTPSender(Config{Host: "localhost", From: "a@b.c"}, WithSendFunc(func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.SendCode(ctx, "x@y.z", "00000000", time.Minute), context.Canceled)
	assert.False(t, called)
}

func TestNewSMTPSenderValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing host", Config{From: "a@b.c"}},
		{"missing from", Config{Host: "localhost"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSMTPSender(tc.cfg)
			require.Error(t, err)
			oopsErr, ok := oops.AsOops(err)
			require.True(t, ok)
			assert.EqualValues(t, "MAIL_CONFIG", oopsErr.Code())
		})
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, s.SendCode(context.Background(), "alice@example.com", "a1b2c3d4", time.Minute))
	assert.Contains(t, buf.String(), `"code":"a1b2c3d4"`)
	assert.Contains(t, buf.String(), `"component":"mail"`)
}
