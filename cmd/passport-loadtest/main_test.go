package main

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	assert.Equal(t, time.Duration(1), percentile(samples, 0))
	assert.Equal(t, time.Duration(5), percentile(samples, 50))
	assert.Equal(t, time.Duration(10), percentile(samples, 100))
	assert.Zero(t, percentile(nil, 50))
}

func TestNewEngineBuilds(t *testing.T) {
	client, cleanup, err := connect("")
	require.NoError(t, err)
	defer cleanup()

	engine, err := newEngine(client)
	require.NoError(t, err)
	defer engine.Close()

	cfg := engine.Config()
	assert.Equal(t, loadSalt, cfg.Verifier.Salt)
	assert.NoError(t, cfg.Validate())
}

func TestRunPhaseAgainstMiniredis(t *testing.T) {
	client, cleanup, err := connect("")
	require.NoError(t, err)
	defer cleanup()

	engine, err := newEngine(client)
	require.NoError(t, err)
	defer engine.Close()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	secrets := make([]string, 20)
	issued := runPhase(len(secrets), 4, func(i int, _ *rand.Rand) error {
		cred, err := engine.IssueSession(ctx, int64(i+1))
		if err != nil {
			return err
		}
		secrets[i] = cred.Secret
		return nil
	})
	assert.Equal(t, 20, issued.ops)
	assert.Zero(t, issued.failures)

	verified := runPhase(50, 4, func(_ int, r *rand.Rand) error {
		_, err := engine.VerifySession(ctx, secrets[r.Intn(len(secrets))])
		return err
	})
	assert.Equal(t, 50, verified.ops)
	assert.Zero(t, verified.failures)
	assert.LessOrEqual(t, verified.p50, verified.p99)
}
