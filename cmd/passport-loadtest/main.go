// Command passport-loadtest measures session credential issuance, lookup
// and renewal against Redis or an in-process miniredis.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/miaomc/passport"
	"github.com/miaomc/passport/internal/verifier"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

// syntheticUsers answers every user lookup with a generated user. Player and
// write operations are not used by the session phases.
type syntheticUsers struct{}

func (syntheticUsers) GetUserByID(_ context.Context, id int64) (*passport.User, error) {
	return &passport.User{ID: id, Username: "load-" + strconv.FormatInt(id, 10), Role: "default"}, nil
}

func (syntheticUsers) GetPlayer(context.Context, string) (*passport.Player, error) {
	return nil, passport.ErrNotFound
}

func (syntheticUsers) ListPlayersByUser(context.Context, int64) ([]passport.Player, error) {
	return nil, nil
}

func (syntheticUsers) GetUserByEmail(context.Context, string) (*passport.User, error) {
	return nil, passport.ErrNotFound
}

func (syntheticUsers) GetUserByUsername(context.Context, string) (*passport.User, error) {
	return nil, passport.ErrNotFound
}

func (syntheticUsers) CreateUser(context.Context, passport.CreateUserInput) (*passport.User, error) {
	return nil, passport.ErrValidation
}

func (syntheticUsers) CreatePlayer(context.Context, passport.CreatePlayerInput) (*passport.Player, error) {
	return nil, passport.ErrValidation
}

type noRemote struct{}

func (noRemote) FetchToken(context.Context, string) (passport.RemoteToken, error) {
	return passport.RemoteToken{}, passport.ErrRemoteToken
}

func main() {
	var (
		sessions    = pflag.Int("sessions", 50000, "number of session credentials to seed")
		concurrency = pflag.Int("concurrency", 256, "number of concurrent workers")
		ops         = pflag.Int("ops", 200000, "operations per phase")
		redisAddr   = pflag.String("redis-addr", "", "redis address; REDIS_ADDR or miniredis when empty")
	)
	pflag.Parse()

	if *sessions <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "sessions, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	client, cleanup, err := connect(*redisAddr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer cleanup()

	engine, err := newEngine(client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()

	fmt.Printf("seeding %d sessions...\n", *sessions)
	secrets := make([]string, *sessions)
	seed := runPhase(*sessions, *concurrency, func(i int, _ *rand.Rand) error {
		cred, err := engine.IssueSession(ctx, int64(i+1))
		if err != nil {
			return err
		}
		secrets[i] = cred.Secret
		return nil
	})

	verify := runPhase(*ops, *concurrency, func(_ int, r *rand.Rand) error {
		_, err := engine.VerifySession(ctx, secrets[r.Intn(len(secrets))])
		return err
	})

	// Credentials issued below the renewal threshold are renewed on their
	// first verification and then served like any other.
	renew := runPhase(*ops, *concurrency, func(i int, _ *rand.Rand) error {
		uid := strconv.Itoa(i + 1)
		cred, err := engine.Issue(ctx, passport.KindSession, uid, uid, time.Minute)
		if err != nil {
			return err
		}
		res, err := engine.VerifySession(ctx, cred.Secret)
		if err != nil {
			return err
		}
		if !res.WasRenewed {
			return fmt.Errorf("credential %d not renewed", i)
		}
		return nil
	})

	fmt.Println("---- results ----")
	printStats("issue", seed)
	printStats("verify", verify)
	printStats("issue+renew", renew)
}

func connect(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

// loadSalt stands in for the service salt; no envelope leaves this process.
const loadSalt = "passport-loadtest"

func newEngine(client redis.UniversalClient) (*passport.Engine, error) {
	priv, _, err := verifier.GenerateKeyPEM(2048)
	if err != nil {
		return nil, err
	}
	cfg := passport.DefaultConfig()
	cfg.Verifier.PrivateKeyPEM = priv
	cfg.Verifier.Salt = loadSalt
	cfg.Audit.Enabled = false

	return passport.New().
		WithConfig(cfg).
		WithRedis(client).
		WithIdentityStore(syntheticUsers{}).
		WithRemoteTokenClient(noRemote{}).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithLatencyHistograms(true).
		Build()
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

// runPhase runs op ops times across concurrency workers. Each worker owns
// its random source.
func runPhase(ops, concurrency int, op func(i int, r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, ops)
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			local := make([]time.Duration, 0, ops/concurrency+1)
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					break
				}
				t0 := time.Now()
				if err := op(i, r); err != nil {
					atomic.AddInt64(&failures, 1)
				}
				local = append(local, time.Since(t0))
			}
			mu.Lock()
			latencies = append(latencies, local...)
			mu.Unlock()
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(sorted []time.Duration, p int) time.Duration {
	switch {
	case len(sorted) == 0:
		return 0
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[len(sorted)-1]
	}
	return sorted[(len(sorted)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%-12s ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
