package passport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/miaomc/passport/internal/verifier"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const testSalt = "test-salt"

var (
	testKeyOnce sync.Once
	testKeyPEM  []byte
	testKeyErr  error
)

func testPrivateKeyPEM(t testing.TB) []byte {
	t.Helper()
	testKeyOnce.Do(func() {
		testKeyPEM, _, testKeyErr = verifier.GenerateKeyPEM(2048)
	})
	if testKeyErr != nil {
		t.Fatalf("GenerateKeyPEM failed: %v", testKeyErr)
	}
	return testKeyPEM
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testConfig(t testing.TB) Config {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Verifier.PrivateKeyPEM = testPrivateKeyPEM(t)
	cfg.Verifier.Salt = testSalt
	cfg.Account.AllowRegister = true
	cfg.Password.BcryptCost = bcrypt.MinCost
	return cfg
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memIdentity struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]*User
	players map[string]*Player
	failErr error
}

func newMemIdentity() *memIdentity {
	return &memIdentity{
		users:   map[int64]*User{},
		players: map[string]*Player{},
	}
}

func (s *memIdentity) fail(err error) {
	s.mu.Lock()
	s.failErr = err
	s.mu.Unlock()
}

func (s *memIdentity) addUser(u User) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		s.nextID++
		u.ID = s.nextID
	} else if u.ID > s.nextID {
		s.nextID = u.ID
	}
	cp := u
	s.users[u.ID] = &cp
	return &cp
}

func (s *memIdentity) addPlayer(p Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Unix(1700000000, 0).UTC()
	}
	cp := p
	s.players[p.UUID] = &cp
}

func (s *memIdentity) deleteUser(id int64) {
	s.mu.Lock()
	delete(s.users, id)
	s.mu.Unlock()
}

func (s *memIdentity) GetPlayer(_ context.Context, playerUUID string) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	p, ok := s.players[playerUUID]
	if !ok {
		return nil, fmt.Errorf("player %s: %w", playerUUID, ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *memIdentity) ListPlayersByUser(_ context.Context, userID int64) ([]Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	var out []Player
	for _, p := range s.players {
		if p.UserID != nil && *p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *memIdentity) GetUserByID(_ context.Context, userID int64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	u, ok := s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *memIdentity) GetUserByEmail(_ context.Context, email string) (*User, error) {
	return s.findUser(func(u *User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *memIdentity) GetUserByUsername(_ context.Context, username string) (*User, error) {
	return s.findUser(func(u *User) bool { return u.Username == username })
}

func (s *memIdentity) findUser(match func(*User) bool) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	for _, u := range s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memIdentity) CreateUser(_ context.Context, in CreateUserInput) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Email, in.Email) || u.Username == in.Username {
			return nil, ErrDuplicate
		}
	}
	s.nextID++
	u := &User{
		ID:           s.nextID,
		Email:        in.Email,
		Username:     in.Username,
		Nickname:     in.Nickname,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (s *memIdentity) CreatePlayer(_ context.Context, in CreatePlayerInput) (*Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	if existing, ok := s.players[in.UUID]; ok && existing.UserID != nil {
		return nil, ErrDuplicate
	}
	p := &Player{
		UUID:      in.UUID,
		Name:      in.Name,
		UserID:    in.UserID,
		IsPrimary: in.IsPrimary,
		CreatedAt: time.Now().UTC(),
	}
	s.players[in.UUID] = p
	cp := *p
	return &cp, nil
}

type fakeRemote struct {
	mu     sync.Mutex
	tokens map[string]RemoteToken
	err    error
	calls  int
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{tokens: map[string]RemoteToken{}}
}

func (r *fakeRemote) put(tok RemoteToken) {
	r.mu.Lock()
	r.tokens[tok.TokenID] = tok
	r.mu.Unlock()
}

func (r *fakeRemote) FetchToken(_ context.Context, tokenID string) (RemoteToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return RemoteToken{}, r.err
	}
	tok, ok := r.tokens[tokenID]
	if !ok {
		return RemoteToken{}, fmt.Errorf("%w: token %s not found", ErrRemoteToken, tokenID)
	}
	return tok, nil
}

type sentCode struct {
	Email string
	Code  string
	TTL   time.Duration
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentCode
	err  error
}

func (m *recordingMailer) SendCode(_ context.Context, email, code string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentCode{Email: email, Code: code, TTL: ttl})
	return nil
}

func (m *recordingMailer) last() (sentCode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return sentCode{}, false
	}
	return m.sent[len(m.sent)-1], true
}

type testEnv struct {
	engine   *Engine
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	identity *memIdentity
	remote   *fakeRemote
	mailer   *recordingMailer
	clock    *fakeClock
}

func newTestEnv(t testing.TB, cfg Config, sink AuditSink) *testEnv {
	t.Helper()

	mr, rdb := newTestRedis(t)
	env := &testEnv{
		mr:       mr,
		rdb:      rdb,
		identity: newMemIdentity(),
		remote:   newFakeRemote(),
		mailer:   &recordingMailer{},
		clock:    newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}

	builder := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIdentityStore(env.identity).
		WithRemoteTokenClient(env.remote).
		WithMailSender(env.mailer).
		WithClock(env.clock)
	if sink != nil {
		builder = builder.WithAuditSink(sink)
	}

	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	env.engine = engine

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
	})
	return env
}

// sealFor seals a claim for the env's key and registers its remote token.
func (env *testEnv) sealFor(t testing.TB, tokenID, playerUUID, playerName, remoteToken string, expireAt time.Time) (string, string) {
	t.Helper()

	claim := verifier.Claim{
		TokenID:    tokenID,
		PlayerUUID: playerUUID,
		PlayerName: playerName,
		Action:     "login",
		ExpireAt:   verifier.Millis(expireAt.UnixMilli()),
	}
	sealed, err := verifier.Seal(env.engine.PublicKey(), claim, "1")
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	env.remote.put(RemoteToken{
		TokenID:   tokenID,
		Token:     remoteToken,
		ExpireAt:  expireAt,
		CreatedAt: expireAt.Add(-5 * time.Minute),
	})
	return sealed.Envelope, verifier.ComputeHash(sealed.PlainBase64, remoteToken, testSalt)
}

func int64Ptr(v int64) *int64 {
	return &v
}
