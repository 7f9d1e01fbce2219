package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCredentialNotFound         = errors.New("credential not found")
	ErrCredentialRedisUnavailable = errors.New("credential redis unavailable")
)

// ttlMissing is what Redis TTL returns for a key that does not exist.
const ttlMissing = time.Duration(-2)

// CredentialStore persists opaque credentials as string values with a TTL.
// Keys are supplied fully formed (kind prefix + secret).
type CredentialStore struct {
	redis redis.UniversalClient
}

func NewCredentialStore(redisClient redis.UniversalClient) *CredentialStore {
	return &CredentialStore{redis: redisClient}
}

// SubjectSetKey is the per-user set recording issued session credentials.
func SubjectSetKey(subjectID string) string {
	return "user:" + subjectID + ":introspect_tokens"
}

func (s *CredentialStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCredentialRedisUnavailable, err)
	}
	return n > 0, nil
}

// Put writes value under key with ttl. When trackSet is non-empty the key is
// also added to that set in the same pipeline.
func (s *CredentialStore) Put(ctx context.Context, key, value string, ttl time.Duration, trackSet string) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: non-positive ttl", ErrCredentialRedisUnavailable)
	}

	_, err := s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, ttl)
		if trackSet != "" {
			pipe.SAdd(ctx, trackSet, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialRedisUnavailable, err)
	}
	return nil
}

// Get returns the stored value for key.
func (s *CredentialStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCredentialNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCredentialRedisUnavailable, err)
	}
	return val, nil
}

// Lookup returns the value and the remaining TTL of key in one round-trip.
// A key without expiry reports a negative TTL.
func (s *CredentialStore) Lookup(ctx context.Context, key string) (string, time.Duration, error) {
	var (
		getCmd *redis.StringCmd
		ttlCmd *redis.DurationCmd
	)
	_, err := s.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		getCmd = pipe.Get(ctx, key)
		ttlCmd = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", 0, fmt.Errorf("%w: %v", ErrCredentialRedisUnavailable, err)
	}

	val, err := getCmd.Result()
	if errors.Is(err, redis.Nil) {
		return "", 0, ErrCredentialNotFound
	}
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrCredentialRedisUnavailable, err)
	}

	ttl, err := ttlCmd.Result()
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrCredentialRedisUnavailable, err)
	}
	if ttl == ttlMissing {
		// expired between GET and TTL
		return "", 0, ErrCredentialNotFound
	}
	return val, ttl, nil
}

// Expire resets the TTL of key. It reports ErrCredentialNotFound when the
// key vanished before the write.
func (s *CredentialStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	ok, err := s.redis.Expire(ctx, key, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCredentialRedisUnavailable, err)
	}
	if !ok {
		return ErrCredentialNotFound
	}
	return nil
}

// Members lists the keys recorded in a subject set.
func (s *CredentialStore) Members(ctx context.Context, setKey string) ([]string, error) {
	members, err := s.redis.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentialRedisUnavailable, err)
	}
	return members, nil
}

func (s *CredentialStore) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCredentialRedisUnavailable, err)
	}
	return time.Since(start), nil
}
