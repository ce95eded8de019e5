package authstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// stateKeyPrefix namespaces state records in a shared Redis instance.
const stateKeyPrefix = "cnoauth:state:"

// RedisStore implements Store on Redis. Records carry a TTL matching the
// state window, so Redis expires abandoned states on its own and
// DeleteOlderThan has nothing to do.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisStore constructs a Redis-backed state store. The ttl should match
// the flow's state window (5 minutes by default).
func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Create(ctx context.Context, state *State) error {
	if state == nil || state.State == "" {
		return ErrInvalidState
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := s.client.Set(ctx, stateKeyPrefix+state.State, payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("create state: %w", err)
	}
	return nil
}

// Consume relies on GETDEL: fetch and delete are a single command, so only
// one of two racing consumers sees the value.
func (s *RedisStore) Consume(ctx context.Context, token string) (*State, error) {
	payload, err := s.client.GetDel(ctx, stateKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consume state: %w", err)
	}

	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return &state, nil
}

// DeleteOlderThan is a no-op: Redis evicts states via the per-key TTL.
func (s *RedisStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}
