package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultTTL bounds how long an idle conversation is kept.
const DefaultTTL = 24 * time.Hour

// Store holds conversation state keyed by user id.
type Store interface {
	// Get returns the state and whether it exists.
	Get(ctx context.Context, userID string) (*State, bool, error)
	// Ensure returns the existing state or creates and saves an idle one.
	Ensure(ctx context.Context, userID string) (*State, error)
	Save(ctx context.Context, state *State) error
	Delete(ctx context.Context, userID string) error
}

// MemoryStore keeps state in process memory. Entries expire after the TTL
// without activity; everything is lost on restart.
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore creates an in-memory store. ttl <= 0 uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{cache: cache.New(ttl, ttl/2)}
}

func (m *MemoryStore) Get(_ context.Context, userID string) (*State, bool, error) {
	v, ok := m.cache.Get(userID)
	if !ok {
		return nil, false, nil
	}
	s := v.(State)
	return &s, true, nil
}

func (m *MemoryStore) Ensure(ctx context.Context, userID string) (*State, error) {
	if s, ok, _ := m.Get(ctx, userID); ok {
		return s, nil
	}
	s := NewState(userID)
	if err := m.Save(ctx, s); err != nil {
		return nil, err
	}
	log.Debug().Str("userId", userID).Msg("Conversation state created")
	return s, nil
}

// Save stores a copy of state and refreshes its expiry.
func (m *MemoryStore) Save(_ context.Context, state *State) error {
	if state == nil || state.UserID == "" {
		return fmt.Errorf("conversation state without user id")
	}
	m.cache.Set(state.UserID, *state, cache.DefaultExpiration)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, userID string) error {
	m.cache.Delete(userID)
	return nil
}

// Len reports the number of live conversations.
func (m *MemoryStore) Len() int {
	return m.cache.ItemCount()
}

const redisKeyPrefix = "conversation:"

// RedisStore keeps state in Redis as JSON so conversations survive restarts
// and can be shared between replicas.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// NewRedisStore creates a Redis-backed store. ttl <= 0 uses DefaultTTL.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func redisKey(userID string) string {
	return redisKeyPrefix + userID
}

func (r *RedisStore) Get(ctx context.Context, userID string) (*State, bool, error) {
	raw, err := r.client.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get conversation: %w", err)
	}

	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false, fmt.Errorf("decode conversation: %w", err)
	}
	return &s, true, nil
}

func (r *RedisStore) Ensure(ctx context.Context, userID string) (*State, error) {
	s, ok, err := r.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ok {
		return s, nil
	}
	s = NewState(userID)
	if err := r.Save(ctx, s); err != nil {
		return nil, err
	}
	log.Debug().Str("userId", userID).Msg("Conversation state created")
	return s, nil
}

func (r *RedisStore) Save(ctx context.Context, state *State) error {
	if state == nil || state.UserID == "" {
		return fmt.Errorf("conversation state without user id")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	if err := r.client.Set(ctx, redisKey(state.UserID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set conversation: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, redisKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis delete conversation: %w", err)
	}
	return nil
}
