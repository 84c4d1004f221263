package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// redisKeyPrefix namespaces export cache entries in a shared Redis.
const redisKeyPrefix = "audit:"

// RedisStore keeps the cache contract on a Redis backend.
//
// The validity window for non-bounded signatures becomes a key TTL, so
// Redis expires stale entries on its own; bounded signatures are stored
// without TTL and live until explicitly deleted.
type RedisStore struct {
	client   *redis.Client
	validity time.Duration
	ctx      context.Context
	logger   zerolog.Logger
}

// NewRedisStore creates a Redis-backed store. validity bounds the age of
// entries for non-time-bounded signatures; zero means DefaultValidity.
func NewRedisStore(client *redis.Client, validity time.Duration) *RedisStore {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &RedisStore{
		client:   client,
		validity: validity,
		ctx:      context.Background(),
		logger:   log.With().Str("component", "cache-redis").Logger(),
	}
}

// Lookup returns the payload stored for signature, or ErrMiss.
func (s *RedisStore) Lookup(signature string) ([]byte, error) {
	payload, err := s.client.Get(s.ctx, redisKeyPrefix+signature).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMisses.Inc()
			return nil, ErrMiss
		}
		cacheErrors.WithLabelValues("lookup").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}
	cacheHits.WithLabelValues("redis").Inc()
	return payload, nil
}

// Store writes payload under signature. Non-bounded signatures get the
// validity window as TTL; bounded ones are kept forever.
func (s *RedisStore) Store(signature string, payload []byte) error {
	var ttl time.Duration
	if !IsBounded(signature) {
		ttl = s.validity
	}

	if err := s.client.Set(s.ctx, redisKeyPrefix+signature, payload, ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("store").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	s.logger.Debug().
		Str("signature", signature).
		Dur("ttl", ttl).
		Msg("Entry stored")

	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
