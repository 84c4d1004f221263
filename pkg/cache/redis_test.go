package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, client
}

func TestNewRedisStore_PanicsOnNilClient(t *testing.T) {
	require.Panics(t, func() { NewRedisStore(nil, 0) })
}

func TestRedisStore_RoundTrip(t *testing.T) {
	_, client := setupMiniredis(t)
	s := NewRedisStore(client, 0)

	payload := []byte(`{"data":[{"id":"ev1"}]}`)
	require.NoError(t, s.Store(boundedSig, payload))

	got, err := s.Lookup(boundedSig)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}

func TestRedisStore_Miss(t *testing.T) {
	_, client := setupMiniredis(t)
	s := NewRedisStore(client, 0)

	_, err := s.Lookup("never stored")
	require.True(t, errors.Is(err, ErrMiss))
}

func TestRedisStore_ValidityBecomesTTL(t *testing.T) {
	mr, client := setupMiniredis(t)
	s := NewRedisStore(client, time.Hour)

	require.NoError(t, s.Store("iam user list", []byte(`{"data":[]}`)))
	require.NoError(t, s.Store(boundedSig, []byte(`{"data":[]}`)))

	// Unbounded entries carry the validity window as TTL.
	require.Equal(t, time.Hour, mr.TTL(redisKeyPrefix+"iam user list"))

	// Bounded entries are immortal.
	require.Equal(t, time.Duration(0), mr.TTL(redisKeyPrefix+boundedSig))

	// Once the validity window elapses, the unbounded entry is a miss.
	mr.FastForward(2 * time.Hour)
	_, err := s.Lookup("iam user list")
	require.True(t, errors.Is(err, ErrMiss))

	_, err = s.Lookup(boundedSig)
	require.NoError(t, err)
}
