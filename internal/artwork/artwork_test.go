package artwork

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func constant(url string, err error) FinderFunc {
	return func(ctx context.Context, name string) (string, error) {
		return url, err
	}
}

func TestChainReturnsFirstHit(t *testing.T) {
	chain := NewChain(time.Second,
		constant("", errors.New("steam down")),
		constant("", nil),
		constant("https://img/igdb.jpg", nil),
		constant("https://img/never.jpg", nil),
	)

	url, err := chain.FindImage(context.Background(), "Chess")
	require.NoError(t, err)
	assert.Equal(t, "https://img/igdb.jpg", url)
}

func TestChainUnavailable(t *testing.T) {
	chain := NewChain(time.Second, constant("", errors.New("nope")))

	_, err := chain.FindImage(context.Background(), "Chess")
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = NewChain(0).FindImage(context.Background(), "Chess")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestChainTimesOutSlowFinder(t *testing.T) {
	slow := FinderFunc(func(ctx context.Context, name string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	chain := NewChain(20*time.Millisecond, slow, constant("https://img/fast.jpg", nil))

	start := time.Now()
	url, err := chain.FindImage(context.Background(), "Chess")
	require.NoError(t, err)
	assert.Equal(t, "https://img/fast.jpg", url)
	assert.Less(t, time.Since(start), time.Second)
}

func TestChainStopsWhenCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewChain(time.Second, constant("https://img/x.jpg", nil)).FindImage(ctx, "Chess")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCacheRemembersHitsAndMisses(t *testing.T) {
	var calls atomic.Int32
	finder := FinderFunc(func(ctx context.Context, name string) (string, error) {
		calls.Add(1)
		if name == "Chess" {
			return "https://img/chess.jpg", nil
		}
		return "", ErrUnavailable
	})
	cache := NewCache(finder, time.Hour)

	for i := 0; i < 3; i++ {
		url, err := cache.FindImage(context.Background(), "Chess")
		require.NoError(t, err)
		assert.Equal(t, "https://img/chess.jpg", url)

		_, err = cache.FindImage(context.Background(), "Obscure")
		assert.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, cache.Len())
}

func TestCacheExpires(t *testing.T) {
	var calls atomic.Int32
	finder := FinderFunc(func(ctx context.Context, name string) (string, error) {
		calls.Add(1)
		return "https://img/x.jpg", nil
	})
	cache := NewCache(finder, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	_, err := cache.FindImage(context.Background(), "X")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	cache.PurgeExpired()
	assert.Equal(t, 0, cache.Len())

	_, err = cache.FindImage(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCacheDoesNotRememberCancellation(t *testing.T) {
	cache := NewCache(constant("", context.Canceled), time.Hour)

	_, err := cache.FindImage(context.Background(), "X")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, cache.Len())
}
