package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderCache_MissThenHit(t *testing.T) {
	c, err := NewLoaderCache[string, string](10)
	require.NoError(t, err)

	var loads atomic.Int32

	load := func(_ context.Context, key string) (string, error) {
		loads.Add(1)

		return "v-" + key, nil
	}

	v, hit, err := c.Get(context.Background(), "sorry", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "v-sorry", v)

	v, hit, err = c.Get(context.Background(), "sorry", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "v-sorry", v)

	assert.Equal(t, int32(1), loads.Load())
	assert.Equal(t, 1, c.Len())
}

func TestLoaderCache_CoalescesConcurrentMisses(t *testing.T) {
	c, err := NewLoaderCache[string, int](10)
	require.NoError(t, err)

	var loads atomic.Int32

	release := make(chan struct{})
	load := func(context.Context, string) (int, error) {
		loads.Add(1)
		<-release

		return 42, nil
	}

	const callers = 10

	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
	)

	started.Add(callers)

	for range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			started.Done()

			v, _, err := c.Get(context.Background(), "hello", load)
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}

	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	// Callers that arrive after the load finished hit the cache instead.
	assert.Equal(t, int32(1), loads.Load())
}

func TestLoaderCache_LoadErrorIsNotCached(t *testing.T) {
	c, err := NewLoaderCache[string, string](10)
	require.NoError(t, err)

	errProvider := errors.New("provider down")
	calls := 0
	load := func(context.Context, string) (string, error) {
		calls++
		if calls == 1 {
			return "", errProvider
		}

		return "ok", nil
	}

	_, _, err = c.Get(context.Background(), "k", load)
	require.ErrorIs(t, err, errProvider)
	assert.Equal(t, 0, c.Len())

	v, hit, err := c.Get(context.Background(), "k", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "ok", v)
}

func TestLoaderCache_CallerCancelDoesNotAbortLoad(t *testing.T) {
	c, err := NewLoaderCache[string, string](10)
	require.NoError(t, err)

	release := make(chan struct{})
	done := make(chan struct{})
	load := func(ctx context.Context, _ string) (string, error) {
		defer close(done)

		<-release

		return "late", ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = c.Get(ctx, "k", load)
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	<-done

	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 5*time.Millisecond)

	v, hit, err := c.Get(context.Background(), "k", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "late", v)
}

func TestNewLoaderCache_InvalidSize(t *testing.T) {
	_, err := NewLoaderCache[string, int](0)
	require.Error(t, err)
}
