package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
)

type stubStore struct {
	closed atomic.Int32
}

func (s *stubStore) InsertListings(context.Context, []internship.Listing) ([]string, error) {
	return nil, nil
}

func (s *stubStore) Close() error {
	s.closed.Add(1)
	return nil
}

func TestLazyOpensOnceUnderConcurrency(t *testing.T) {
	t.Parallel()

	var opens atomic.Int32
	backend := &stubStore{}
	lazy := NewLazy(func(context.Context) (internship.ListingStore, error) {
		opens.Add(1)
		return backend, nil
	})
	require.False(t, lazy.Opened())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store, err := lazy.Store(context.Background())
			assert.NoError(t, err)
			assert.Same(t, backend, store)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), opens.Load())
	require.True(t, lazy.Opened())
}

func TestLazyRetriesAfterFailedOpen(t *testing.T) {
	t.Parallel()

	attempts := 0
	backend := &stubStore{}
	lazy := NewLazy(func(context.Context) (internship.ListingStore, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("bad credentials")
		}
		return backend, nil
	})

	_, err := lazy.Store(context.Background())
	require.ErrorContains(t, err, "bad credentials")
	require.False(t, lazy.Opened())

	store, err := lazy.Store(context.Background())
	require.NoError(t, err)
	require.Same(t, backend, store)
	require.Equal(t, 2, attempts)
}

func TestLazyClose(t *testing.T) {
	t.Parallel()

	backend := &stubStore{}
	lazy := NewLazy(func(context.Context) (internship.ListingStore, error) {
		return backend, nil
	})

	require.NoError(t, NewLazy(nil).Close(), "closing an unopened handle is a no-op")

	_, err := lazy.Store(context.Background())
	require.NoError(t, err)
	require.NoError(t, lazy.Close())
	require.Equal(t, int32(1), backend.closed.Load())

	_, err = lazy.Store(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	require.False(t, lazy.Opened())
}
