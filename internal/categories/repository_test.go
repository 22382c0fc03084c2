package categories

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensinator/internal/core"
)

type fakeFetcher struct {
	calls atomic.Int32
	delay time.Duration
	err   error
	cats  []core.Category
}

func (f *fakeFetcher) ListCategories(context.Context) ([]core.Category, error) {
	f.calls.Add(1)
	time.Sleep(f.delay)
	if f.err != nil {
		return nil, f.err
	}
	return f.cats, nil
}

func TestAllLoadsOnce(t *testing.T) {
	f := &fakeFetcher{delay: 20 * time.Millisecond, cats: []core.Category{{CategoryID: core.Int64(8), Name: "Food"}}}
	repo := NewRepository(f, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cats, err := repo.All(context.Background())
			assert.NoError(t, err)
			assert.Len(t, cats, 1)
		}()
	}
	wg.Wait()

	_, err := repo.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestAllDoesNotCacheFailures(t *testing.T) {
	f := &fakeFetcher{err: errors.New("boom")}
	repo := NewRepository(f, 0, nil)

	_, err := repo.All(context.Background())
	require.Error(t, err)

	f.err = nil
	f.cats = []core.Category{{Name: "Food"}}
	cats, err := repo.All(context.Background())
	require.NoError(t, err)
	assert.Len(t, cats, 1)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestRefreshReloads(t *testing.T) {
	f := &fakeFetcher{cats: []core.Category{{Name: "Food"}}}
	repo := NewRepository(f, 0, nil)
	_, _ = repo.All(context.Background())
	repo.Refresh()
	_, _ = repo.All(context.Background())
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestName(t *testing.T) {
	f := &fakeFetcher{cats: []core.Category{{CategoryID: core.Int64(8), Name: "Meals"}}}
	repo := NewRepository(f, 0, nil)
	ctx := context.Background()

	assert.Equal(t, "Meals", repo.Name(ctx, 8))
	assert.Equal(t, "Travel", repo.Name(ctx, 24))
	assert.Equal(t, "Unknown", repo.Name(ctx, 0))

	offline := NewRepository(&fakeFetcher{err: errors.New("down")}, 0, nil)
	assert.Equal(t, "Food", offline.Name(ctx, 8))
}
