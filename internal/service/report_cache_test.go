package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/survey-review-api/internal/repository"
)

type failingCacheRepo struct {
	getErr error
	setErr error
	sets   int
}

func (f *failingCacheRepo) Get(context.Context, string) ([]byte, error) { return nil, f.getErr }

func (f *failingCacheRepo) Set(context.Context, string, []byte, time.Duration) error {
	f.sets++
	return f.setErr
}

func (f *failingCacheRepo) DeleteByPattern(context.Context, string) (int, error) {
	return 0, errors.New("redis down")
}

func countingCompute(calls *int32, body string) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) {
		atomic.AddInt32(calls, 1)
		return []byte(body), nil
	}
}

func TestReportCacheHitAndMiss(t *testing.T) {
	metrics := NewMetricsService()
	cache := NewReportCache(repository.NewMemoryCacheRepository(), metrics, time.Hour, zap.NewNop(), true)
	ctx := context.Background()
	var calls int32

	body, hit, err := cache.FetchStatus(ctx, "resp-1", "fp-a", 0, countingCompute(&calls, "pdf-a"))
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "pdf-a", string(body))

	body, hit, err = cache.FetchStatus(ctx, "resp-1", "fp-a", 0, countingCompute(&calls, "unused"))
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "pdf-a", string(body))
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	snap := metrics.Snapshot()
	assert.EqualValues(t, 1, snap.CacheHits)
	assert.EqualValues(t, 1, snap.CacheMisses)
	count, err := testutil.GatherAndCount(metrics.Registry(), "report_cache_hits_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestReportCacheRendersAgainForNewFingerprint(t *testing.T) {
	cache := NewReportCache(repository.NewMemoryCacheRepository(), nil, time.Hour, nil, true)
	var calls int32

	_, err := cache.Fetch(context.Background(), "resp-1", "fp-a", 0, countingCompute(&calls, "v1"))
	require.NoError(t, err)
	body, err := cache.Fetch(context.Background(), "resp-1", "fp-b", 0, countingCompute(&calls, "v2"))
	require.NoError(t, err)

	assert.Equal(t, "v2", string(body))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestReportCacheCoalescesConcurrentMisses(t *testing.T) {
	cache := NewReportCache(repository.NewMemoryCacheRepository(), nil, time.Hour, nil, true)
	var calls int32
	release := make(chan struct{})
	compute := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte("pdf"), nil
	}

	const callers = 16
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, err := cache.Fetch(context.Background(), "resp-1", "fp", 0, compute)
			if err == nil {
				results[i] = string(body)
			}
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "pdf", r)
	}
}

func TestReportCacheComputeSurvivesCallerCancel(t *testing.T) {
	cache := NewReportCache(repository.NewMemoryCacheRepository(), nil, time.Hour, nil, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body, err := cache.Fetch(ctx, "resp-1", "fp", 0, func(ctx context.Context) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []byte("pdf"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(body))
}

func TestReportCacheDoesNotStoreFailures(t *testing.T) {
	cache := NewReportCache(repository.NewMemoryCacheRepository(), nil, time.Hour, nil, true)
	var calls int32
	boom := func(context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("boom")
	}

	_, err := cache.Fetch(context.Background(), "resp-1", "fp", 0, boom)
	require.EqualError(t, err, "boom")
	_, err = cache.Fetch(context.Background(), "resp-1", "fp", 0, boom)
	require.Error(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestReportCacheBackendErrorsAreMisses(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	repo := &failingCacheRepo{getErr: errors.New("redis down"), setErr: errors.New("redis down")}
	cache := NewReportCache(repo, nil, time.Hour, zap.New(core), true)
	var calls int32

	body, err := cache.Fetch(context.Background(), "resp-1", "fp", 0, countingCompute(&calls, "pdf"))
	require.NoError(t, err)
	assert.Equal(t, "pdf", string(body))
	assert.Equal(t, 1, repo.sets)
	assert.NotZero(t, logs.FilterMessage("report cache get failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("report cache set failed").Len())
}

func TestReportCacheDisabledAlwaysComputes(t *testing.T) {
	repo := repository.NewMemoryCacheRepository()
	cache := NewReportCache(repo, nil, time.Hour, nil, false)
	var calls int32

	for i := 0; i < 2; i++ {
		_, err := cache.Fetch(context.Background(), "resp-1", "fp", 0, countingCompute(&calls, "pdf"))
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestReportCacheReset(t *testing.T) {
	repo := repository.NewMemoryCacheRepository()
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, "unrelated", []byte("x"), time.Hour))
	cache := NewReportCache(repo, nil, time.Hour, nil, true)
	var calls int32

	_, err := cache.Fetch(ctx, "resp-1", "fp", 0, countingCompute(&calls, "pdf"))
	require.NoError(t, err)
	_, err = cache.Fetch(ctx, "resp-2", "fp", 0, countingCompute(&calls, "pdf"))
	require.NoError(t, err)

	deleted, err := cache.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	_, err = repo.Get(ctx, "unrelated")
	assert.NoError(t, err)
	_, err = cache.Fetch(ctx, "resp-1", "fp", 0, countingCompute(&calls, "pdf"))
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))

	failing := NewReportCache(&failingCacheRepo{}, nil, time.Hour, nil, true)
	_, err = failing.Reset(ctx)
	assert.Error(t, err)
}

func TestReportCacheKey(t *testing.T) {
	assert.Equal(t, "report:resp-1:abc", ReportCacheKey("resp-1", "abc"))
}
