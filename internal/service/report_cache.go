package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	appErrors "github.com/noah-isme/survey-review-api/pkg/errors"
)

const reportKeyPrefix = "report:"

// CacheRepository abstracts storage for rendered payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) (int, error)
}

// ReportCache stores rendered reports keyed by subject and fingerprint and
// guarantees a single render per key among concurrent callers.
type ReportCache struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
	group      singleflight.Group
}

// NewReportCache constructs a report cache.
func NewReportCache(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *ReportCache {
	if defaultTTL <= 0 {
		defaultTTL = 12 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportCache{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether rendered reports are stored.
func (c *ReportCache) Enabled() bool {
	return c != nil && c.enabled && c.repo != nil
}

// ReportCacheKey builds the storage key for a subject and fingerprint.
func ReportCacheKey(key, fingerprint string) string {
	return reportKeyPrefix + key + ":" + fingerprint
}

// Fetch returns the cached report for (key, fingerprint) or renders it with
// compute and stores the result for ttl.
func (c *ReportCache) Fetch(ctx context.Context, key, fingerprint string, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	body, _, err := c.FetchStatus(ctx, key, fingerprint, ttl, compute)
	return body, err
}

type flightResult struct {
	body []byte
	hit  bool
}

// FetchStatus is Fetch that also reports whether the cache was hit.
//
// Concurrent misses on the same storage key share one flight, and the
// flight re-checks storage first, so compute runs at most once per key for
// as long as the entry lives. compute receives a context detached from the
// caller's cancellation because its result is shared; it is expected to
// apply its own deadline.
func (c *ReportCache) FetchStatus(ctx context.Context, key, fingerprint string, ttl time.Duration, compute func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	storageKey := ReportCacheKey(key, fingerprint)
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	if c.Enabled() {
		if body, ok := c.lookup(ctx, storageKey, true); ok {
			return body, true, nil
		}
	}

	v, err, _ := c.group.Do(storageKey, func() (interface{}, error) {
		if c.Enabled() {
			if body, ok := c.lookup(ctx, storageKey, false); ok {
				return flightResult{body: body, hit: true}, nil
			}
		}
		body, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.store(ctx, storageKey, body, ttl)
		return flightResult{body: body}, nil
	})
	if err != nil {
		return nil, false, err
	}
	res := v.(flightResult)
	return res.body, res.hit, nil
}

// Reset removes every cached report.
func (c *ReportCache) Reset(ctx context.Context) (int, error) {
	if c == nil || c.repo == nil {
		return 0, nil
	}
	deleted, err := c.repo.DeleteByPattern(ctx, reportKeyPrefix+"*")
	if err != nil {
		c.logger.Warn("report cache reset failed", zap.Error(err))
		return deleted, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset report cache")
	}
	c.logger.Info("report cache reset", zap.Int("deleted", deleted))
	return deleted, nil
}

// lookup reads storageKey. Backend failures are treated as misses.
func (c *ReportCache) lookup(ctx context.Context, storageKey string, record bool) ([]byte, bool) {
	start := time.Now()
	body, err := c.repo.Get(ctx, storageKey)
	hit := err == nil
	if record {
		c.metrics.RecordCacheOperation(hit, time.Since(start))
	}
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		c.logger.Warn("report cache get failed", zap.String("key", storageKey), zap.Error(err))
	}
	return body, hit
}

func (c *ReportCache) store(ctx context.Context, storageKey string, body []byte, ttl time.Duration) {
	if !c.Enabled() {
		return
	}
	start := time.Now()
	err := c.repo.Set(context.WithoutCancel(ctx), storageKey, body, ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("report cache set failed", zap.String("key", storageKey), zap.Error(err))
	}
}
