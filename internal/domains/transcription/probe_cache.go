package transcription

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis"
	"github.com/xpanvictor/aegyptus-stt/pkg/Logger"
	"github.com/xpanvictor/aegyptus-stt/pkg/io/stt"
	"github.com/xpanvictor/aegyptus-stt/pkg/io/stt/whisper"
	"golang.org/x/sync/singleflight"
)

// ProbeCache stores the last environment report for a while.
type ProbeCache interface {
	Get(ctx context.Context) (whisper.ProbeReport, bool)
	Set(ctx context.Context, report whisper.ProbeReport, ttl time.Duration)
}

type memoryProbeCache struct {
	mu      sync.Mutex
	report  whisper.ProbeReport
	expires time.Time
	now     func() time.Time
}

func NewMemoryProbeCache() ProbeCache {
	return &memoryProbeCache{now: time.Now}
}

func (c *memoryProbeCache) Get(_ context.Context) (whisper.ProbeReport, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.expires.IsZero() || !c.now().Before(c.expires) {
		return whisper.ProbeReport{}, false
	}
	return c.report, true
}

func (c *memoryProbeCache) Set(_ context.Context, report whisper.ProbeReport, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report = report
	c.expires = c.now().Add(ttl)
}

const probeCacheKey = "aegyptus:speech:probe"

// redisProbeCache shares the report between replicas on one host pool.
// Redis errors degrade to cache misses.
type redisProbeCache struct {
	client *redis.Client
	key    string
	logger *Logger.Logger
}

func NewRedisProbeCache(client *redis.Client, logger *Logger.Logger) ProbeCache {
	if logger == nil {
		logger = Logger.NewNop()
	}
	return &redisProbeCache{client: client, key: probeCacheKey, logger: logger}
}

func (c *redisProbeCache) Get(ctx context.Context) (whisper.ProbeReport, bool) {
	raw, err := c.client.WithContext(ctx).Get(c.key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warnf("probe cache read failed: %v", err)
		}
		return whisper.ProbeReport{}, false
	}
	var report whisper.ProbeReport
	if err := json.Unmarshal(raw, &report); err != nil {
		c.logger.Warnf("probe cache holds garbage: %v", err)
		return whisper.ProbeReport{}, false
	}
	return report, true
}

func (c *redisProbeCache) Set(ctx context.Context, report whisper.ProbeReport, ttl time.Duration) {
	raw, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := c.client.WithContext(ctx).Set(c.key, raw, ttl).Err(); err != nil {
		c.logger.Warnf("probe cache write failed: %v", err)
	}
}

// CachedProber reuses a probe report for ttl. With ttl <= 0 every call probes.
// Concurrent misses share one probe run.
type CachedProber struct {
	checker stt.EnvironmentChecker
	cache   ProbeCache
	ttl     time.Duration
	group   singleflight.Group
}

func NewCachedProber(checker stt.EnvironmentChecker, cache ProbeCache, ttl time.Duration) *CachedProber {
	if cache == nil {
		cache = NewMemoryProbeCache()
	}
	return &CachedProber{checker: checker, cache: cache, ttl: ttl}
}

func (p *CachedProber) Check(ctx context.Context) whisper.ProbeReport {
	if p.ttl <= 0 {
		return p.checker.Check(ctx)
	}
	if report, ok := p.cache.Get(ctx); ok {
		return report
	}
	// The shared run outlives any single caller; the checker's own timeout bounds it.
	shared := context.WithoutCancel(ctx)
	ch := p.group.DoChan("probe", func() (interface{}, error) {
		report := p.checker.Check(shared)
		p.cache.Set(shared, report, p.ttl)
		return report, nil
	})
	select {
	case res := <-ch:
		return res.Val.(whisper.ProbeReport)
	case <-ctx.Done():
		return whisper.ProbeReport{Error: whisper.ProbeCanceledReason, CheckedAt: time.Now()}
	}
}

var _ stt.EnvironmentChecker = (*CachedProber)(nil)
