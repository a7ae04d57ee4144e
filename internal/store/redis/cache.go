package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"rsi-backtest/internal/metrics"
	"rsi-backtest/internal/model"
)

// Cache lookup results, used as the "result" metric label.
const (
	ResultHit    = "hit"
	ResultMiss   = "miss"
	ResultError  = "error"
	ResultBypass = "bypass"
)

// CacheConfig configures a BarCache. Zero values take defaults.
type CacheConfig struct {
	TTL          time.Duration // default: 6h
	KeyPrefix    string        // default: "bars:1d"
	MaxFailures  int           // default: 5
	ResetTimeout time.Duration // default: 30s
}

// BarCache is a read-through Redis cache in front of another bar source.
// Redis problems never fail a fetch: the cache steps aside and the request
// goes straight to the wrapped source.
type BarCache struct {
	client  *goredis.Client
	next    model.BarSource
	ttl     time.Duration
	prefix  string
	breaker *CircuitBreaker
	metrics *metrics.Metrics
}

// NewBarCache wraps next with a cache stored in client.
func NewBarCache(client *goredis.Client, next model.BarSource, cfg CacheConfig, m *metrics.Metrics) *BarCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 6 * time.Hour
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "bars:1d"
	}
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}

	cb := NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout)
	cb.OnStateChange = func(from, to State) {
		log.Printf("[redis-cache] circuit breaker %s → %s", from, to)
		m.BreakerTransition(int(to), to == StateOpen)
	}

	return &BarCache{
		client:  client,
		next:    next,
		ttl:     cfg.TTL,
		prefix:  cfg.KeyPrefix,
		breaker: cb,
		metrics: m,
	}
}

// Breaker exposes the circuit breaker guarding Redis.
func (c *BarCache) Breaker() *CircuitBreaker { return c.breaker }

// Key returns the cache key of one symbol and date range.
func (c *BarCache) Key(symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", c.prefix, strings.ToUpper(symbol),
		start.UTC().Format("20060102"), end.UTC().Format("20060102"))
}

// FetchDaily implements model.BarSource.
func (c *BarCache) FetchDaily(ctx context.Context, symbol string, start, end time.Time) (model.PriceSeries, error) {
	key := c.Key(symbol, start, end)

	if series, ok := c.lookup(ctx, key); ok {
		return series, nil
	}

	series, err := c.next.FetchDaily(ctx, symbol, start, end)
	if err != nil {
		return series, err
	}
	if !series.Empty() {
		c.store(ctx, key, series)
	}
	return series, nil
}

func (c *BarCache) lookup(ctx context.Context, key string) (model.PriceSeries, bool) {
	var raw []byte
	miss := false
	err := c.breaker.Execute(func() error {
		b, err := c.client.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			// A miss is a healthy answer.
			miss = true
			return nil
		}
		raw = b
		return err
	})

	switch {
	case errors.Is(err, ErrCircuitOpen):
		c.metrics.CacheResult(ResultBypass)
		return model.PriceSeries{}, false
	case err != nil:
		log.Printf("[redis-cache] GET %s failed: %v", key, err)
		c.metrics.CacheResult(ResultError)
		return model.PriceSeries{}, false
	case miss:
		c.metrics.CacheResult(ResultMiss)
		return model.PriceSeries{}, false
	}

	var series model.PriceSeries
	if err := json.Unmarshal(raw, &series); err != nil {
		log.Printf("[redis-cache] corrupt entry %s: %v", key, err)
		c.metrics.CacheResult(ResultError)
		return model.PriceSeries{}, false
	}
	c.metrics.CacheResult(ResultHit)
	return series, true
}

func (c *BarCache) store(ctx context.Context, key string, series model.PriceSeries) {
	data, err := json.Marshal(series)
	if err != nil {
		log.Printf("[redis-cache] marshal %s: %v", key, err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.ttl).Err()
	})
	if err != nil && !errors.Is(err, ErrCircuitOpen) {
		log.Printf("[redis-cache] SET %s failed: %v", key, err)
	}
}
