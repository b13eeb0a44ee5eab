// Package processing runs validated prompts through the enhancer. It owns the
// response cache, collapses concurrent identical misses and guards the
// transform step with a circuit breaker.
package processing

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/teilomillet/prompt2json/enhancer"
	"github.com/teilomillet/prompt2json/server/cache"
	"github.com/teilomillet/prompt2json/server/circuitbreaker"
	"github.com/teilomillet/prompt2json/server/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TransformFunc classifies a prompt. It is enhancer.Transform outside tests.
type TransformFunc func(prompt string) enhancer.Result

// ErrTransformPanic wraps a panic raised while transforming.
var ErrTransformPanic = errors.New("transform panicked")

// Processor is safe for concurrent use.
type Processor struct {
	cache        *cache.Cache
	cacheEnabled atomic.Bool
	group        singleflight.Group
	breaker      *circuitbreaker.CircuitBreaker
	metrics      *metrics.Metrics
	logger       *zap.Logger
	transform    TransformFunc
}

// Option customizes a Processor.
type Option func(*Processor)

// WithTransform replaces the transform step.
func WithTransform(fn TransformFunc) Option {
	return func(p *Processor) {
		p.transform = fn
	}
}

// NewProcessor wires a processor. The breaker and metrics are required; c
// may be shared with other components, such as the cache clear endpoint.
func NewProcessor(c *cache.Cache, cacheEnabled bool, breaker *circuitbreaker.CircuitBreaker, m *metrics.Metrics, logger *zap.Logger, opts ...Option) (*Processor, error) {
	if c == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if breaker == nil {
		return nil, fmt.Errorf("circuit breaker is required")
	}
	if m == nil {
		return nil, fmt.Errorf("metrics are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Processor{
		cache:     c,
		breaker:   breaker,
		metrics:   m,
		logger:    logger,
		transform: enhancer.Transform,
	}
	p.cacheEnabled.Store(cacheEnabled)
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Validate checks prompt and counts rejections by reason.
func (p *Processor) Validate(prompt any) error {
	err := enhancer.Validate(prompt)
	switch {
	case err == nil:
	case errors.Is(err, enhancer.ErrTooShort):
		p.metrics.ValidationsFailed.WithLabelValues("too_short").Inc()
	case errors.Is(err, enhancer.ErrTooLong):
		p.metrics.ValidationsFailed.WithLabelValues("too_long").Inc()
	default:
		p.metrics.ValidationsFailed.WithLabelValues("not_string").Inc()
	}
	return err
}

// Process returns the record for prompt, serving it from the cache when an
// equivalent prompt was seen before. Cached is true only for cache hits.
// Concurrent misses for the same key run the transform once and all report
// Cached false.
func (p *Processor) Process(ctx context.Context, prompt string) (enhancer.Result, error) {
	if err := ctx.Err(); err != nil {
		return enhancer.Result{}, err
	}
	if !p.cacheEnabled.Load() {
		return p.Transform(ctx, prompt)
	}

	key := cache.Key(prompt)
	if r, ok := p.cache.Get(key); ok {
		p.metrics.CacheHits.Inc()
		r.Cached = true
		return r, nil
	}
	p.metrics.CacheMisses.Inc()

	v, err, shared := p.group.Do(key, func() (interface{}, error) {
		r, err := p.run(prompt)
		if err != nil {
			return r, err
		}
		if !p.cache.Add(key, r) {
			p.metrics.CacheRejected.Inc()
			p.logger.Debug("cache full, result not stored", zap.Int("limit", p.cache.Limit()))
		}
		p.metrics.CacheEntries.Set(float64(p.cache.Len()))
		return r, nil
	})
	if shared {
		p.logger.Debug("joined in-flight transform", zap.String("key", key))
	}
	if err != nil {
		return enhancer.Result{}, err
	}
	r := v.(enhancer.Result)
	r.Cached = false
	return r, nil
}

// Transform returns the record for prompt without touching the cache.
func (p *Processor) Transform(ctx context.Context, prompt string) (enhancer.Result, error) {
	if err := ctx.Err(); err != nil {
		return enhancer.Result{}, err
	}
	return p.run(prompt)
}

func (p *Processor) run(prompt string) (enhancer.Result, error) {
	var r enhancer.Result
	err := p.breaker.Execute(func() (err error) {
		defer func() {
			if rec := recover(); rec != nil {
				p.logger.Error("transform panicked",
					zap.Any("panic", rec),
					zap.ByteString("stacktrace", debug.Stack()),
				)
				err = fmt.Errorf("%w: %v", ErrTransformPanic, rec)
			}
		}()
		r = p.transform(prompt)
		return nil
	})
	if err != nil {
		return enhancer.Result{}, err
	}
	p.metrics.TransformsTotal.WithLabelValues(r.OutputFormat).Inc()
	return r, nil
}

// ClearCache empties the cache and returns the number of removed entries.
func (p *Processor) ClearCache() int {
	n := p.cache.Clear()
	p.metrics.CacheEntries.Set(0)
	p.logger.Info("cache cleared", zap.Int("entries", n))
	return n
}

// ApplyCacheConfig switches caching on or off and changes the cache bound.
func (p *Processor) ApplyCacheConfig(enabled bool, maxEntries int) {
	p.cacheEnabled.Store(enabled)
	if dropped := p.cache.SetLimit(maxEntries); dropped > 0 {
		p.logger.Info("cache trimmed to new limit",
			zap.Int("limit", maxEntries),
			zap.Int("dropped", dropped),
		)
	}
	p.metrics.CacheEntries.Set(float64(p.cache.Len()))
}

// CacheEnabled reports whether Process consults the cache.
func (p *Processor) CacheEnabled() bool {
	return p.cacheEnabled.Load()
}
