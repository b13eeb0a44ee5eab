// Package circuitbreaker wraps sony/gobreaker with structured logging and
// Prometheus metrics.
package circuitbreaker

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Config holds configuration for the circuit breaker
type Config struct {
	Name             string
	MaxRequests      uint32        // Probes allowed while half-open
	Interval         time.Duration // Closed-state window after which counts reset; 0 never resets
	Timeout          time.Duration // Time spent open before probing
	FailureThreshold uint32        // Consecutive failures that open the circuit
	TestMode         bool          // Skip metric registration in test mode
}

// CircuitBreaker guards a call that may fail repeatedly.
type CircuitBreaker struct {
	name   string
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger

	stateGauge    prometheus.Gauge
	failuresCount prometheus.Counter
	tripsTotal    prometheus.Counter
}

// NewCircuitBreaker creates a new circuit breaker. Its metrics are
// registered with registry unless cfg.TestMode is set or registry is nil.
func NewCircuitBreaker(cfg Config, logger *zap.Logger, registry prometheus.Registerer) (*CircuitBreaker, error) {
	if cfg.FailureThreshold == 0 {
		return nil, fmt.Errorf("circuit breaker %q: failure threshold must be positive", cfg.Name)
	}

	labels := prometheus.Labels{"name": cfg.Name}
	c := &CircuitBreaker{
		name:   cfg.Name,
		logger: logger,
		stateGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "prompt2json_circuit_breaker_state",
			Help:        "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
			ConstLabels: labels,
		}),
		failuresCount: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "prompt2json_circuit_breaker_failures_total",
			Help:        "Total number of failures recorded by the circuit breaker",
			ConstLabels: labels,
		}),
		tripsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "prompt2json_circuit_breaker_trips_total",
			Help:        "Total number of times the circuit breaker has tripped",
			ConstLabels: labels,
		}),
	}

	if !cfg.TestMode && registry != nil {
		for _, col := range []prometheus.Collector{c.stateGauge, c.failuresCount, c.tripsTotal} {
			if err := registry.Register(col); err != nil {
				return nil, fmt.Errorf("register circuit breaker metrics: %w", err)
			}
		}
	}

	threshold := cfg.FailureThreshold
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: c.onStateChange,
	})

	return c, nil
}

func (c *CircuitBreaker) onStateChange(name string, from, to gobreaker.State) {
	c.stateGauge.Set(float64(to))
	if to == gobreaker.StateOpen {
		c.tripsTotal.Inc()
		c.logger.Warn("circuit breaker tripped",
			zap.String("name", name),
			zap.String("from", from.String()),
		)
		return
	}
	c.logger.Info("circuit breaker state changed",
		zap.String("name", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

// Execute runs f if the breaker allows it. While the circuit is open f is
// not called and ErrCircuitOpen is returned.
func (c *CircuitBreaker) Execute(f func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, f()
	})
	if err != nil && !IsRejected(err) {
		c.failuresCount.Inc()
	}
	return err
}

// State returns the current state, moving an expired open circuit to
// half-open.
func (c *CircuitBreaker) State() gobreaker.State {
	return c.cb.State()
}

// Counts returns the request counts of the current window.
func (c *CircuitBreaker) Counts() gobreaker.Counts {
	return c.cb.Counts()
}

// Name returns the breaker name.
func (c *CircuitBreaker) Name() string {
	return c.name
}
