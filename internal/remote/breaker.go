package remote

import (
	"context"
	"errors"
	"net/http"
	"time"

	"consign-review-api/internal/metrics"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BreakerSettings configures the per-resource circuit breakers.
type BreakerSettings struct {
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration
	Timeout      time.Duration
}

// CircuitBreaker wraps gobreaker with metrics.
type CircuitBreaker struct {
	cb   *gobreaker.CircuitBreaker
	name string
}

// NewCircuitBreaker creates a breaker that trips once FailureRatio of at least
// MinRequests calls inside Interval have failed.
func NewCircuitBreaker(name string, s BreakerSettings) *CircuitBreaker {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		// Platform rejections (4xx) and caller cancellations say nothing about
		// platform health.
		IsSuccessful: func(err error) bool {
			return err == nil || IsClientError(err) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(cbName string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(cbName).Set(stateValue(to))
			log.WithFields(log.Fields{
				"circuit": cbName,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	return &CircuitBreaker{cb: cb, name: name}
}

// Execute runs fn through the breaker and translates breaker refusals into ErrCircuitOpen.
func (c *CircuitBreaker) Execute(fn func() error) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.CircuitBreakerFailures.WithLabelValues(c.name).Inc()
		return ErrCircuitOpen
	}
	if err != nil && !IsClientError(err) {
		metrics.CircuitBreakerFailures.WithLabelValues(c.name).Inc()
	}
	return err
}

// Name returns the breaker name.
func (c *CircuitBreaker) Name() string {
	return c.name
}

// State returns the current state as a string (closed, open, half-open).
func (c *CircuitBreaker) State() string {
	return c.cb.State().String()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

// Bulkhead bounds the number of concurrent platform calls.
type Bulkhead struct {
	semaphore chan struct{}
	name      string
	wait      time.Duration
}

// NewBulkhead creates a bulkhead with the given capacity.
func NewBulkhead(name string, size int, wait time.Duration) *Bulkhead {
	if size <= 0 {
		size = 1
	}
	return &Bulkhead{
		semaphore: make(chan struct{}, size),
		name:      name,
		wait:      wait,
	}
}

// Execute runs fn once a slot is free, giving up after the configured wait
// or when ctx is done.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	timer := time.NewTimer(b.wait)
	defer timer.Stop()

	select {
	case b.semaphore <- struct{}{}:
		metrics.BulkheadActiveRequests.WithLabelValues(b.name).Inc()
		defer func() {
			<-b.semaphore
			metrics.BulkheadActiveRequests.WithLabelValues(b.name).Dec()
		}()
		return fn()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		metrics.BulkheadRejectedRequests.WithLabelValues(b.name).Inc()
		return ErrBulkheadFull
	}
}

func isServerError(status int) bool {
	return status >= http.StatusInternalServerError
}
