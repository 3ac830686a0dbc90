// Package breaker wraps platform calls in a circuit breaker so a platform
// that keeps failing is skipped quickly instead of holding a firing open
// until its timeout. It never retries.
package breaker

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/DevRickLin/social-reactor/internal/logging"
	"github.com/DevRickLin/social-reactor/internal/metrics"
)

// ErrOpen is returned while the breaker rejects calls
var ErrOpen = errors.New("circuit open")

// Breaker guards one platform
type Breaker struct {
	name     string
	cb       *gobreaker.CircuitBreaker[any]
	excluded func(error) bool
}

// Option configures a Breaker
type Option func(*Breaker)

// WithExcluded marks errors that say nothing about the platform's health,
// such as a request the platform rejected on its merits. They are returned
// to the caller but never count toward opening the breaker.
func WithExcluded(fn func(error) bool) Option {
	return func(b *Breaker) {
		b.excluded = fn
	}
}

// New creates a breaker that opens after 5 consecutive failures and lets
// one trial request through after timeout
func New(name string, timeout time.Duration, opts ...Option) *Breaker {
	if timeout <= 0 {
		timeout = time.Minute
	}

	b := &Breaker{name: name}
	for _, opt := range opts {
		opt(b)
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Shutdown cancellations say nothing about the platform
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || b.isExcluded(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("[Breaker] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	b.cb = cb
	return b
}

func (b *Breaker) isExcluded(err error) bool {
	return b.excluded != nil && b.excluded(err)
}

// Do runs fn through the breaker
func Do[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var zero T
	if b == nil {
		return fn()
	}

	result, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return zero, ErrOpen
		}
		label := "failure"
		if b.isExcluded(err) {
			label = "rejected_request"
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, label).Inc()
		return zero, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	typed, _ := result.(T)
	return typed, nil
}

// State returns the breaker state as a string
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
