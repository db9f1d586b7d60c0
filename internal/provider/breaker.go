package provider

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wonho/pulserank/internal/domain"
	"github.com/wonho/pulserank/pkg/logger"
)

// Breaker wraps a circuit breaker around one provider so a hard outage
// fails fast instead of burning the retry budget on every call.
type Breaker struct {
	cb  *gobreaker.CircuitBreaker
	log *logger.Logger
}

// NewBreaker creates a breaker that opens after 5 consecutive failures
// and probes again after 30 seconds. Invalid-instrument rejections are
// the caller's fault and do not count against provider health.
func NewBreaker(name string, log *logger.Logger) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrInvalidInstrument)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(map[string]interface{}{
				"provider": name,
				"from":     from.String(),
				"to":       to.String(),
			}).Warn("Provider circuit breaker state changed")
		},
	}

	return &Breaker{
		cb:  gobreaker.NewCircuitBreaker(settings),
		log: log,
	}
}

// Execute runs fn through the breaker. An open breaker and breaker-level
// rejections surface as ErrProviderUnavailable.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("circuit open for %s: %w", b.cb.Name(), domain.ErrProviderUnavailable)
	}

	return err
}

// State returns the current breaker state for observability.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
