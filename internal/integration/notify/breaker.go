package notify

import (
	"context"
	"log"
	"time"

	"github.com/abelzeko/flood-bot/internal/engine"
	"github.com/sony/gobreaker"
)

// Breaker wraps a notifier in a circuit breaker. Once the provider has
// failed enough times in a row, the remaining recipients fail fast until
// the breaker half-opens again.
type Breaker struct {
	inner engine.Notifier
	cb    *gobreaker.CircuitBreaker
}

// NewBreaker trips after fails consecutive delivery failures and stays open for openFor
func NewBreaker(name string, inner engine.Notifier, fails uint32, openFor time.Duration) *Breaker {
	return &Breaker{
		inner: inner,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: openFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= fails
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Printf("Circuit breaker %s changed from %s to %s", name, from, to)
			},
		}),
	}
}

// Send implements engine.Notifier
func (b *Breaker) Send(ctx context.Context, message string, recipients []string) []engine.Delivery {
	deliveries := make([]engine.Delivery, 0, len(recipients))
	for _, r := range recipients {
		_, err := b.cb.Execute(func() (interface{}, error) {
			ds := b.inner.Send(ctx, message, []string{r})
			if len(ds) == 0 {
				return nil, nil
			}
			return nil, ds[0].Err
		})
		deliveries = append(deliveries, engine.Delivery{Recipient: r, Err: err})
	}
	return deliveries
}

// State reports the breaker state, e.g. for the status endpoint.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
