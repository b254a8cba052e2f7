package notify

import (
	"context"
	"log"

	"github.com/abelzeko/flood-bot/internal/engine"
)

// Log writes alerts to the station log. It is used when no external
// channel is configured, so alerts still leave a trace.
type Log struct{}

// Send implements engine.Notifier
func (Log) Send(_ context.Context, message string, recipients []string) []engine.Delivery {
	deliveries := make([]engine.Delivery, 0, len(recipients))
	for _, r := range recipients {
		log.Printf("ALERT for %s:\n%s", r, message)
		deliveries = append(deliveries, engine.Delivery{Recipient: r})
	}
	return deliveries
}
