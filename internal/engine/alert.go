package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/abelzeko/flood-bot/internal/entities"
	"github.com/jonboulle/clockwork"
)

// DefaultCooldown is the minimum time between two dispatched alerts.
const DefaultCooldown = 1800 * time.Second

// Delivery is the outcome of sending a message to one recipient.
type Delivery struct {
	Recipient string
	Err       error
}

// Notifier sends a message to every recipient and reports one Delivery per recipient.
type Notifier interface {
	Send(ctx context.Context, message string, recipients []string) []Delivery
}

// RecipientSource supplies the addresses a channel delivers to.
type RecipientSource interface {
	Recipients(ctx context.Context) ([]string, error)
}

// StaticRecipients is a fixed list of addresses.
type StaticRecipients []string

func (s StaticRecipients) Recipients(context.Context) ([]string, error) {
	return s, nil
}

// Channel pairs a notifier with the recipients it delivers to.
type Channel struct {
	Name       string
	Notifier   Notifier
	Recipients RecipientSource
}

// CooldownPolicy decides when a dispatch starts a new cooldown window.
type CooldownPolicy int

const (
	// AdvanceOnAnySuccess starts the window only if at least one recipient was reached.
	AdvanceOnAnySuccess CooldownPolicy = iota
	// AdvanceOnAttempt starts the window whenever a dispatch was attempted,
	// even if every recipient failed.
	AdvanceOnAttempt
)

// ParseCooldownPolicy parses "any-success" or "attempt".
func ParseCooldownPolicy(s string) (CooldownPolicy, error) {
	switch s {
	case "", "any-success":
		return AdvanceOnAnySuccess, nil
	case "attempt":
		return AdvanceOnAttempt, nil
	default:
		return 0, fmt.Errorf("unknown cooldown policy %q", s)
	}
}

func (p CooldownPolicy) String() string {
	if p == AdvanceOnAttempt {
		return "attempt"
	}
	return "any-success"
}

// Outcome classifies what Notify did.
type Outcome int

const (
	OutcomeIneligible Outcome = iota
	OutcomeSuppressed
	OutcomeNoRecipients
	OutcomeDispatched
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeNoRecipients:
		return "no_recipients"
	case OutcomeDispatched:
		return "dispatched"
	case OutcomeFailed:
		return "failed"
	default:
		return "ineligible"
	}
}

// ChannelDelivery is a Delivery tagged with the channel that made it.
type ChannelDelivery struct {
	Channel string
	Delivery
}

// AlertOutcome reports the result of one Notify call.
type AlertOutcome struct {
	Outcome    Outcome
	Deliveries []ChannelDelivery
	At         time.Time
}

// Delivered counts recipients that received the message.
func (o AlertOutcome) Delivered() int {
	n := 0
	for _, d := range o.Deliveries {
		if d.Err == nil {
			n++
		}
	}
	return n
}

// Failed counts recipients that did not receive the message.
func (o AlertOutcome) Failed() int {
	return len(o.Deliveries) - o.Delivered()
}

// Alerter gates flood alerts behind a cooldown shared by all channels.
// The lock is held across the cooldown check and the dispatch so that
// concurrent callers cannot both pass the check within one window.
type Alerter struct {
	mu        sync.Mutex
	channels  []Channel
	cooldown  time.Duration
	policy    CooldownPolicy
	clock     clockwork.Clock
	lastAlert time.Time
}

// AlerterOption configures an Alerter.
type AlerterOption func(*Alerter)

// WithCooldown overrides DefaultCooldown.
func WithCooldown(d time.Duration) AlerterOption {
	return func(a *Alerter) { a.cooldown = d }
}

// WithPolicy sets the cooldown policy.
func WithPolicy(p CooldownPolicy) AlerterOption {
	return func(a *Alerter) { a.policy = p }
}

// WithClock replaces the real clock, mostly for tests.
func WithClock(c clockwork.Clock) AlerterOption {
	return func(a *Alerter) { a.clock = c }
}

// NewAlerter creates an Alerter dispatching to the given channels.
func NewAlerter(channels []Channel, opts ...AlerterOption) *Alerter {
	a := &Alerter{
		channels: channels,
		cooldown: DefaultCooldown,
		policy:   AdvanceOnAnySuccess,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Restore seeds the last alert time, typically from the alert log after a restart.
func (a *Alerter) Restore(t time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t.After(a.lastAlert) {
		a.lastAlert = t
	}
}

// LastAlert returns the time of the last alert that started a cooldown window.
func (a *Alerter) LastAlert() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastAlert
}

// Notify dispatches message for an alert-eligible status unless the cooldown
// is still running. Suppression is silent; per-recipient failures are logged
// and do not stop the remaining recipients.
func (a *Alerter) Notify(ctx context.Context, status Status, message string) AlertOutcome {
	if !status.AlertEligible() {
		return AlertOutcome{Outcome: OutcomeIneligible}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if !a.lastAlert.IsZero() && now.Sub(a.lastAlert) < a.cooldown {
		return AlertOutcome{Outcome: OutcomeSuppressed, At: now}
	}

	deliveries := a.dispatch(ctx, message)
	if len(deliveries) == 0 {
		log.Printf("No alert recipients configured, %s alert not sent", status.Label())
		return AlertOutcome{Outcome: OutcomeNoRecipients, At: now}
	}

	out := AlertOutcome{Deliveries: deliveries, At: now}
	delivered := out.Delivered()
	if delivered > 0 || a.policy == AdvanceOnAttempt {
		a.lastAlert = now
	}
	if delivered > 0 {
		out.Outcome = OutcomeDispatched
		log.Printf("Alert sent successfully to %d of %d recipients: %s", delivered, len(deliveries), status.Label())
	} else {
		out.Outcome = OutcomeFailed
		log.Printf("Alert could not be delivered to any of %d recipients", len(deliveries))
	}
	return out
}

func (a *Alerter) dispatch(ctx context.Context, message string) []ChannelDelivery {
	var all []ChannelDelivery
	for _, ch := range a.channels {
		recipients, err := ch.Recipients.Recipients(ctx)
		if err != nil {
			log.Printf("Error loading recipients for %s: %v", ch.Name, err)
			continue
		}
		if len(recipients) == 0 {
			continue
		}

		for _, d := range ch.Notifier.Send(ctx, message, recipients) {
			if d.Err != nil {
				if !errors.Is(d.Err, ErrDispatchFailed) {
					d.Err = fmt.Errorf("%w: %v", ErrDispatchFailed, d.Err)
				}
				log.Printf("Error sending alert to %s via %s: %v", d.Recipient, ch.Name, d.Err)
			}
			all = append(all, ChannelDelivery{Channel: ch.Name, Delivery: d})
		}
	}
	return all
}

// FormatAlertMessage builds the alert text sent to recipients.
func FormatAlertMessage(status Status, state entities.RiverState, location string) string {
	return fmt.Sprintf("%s!\nRiver Height: %.1fcm\nFlow Rate: %.1fL/min\nLocation: %s",
		status.Label(), state.Height, state.FlowRate, location)
}
