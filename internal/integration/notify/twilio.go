package notify

import (
	"context"

	"github.com/abelzeko/flood-bot/internal/engine"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// MessageCreator is the part of the Twilio REST API the notifier needs.
type MessageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMS sends alerts as text messages through Twilio. Recipients are phone numbers.
type SMS struct {
	api  MessageCreator
	from string
}

// NewSMS creates an SMS notifier for the given Twilio account
func NewSMS(accountSID, authToken, from string) *SMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &SMS{api: client.Api, from: from}
}

// Send implements engine.Notifier
func (s *SMS) Send(ctx context.Context, message string, recipients []string) []engine.Delivery {
	deliveries := make([]engine.Delivery, 0, len(recipients))
	for _, number := range recipients {
		if err := ctx.Err(); err != nil {
			deliveries = append(deliveries, engine.Delivery{Recipient: number, Err: err})
			continue
		}

		params := &twilioApi.CreateMessageParams{}
		params.SetTo(number)
		params.SetFrom(s.from)
		params.SetBody(message)

		_, err := s.api.CreateMessage(params)
		deliveries = append(deliveries, engine.Delivery{Recipient: number, Err: err})
	}
	return deliveries
}
