package usecases

import (
	"context"
	"log"
	"strconv"

	"github.com/abelzeko/flood-bot/internal/engine"
	"github.com/abelzeko/flood-bot/internal/entities"
	"github.com/abelzeko/flood-bot/internal/repository"
)

// Subscribe registers a Telegram chat for flood alerts
func (uc *StationUseCase) Subscribe(ctx context.Context, chatID int64, username string) error {
	log.Printf("Subscribing chat %d (%s) to alerts", chatID, username)
	return uc.repo.AddSubscriber(entities.Subscriber{
		ChatID:    chatID,
		Username:  username,
		CreatedAt: uc.clock.Now(),
	})
}

// Unsubscribe removes a chat and reports whether it was subscribed
func (uc *StationUseCase) Unsubscribe(ctx context.Context, chatID int64) (bool, error) {
	log.Printf("Unsubscribing chat %d from alerts", chatID)
	return uc.repo.RemoveSubscriber(chatID)
}

// Subscribers lists the subscribed chats
func (uc *StationUseCase) Subscribers(ctx context.Context) ([]entities.Subscriber, error) {
	return uc.repo.Subscribers()
}

// SubscriberRecipients reads Telegram alert recipients from the subscriber table.
func SubscriberRecipients(repo repository.FloodRepository) engine.RecipientSource {
	return subscriberSource{repo: repo}
}

type subscriberSource struct {
	repo repository.FloodRepository
}

func (s subscriberSource) Recipients(context.Context) ([]string, error) {
	subs, err := s.repo.Subscribers()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, strconv.FormatInt(sub.ChatID, 10))
	}
	return ids, nil
}
