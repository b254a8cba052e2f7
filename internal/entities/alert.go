package entities

import "time"

// AlertRecord is an entry of the alert log
type AlertRecord struct {
	ID        int64
	Status    string
	Message   string
	Delivered int // Recipients the message reached
	Failed    int // Recipients the message did not reach
	SentAt    time.Time
}

// Subscriber is a Telegram chat that receives flood alerts
type Subscriber struct {
	ChatID    int64
	Username  string
	CreatedAt time.Time
}
