package domain

import "time"

// Notification is one rendered activity addressed to a board member.
type Notification struct {
	ID        int64
	Email     string
	CardID    int64
	Type      EventType
	Message   string
	CreatedAt time.Time
}
