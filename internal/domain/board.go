package domain

import (
	"strings"
	"time"
)

type Board struct {
	ID        int64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewBoard(name string, now time.Time) (Board, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Board{}, ErrInvalidName
	}
	return Board{
		Name:      name,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// BoardMember is a user subscribed to a board's notifications.
type BoardMember struct {
	BoardID int64
	Email   string
	Name    string
}
