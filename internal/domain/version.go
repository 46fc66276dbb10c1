package domain

import (
	"strings"
	"time"
)

// Version is a named release that released cards point at.
type Version struct {
	ID         int64
	BoardID    int64
	Name       string
	ReleasedAt time.Time
}

func NewVersion(boardID int64, name string, now time.Time) (Version, error) {
	name = strings.TrimSpace(name)
	if boardID <= 0 {
		return Version{}, ErrInvalidID
	}
	if name == "" {
		return Version{}, ErrInvalidName
	}
	return Version{
		BoardID:    boardID,
		Name:       name,
		ReleasedAt: now.UTC(),
	}, nil
}
