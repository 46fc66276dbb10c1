package domain

import (
	"slices"
	"strings"
	"time"
)

type Priority string

const (
	PriorityHighest Priority = "highest"
	PriorityHigh    Priority = "high"
	PriorityMedium  Priority = "medium"
	PriorityLow     Priority = "low"
	PriorityLowest  Priority = "lowest"
)

var validPriorities = []Priority{PriorityHighest, PriorityHigh, PriorityMedium, PriorityLow, PriorityLowest}

// ParsePriority accepts a priority in any letter case.
func ParsePriority(raw string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(validPriorities, p) {
		return "", ErrInvalidPriority
	}
	return p, nil
}

type CardStatus string

const (
	CardStatusActive   CardStatus = "active"
	CardStatusArchived CardStatus = "archived"
)

type ReleaseState string

const (
	ReleaseUnreleased ReleaseState = "UNRELEASED"
	ReleaseReleased   ReleaseState = "RELEASED"
)

type Card struct {
	ID          int64
	CategoryID  int64
	Name        string
	Description string
	IsCompleted bool
	Progress    int
	Priority    Priority
	Status      CardStatus
	Release     ReleaseState
	VersionID   *int64
	SerialNo    string
	DueAt       *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CardInput struct {
	CategoryID  int64
	Name        string
	Description string
	Priority    Priority
	SerialNo    string
	DueAt       *time.Time
}

// NewCard builds an active, unreleased card whose progress follows its category.
func NewCard(in CardInput, category Category, now time.Time) (Card, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.SerialNo = strings.TrimSpace(in.SerialNo)
	if in.CategoryID <= 0 || in.CategoryID != category.ID {
		return Card{}, ErrInvalidID
	}
	if in.Name == "" {
		return Card{}, ErrInvalidName
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !slices.Contains(validPriorities, in.Priority) {
		return Card{}, ErrInvalidPriority
	}
	return Card{
		CategoryID:  in.CategoryID,
		Name:        in.Name,
		Description: in.Description,
		Progress:    category.Progress(),
		Priority:    in.Priority,
		Status:      CardStatusActive,
		Release:     ReleaseUnreleased,
		SerialNo:    in.SerialNo,
		DueAt:       normalizeDueAt(in.DueAt),
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}, nil
}

// MoveTo places the card in category and recomputes progress and completion.
// Only Done counts as completed; a card entering Release is archived instead.
func (c *Card) MoveTo(category Category, now time.Time) {
	c.CategoryID = category.ID
	c.Progress = category.Progress()
	c.IsCompleted = category.IsDone()
	if category.IsRelease() {
		c.Status = CardStatusArchived
	}
	c.UpdatedAt = now.UTC()
}

// Complete marks the card fully done in the Done category.
func (c *Card) Complete(done Category, now time.Time) {
	c.CategoryID = done.ID
	c.IsCompleted = true
	c.Progress = 100
	c.UpdatedAt = now.UTC()
}

// Reopen clears completion without changing the category.
func (c *Card) Reopen(now time.Time) {
	c.IsCompleted = false
	c.Progress = 0
	c.UpdatedAt = now.UTC()
}

func (c *Card) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	c.Name = name
	c.UpdatedAt = now.UTC()
	return nil
}

func (c *Card) SetPriority(p Priority, now time.Time) error {
	if !slices.Contains(validPriorities, p) {
		return ErrInvalidPriority
	}
	c.Priority = p
	c.UpdatedAt = now.UTC()
	return nil
}

func (c *Card) SetDueAt(dueAt *time.Time, now time.Time) {
	c.DueAt = normalizeDueAt(dueAt)
	c.UpdatedAt = now.UTC()
}

func (c *Card) Archive(now time.Time) {
	c.Status = CardStatusArchived
	c.UpdatedAt = now.UTC()
}

// MarkReleased attaches the card to a released version.
func (c *Card) MarkReleased(versionID int64, now time.Time) error {
	if !c.IsCompleted {
		return ErrReleaseRequiresDone
	}
	c.Release = ReleaseReleased
	c.VersionID = &versionID
	c.UpdatedAt = now.UTC()
	return nil
}

func (c Card) IsArchived() bool {
	return c.Status == CardStatusArchived
}

func normalizeDueAt(dueAt *time.Time) *time.Time {
	if dueAt == nil {
		return nil
	}
	ts := dueAt.UTC().Truncate(time.Second)
	return &ts
}
