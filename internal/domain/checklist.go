package domain

import (
	"strings"
	"time"
)

type ChecklistItem struct {
	ID              int64
	CardID          int64
	Title           string
	IsComplete      bool
	ConvertedCardID *int64
	DueAt           *time.Time
	Position        int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type ChecklistItemInput struct {
	CardID   int64
	Title    string
	DueAt    *time.Time
	Position int
}

func NewChecklistItem(in ChecklistItemInput, now time.Time) (ChecklistItem, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.CardID <= 0 {
		return ChecklistItem{}, ErrInvalidID
	}
	if in.Title == "" {
		return ChecklistItem{}, ErrInvalidTitle
	}
	if in.Position < 0 {
		in.Position = 0
	}
	return ChecklistItem{
		CardID:    in.CardID,
		Title:     in.Title,
		DueAt:     normalizeDueAt(in.DueAt),
		Position:  in.Position,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

func (i ChecklistItem) IsConverted() bool {
	return i.ConvertedCardID != nil
}

func (i *ChecklistItem) SetComplete(complete bool, now time.Time) {
	i.IsComplete = complete
	i.UpdatedAt = now.UTC()
}

func (i *ChecklistItem) Rename(title string, now time.Time) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrInvalidTitle
	}
	i.Title = title
	i.UpdatedAt = now.UTC()
	return nil
}

// ConvertTo links the item to its promoted card, which owns completion from now on.
func (i *ChecklistItem) ConvertTo(cardID int64, now time.Time) error {
	if i.IsConverted() {
		return ErrAlreadyConverted
	}
	if cardID <= 0 {
		return ErrInvalidID
	}
	i.ConvertedCardID = &cardID
	i.IsComplete = false
	i.UpdatedAt = now.UTC()
	return nil
}

// IncompleteChecklist returns items that block completion of their card.
// Converted items are exempt; their promoted card drives them.
func IncompleteChecklist(items []ChecklistItem) []ChecklistItem {
	out := make([]ChecklistItem, 0, len(items))
	for _, item := range items {
		if item.IsComplete || item.IsConverted() {
			continue
		}
		out = append(out, item)
	}
	return out
}

// BulkToggleTargets returns the items a bulk toggle flips: all of them when every
// item is complete, otherwise only the incomplete ones.
func BulkToggleTargets(items []ChecklistItem) []ChecklistItem {
	allComplete := len(items) > 0
	for _, item := range items {
		if !item.IsComplete {
			allComplete = false
			break
		}
	}
	out := make([]ChecklistItem, 0, len(items))
	for _, item := range items {
		if item.IsComplete == allComplete {
			out = append(out, item)
		}
	}
	return out
}
