package domain

import "time"

// Dependency is a directed edge: BlockerID must complete before BlockedID can.
type Dependency struct {
	BlockerID int64
	BlockedID int64
	CreatedAt time.Time
}

func NewDependency(blockerID, blockedID int64, now time.Time) (Dependency, error) {
	if blockerID <= 0 || blockedID <= 0 {
		return Dependency{}, ErrInvalidID
	}
	if blockerID == blockedID {
		return Dependency{}, ErrSelfDependency
	}
	return Dependency{
		BlockerID: blockerID,
		BlockedID: blockedID,
		CreatedAt: now.UTC(),
	}, nil
}

// CardDependencies is the dependency view of one card.
// Blockers are the cards blocking it; BlockedBy are the cards it blocks.
type CardDependencies struct {
	CardID    int64
	Blockers  []Card
	BlockedBy []Card
}

// OpenBlockers returns blockers that are neither completed nor archived.
func (d CardDependencies) OpenBlockers() []Card {
	out := make([]Card, 0, len(d.Blockers))
	for _, blocker := range d.Blockers {
		if blocker.IsCompleted || blocker.IsArchived() {
			continue
		}
		out = append(out, blocker)
	}
	return out
}

// CardDependencyFlags classifies one card for dependency pickers.
type CardDependencyFlags struct {
	Card          Card
	IsBlocker     bool
	IsBlockedBy   bool
	IsIndependent bool
}

// ClassifyDependencies flags every card against the given edges.
func ClassifyDependencies(cards []Card, edges []Dependency) []CardDependencyFlags {
	blockers := make(map[int64]struct{}, len(edges))
	blocked := make(map[int64]struct{}, len(edges))
	for _, edge := range edges {
		blockers[edge.BlockerID] = struct{}{}
		blocked[edge.BlockedID] = struct{}{}
	}
	out := make([]CardDependencyFlags, 0, len(cards))
	for _, card := range cards {
		_, isBlocker := blockers[card.ID]
		_, isBlocked := blocked[card.ID]
		out = append(out, CardDependencyFlags{
			Card:          card,
			IsBlocker:     isBlocker,
			IsBlockedBy:   isBlocked,
			IsIndependent: !isBlocker && !isBlocked,
		})
	}
	return out
}
