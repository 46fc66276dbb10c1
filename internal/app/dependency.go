package app

import (
	"context"
	"fmt"

	"github.com/hylla/cardflow/internal/domain"
)

// AddDependency records that blockerID must complete before blockedID.
// Both cards may live on different boards.
func (s *Service) AddDependency(ctx context.Context, blockerID, blockedID int64, actor string) (domain.Dependency, error) {
	var dep domain.Dependency
	err := s.inTx(ctx, "add_dependency", func(u *unitOfWork) error {
		var err error
		dep, err = domain.NewDependency(blockerID, blockedID, u.now)
		if err != nil {
			return err
		}
		blocker, err := u.repo.GetCard(ctx, blockerID)
		if err != nil {
			return fmt.Errorf("blocker card %d: %w", blockerID, err)
		}
		blocked, err := u.repo.GetCard(ctx, blockedID)
		if err != nil {
			return fmt.Errorf("blocked card %d: %w", blockedID, err)
		}

		existing, err := u.repo.ListBlockers(ctx, blockedID)
		if err != nil {
			return err
		}
		for _, c := range existing {
			if c.ID == blockerID {
				return domain.ErrDependencyExists
			}
		}
		reverse, err := u.repo.ListBlockers(ctx, blockerID)
		if err != nil {
			return err
		}
		for _, c := range reverse {
			if c.ID == blockedID {
				return domain.ErrReverseDependencyExists
			}
		}

		if blocker.IsCompleted {
			return domain.ErrBlockerCompleted
		}
		if blocked.IsCompleted {
			return domain.ErrBlockedCompleted
		}

		if err := u.repo.CreateDependency(ctx, dep); err != nil {
			return err
		}
		_, err = u.record(ctx, blocked, domain.EventDependencyAdded, "Blocked by: "+blocker.Name, actor)
		return err
	})
	if err != nil {
		return domain.Dependency{}, err
	}
	return dep, nil
}

// RemoveDependency deletes the edge if present. Removing a missing edge is not an error;
// the removal is still recorded against the blocked card.
func (s *Service) RemoveDependency(ctx context.Context, blockerID, blockedID int64, actor string) error {
	return s.inTx(ctx, "remove_dependency", func(u *unitOfWork) error {
		blocker, err := u.repo.GetCard(ctx, blockerID)
		if err != nil {
			return fmt.Errorf("blocker card %d: %w", blockerID, err)
		}
		blocked, err := u.repo.GetCard(ctx, blockedID)
		if err != nil {
			return fmt.Errorf("blocked card %d: %w", blockedID, err)
		}
		removed, err := u.repo.DeleteDependency(ctx, blockerID, blockedID)
		if err != nil {
			return err
		}
		if removed == 0 {
			s.logger.Debug("dependency already absent", "blocker_id", blockerID, "blocked_id", blockedID)
		}
		_, err = u.record(ctx, blocked, domain.EventDependencyRemoved, "No longer blocked by: "+blocker.Name, actor)
		return err
	})
}

// GetDependencies returns the non-archived cards blocking cardID and the ones it blocks.
func (s *Service) GetDependencies(ctx context.Context, cardID int64) (domain.CardDependencies, error) {
	return dependenciesOf(ctx, s.repo, cardID)
}

func dependenciesOf(ctx context.Context, repo Repository, cardID int64) (domain.CardDependencies, error) {
	if _, err := repo.GetCard(ctx, cardID); err != nil {
		return domain.CardDependencies{}, err
	}
	blockers, err := repo.ListBlockers(ctx, cardID)
	if err != nil {
		return domain.CardDependencies{}, err
	}
	blocked, err := repo.ListBlocked(ctx, cardID)
	if err != nil {
		return domain.CardDependencies{}, err
	}
	return domain.CardDependencies{
		CardID:    cardID,
		Blockers:  withoutArchived(blockers),
		BlockedBy: withoutArchived(blocked),
	}, nil
}

// ListCardsWithDependencyFlags classifies every active card on a board.
func (s *Service) ListCardsWithDependencyFlags(ctx context.Context, boardID int64) ([]domain.CardDependencyFlags, error) {
	if _, err := s.repo.GetBoard(ctx, boardID); err != nil {
		return nil, err
	}
	cards, err := s.repo.ListCardsByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	edges, err := s.repo.ListBoardDependencies(ctx, boardID)
	if err != nil {
		return nil, err
	}
	return domain.ClassifyDependencies(withoutArchived(cards), edges), nil
}

func withoutArchived(cards []domain.Card) []domain.Card {
	out := make([]domain.Card, 0, len(cards))
	for _, c := range cards {
		if c.IsArchived() {
			continue
		}
		out = append(out, c)
	}
	return out
}
