package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/hylla/cardflow/internal/domain"
)

// MoveToCategory moves a card to another category on its board, recomputing progress
// and completion. Entering Done or Release is gated on open blockers and checklist items.
func (s *Service) MoveToCategory(ctx context.Context, cardID, targetCategoryID int64, actor string) (domain.Card, error) {
	var card domain.Card
	err := s.inTx(ctx, "move_to_category", func(u *unitOfWork) error {
		var err error
		card, err = u.repo.GetCard(ctx, cardID)
		if err != nil {
			return err
		}
		target, err := u.repo.GetCategory(ctx, targetCategoryID)
		if err != nil {
			return fmt.Errorf("target category %d: %w", targetCategoryID, err)
		}
		from, err := u.repo.GetCategory(ctx, card.CategoryID)
		if err != nil {
			return err
		}
		if from.BoardID != target.BoardID {
			return fmt.Errorf("%w: category %d belongs to another board", domain.ErrValidation, target.ID)
		}

		if target.IsRelease() && (!card.IsCompleted || card.Release != domain.ReleaseReleased) {
			return domain.ErrReleaseNotAllowed
		}
		if target.IsTerminal() {
			if err := u.completionGate(ctx, card); err != nil {
				return err
			}
		}

		card.MoveTo(target, u.now)
		if err := u.repo.UpdateCard(ctx, card); err != nil {
			return err
		}
		if err := u.syncParentItem(ctx, card); err != nil {
			return err
		}
		if from.Name != target.Name {
			details := fmt.Sprintf("from %s to %s", from.Name, target.Name)
			if _, err := u.record(ctx, card, domain.EventCategoryChanged, details, actor); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

// SetCompletion completes or reopens a card. Completing moves the card to its board's
// Done category at progress 100; reopening resets progress to 0 in place.
func (s *Service) SetCompletion(ctx context.Context, cardID int64, checked bool, actor string) (domain.Card, error) {
	var card domain.Card
	err := s.inTx(ctx, "set_completion", func(u *unitOfWork) error {
		var err error
		card, err = u.repo.GetCard(ctx, cardID)
		if err != nil {
			return err
		}
		if checked {
			if err := u.completionGate(ctx, card); err != nil {
				return err
			}
			if err := u.completeCard(ctx, &card); err != nil {
				return err
			}
		} else {
			card.Reopen(u.now)
		}
		if err := u.repo.UpdateCard(ctx, card); err != nil {
			return err
		}
		if err := u.syncParentItem(ctx, card); err != nil {
			return err
		}
		_, err = u.record(ctx, card, domain.EventCardUpdated, card.Name, actor)
		return err
	})
	if err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

// completeCard moves card to its board's Done category and marks it complete.
func (u *unitOfWork) completeCard(ctx context.Context, card *domain.Card) error {
	boardID, err := u.boardOf(ctx, *card)
	if err != nil {
		return err
	}
	done, ok, err := u.categoryNamed(ctx, boardID, domain.CategoryDone)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w (board %d)", domain.ErrDoneCategoryMissing, boardID)
	}
	card.Complete(done, u.now)
	return nil
}

// completionGate rejects completion while blockers or plain checklist items are open.
func (u *unitOfWork) completionGate(ctx context.Context, card domain.Card) error {
	deps, err := dependenciesOf(ctx, u.repo, card.ID)
	if err != nil {
		return err
	}
	if open := deps.OpenBlockers(); len(open) > 0 {
		names := make([]string, 0, len(open))
		for _, c := range open {
			names = append(names, c.Name)
		}
		return fmt.Errorf("%w (open: %s)", domain.ErrOpenBlockers, strings.Join(names, ", "))
	}
	items, err := u.repo.ListChecklistItems(ctx, card.ID)
	if err != nil {
		return err
	}
	if pending := domain.IncompleteChecklist(items); len(pending) > 0 {
		return fmt.Errorf("%w (%d remaining)", domain.ErrIncompleteChecklist, len(pending))
	}
	return nil
}

// syncParentItem mirrors a promoted card's completion onto its originating checklist item.
func (u *unitOfWork) syncParentItem(ctx context.Context, card domain.Card) error {
	parent, ok, err := u.parentItem(ctx, card.ID)
	if err != nil || !ok {
		return err
	}
	if parent.IsComplete == card.IsCompleted {
		return nil
	}
	parent.SetComplete(card.IsCompleted, u.now)
	return u.repo.UpdateChecklistItem(ctx, parent)
}
