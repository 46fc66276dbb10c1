package app

import (
	"context"
	"fmt"
	"time"

	"github.com/hylla/cardflow/internal/domain"
)

// ConvertResult describes the card created from a checklist item.
type ConvertResult struct {
	NewCardID    int64  `json:"new_card_id"`
	NewCardTitle string `json:"new_card_title"`
}

// ListChecklistItems returns a card's checklist in position order.
func (s *Service) ListChecklistItems(ctx context.Context, cardID int64) ([]domain.ChecklistItem, error) {
	if _, err := s.repo.GetCard(ctx, cardID); err != nil {
		return nil, err
	}
	return s.repo.ListChecklistItems(ctx, cardID)
}

// AddChecklistItem appends an incomplete item to a card's checklist.
func (s *Service) AddChecklistItem(ctx context.Context, cardID int64, title string, dueAt *time.Time, actor string) (domain.ChecklistItem, error) {
	var item domain.ChecklistItem
	err := s.inTx(ctx, "add_checklist_item", func(u *unitOfWork) error {
		card, err := u.repo.GetCard(ctx, cardID)
		if err != nil {
			return err
		}
		existing, err := u.repo.ListChecklistItems(ctx, cardID)
		if err != nil {
			return err
		}
		item, err = domain.NewChecklistItem(domain.ChecklistItemInput{
			CardID:   cardID,
			Title:    title,
			DueAt:    dueAt,
			Position: len(existing),
		}, u.now)
		if err != nil {
			return err
		}
		item, err = u.repo.CreateChecklistItem(ctx, item)
		if err != nil {
			return err
		}
		_, err = u.record(ctx, card, domain.EventChecklistItemAdded, item.Title, actor)
		return err
	})
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	return item, nil
}

// UpdateChecklistItem renames an item and the card it was converted into.
func (s *Service) UpdateChecklistItem(ctx context.Context, itemID int64, title, actor string) (domain.ChecklistItem, error) {
	var item domain.ChecklistItem
	err := s.inTx(ctx, "update_checklist_item", func(u *unitOfWork) error {
		var err error
		item, err = u.repo.GetChecklistItem(ctx, itemID)
		if err != nil {
			return err
		}
		if err := item.Rename(title, u.now); err != nil {
			return err
		}
		if err := u.repo.UpdateChecklistItem(ctx, item); err != nil {
			return err
		}
		if item.IsConverted() {
			converted, err := u.repo.GetCard(ctx, *item.ConvertedCardID)
			if err != nil {
				return err
			}
			if err := converted.Rename(item.Title, u.now); err != nil {
				return err
			}
			if err := u.repo.UpdateCard(ctx, converted); err != nil {
				return err
			}
		}
		card, err := u.repo.GetCard(ctx, item.CardID)
		if err != nil {
			return err
		}
		details := fmt.Sprintf("Checklist item updated to %q", item.Title)
		_, err = u.record(ctx, card, domain.EventChecklistItemUpdated, details, actor)
		return err
	})
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	return item, nil
}

// ToggleChecklistItem flips an item's completion. A converted item carries its card along:
// the card is completed into Done or reopened in place, unless the card has its own
// dependencies or checklist, which must be resolved from the card instead.
func (s *Service) ToggleChecklistItem(ctx context.Context, itemID int64, actor string) (domain.ChecklistItem, error) {
	var item domain.ChecklistItem
	err := s.inTx(ctx, "toggle_checklist_item", func(u *unitOfWork) error {
		var err error
		item, err = u.toggleItem(ctx, itemID, actor)
		return err
	})
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	return item, nil
}

func (u *unitOfWork) toggleItem(ctx context.Context, itemID int64, actor string) (domain.ChecklistItem, error) {
	item, err := u.repo.GetChecklistItem(ctx, itemID)
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	item.SetComplete(!item.IsComplete, u.now)

	if item.IsConverted() {
		converted, err := u.repo.GetCard(ctx, *item.ConvertedCardID)
		if err != nil {
			return domain.ChecklistItem{}, fmt.Errorf("converted card %d: %w", *item.ConvertedCardID, err)
		}
		if err := u.ensureConvertedCardFree(ctx, converted); err != nil {
			return domain.ChecklistItem{}, err
		}
		if item.IsComplete {
			if err := u.completeCard(ctx, &converted); err != nil {
				return domain.ChecklistItem{}, err
			}
		} else {
			converted.Reopen(u.now)
		}
		if err := u.repo.UpdateCard(ctx, converted); err != nil {
			return domain.ChecklistItem{}, err
		}
		if _, err := u.record(ctx, converted, domain.EventCardUpdated, converted.Name, actor); err != nil {
			return domain.ChecklistItem{}, err
		}
	}

	if err := u.repo.UpdateChecklistItem(ctx, item); err != nil {
		return domain.ChecklistItem{}, err
	}
	return item, nil
}

// ensureConvertedCardFree rejects driving a converted card from its item while the card
// has blockers or its own checklist.
func (u *unitOfWork) ensureConvertedCardFree(ctx context.Context, card domain.Card) error {
	blockers, err := u.repo.ListBlockers(ctx, card.ID)
	if err != nil {
		return err
	}
	if len(blockers) > 0 {
		return fmt.Errorf("%w (card %q has dependencies)", domain.ErrConvertedCardBlocked, card.Name)
	}
	items, err := u.repo.ListChecklistItems(ctx, card.ID)
	if err != nil {
		return err
	}
	if len(items) > 0 {
		return fmt.Errorf("%w (card %q has checklist items)", domain.ErrConvertedCardBlocked, card.Name)
	}
	return nil
}

// ToggleAllChecklistItems uncompletes every item when all are complete and otherwise
// completes the incomplete ones, one toggle at a time.
func (s *Service) ToggleAllChecklistItems(ctx context.Context, cardID int64, actor string) ([]domain.ChecklistItem, error) {
	var items []domain.ChecklistItem
	err := s.inTx(ctx, "toggle_all_checklist_items", func(u *unitOfWork) error {
		if _, err := u.repo.GetCard(ctx, cardID); err != nil {
			return err
		}
		current, err := u.repo.ListChecklistItems(ctx, cardID)
		if err != nil {
			return err
		}
		for _, target := range domain.BulkToggleTargets(current) {
			if _, err := u.toggleItem(ctx, target.ID, actor); err != nil {
				return fmt.Errorf("toggle checklist item %d: %w", target.ID, err)
			}
		}
		items, err = u.repo.ListChecklistItems(ctx, cardID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// ConvertChecklistItem promotes an item into a new card in categoryID. The new card
// blocks the parent card and owns the item's completion from then on.
func (s *Service) ConvertChecklistItem(ctx context.Context, itemID, categoryID, parentCardID int64, actor string) (ConvertResult, error) {
	var result ConvertResult
	err := s.inTx(ctx, "convert_checklist_item", func(u *unitOfWork) error {
		item, err := u.repo.GetChecklistItem(ctx, itemID)
		if err != nil {
			return fmt.Errorf("checklist item %d: %w", itemID, err)
		}
		if _, err := u.repo.GetCategory(ctx, categoryID); err != nil {
			return fmt.Errorf("category %d: %w", categoryID, err)
		}
		if item.IsConverted() {
			return domain.ErrAlreadyConverted
		}
		if item.CardID != parentCardID {
			return fmt.Errorf("%w: checklist item %d does not belong to card %d", domain.ErrValidation, itemID, parentCardID)
		}
		parent, err := u.repo.GetCard(ctx, parentCardID)
		if err != nil {
			return err
		}
		if parent.IsCompleted {
			return domain.ErrParentCompleted
		}

		child, err := u.createCard(ctx, CreateCardInput{
			CategoryID:  categoryID,
			Name:        item.Title,
			Description: "Converted from checklist item in card: " + parent.Name,
			Priority:    parent.Priority,
			Actor:       actor,
		})
		if err != nil {
			return err
		}
		dep, err := domain.NewDependency(child.ID, parent.ID, u.now)
		if err != nil {
			return err
		}
		if err := u.repo.CreateDependency(ctx, dep); err != nil {
			return err
		}
		if err := item.ConvertTo(child.ID, u.now); err != nil {
			return err
		}
		if err := u.repo.UpdateChecklistItem(ctx, item); err != nil {
			return err
		}
		if _, err := u.record(ctx, parent, domain.EventChecklistItemConvertedToCard, item.Title, actor); err != nil {
			return err
		}
		result = ConvertResult{NewCardID: child.ID, NewCardTitle: child.Name}
		return nil
	})
	if err != nil {
		return ConvertResult{}, err
	}
	return result, nil
}

// DeleteChecklistItem removes one item. A card converted from the item is left in place.
func (s *Service) DeleteChecklistItem(ctx context.Context, itemID int64, actor string) error {
	return s.inTx(ctx, "delete_checklist_item", func(u *unitOfWork) error {
		item, err := u.repo.GetChecklistItem(ctx, itemID)
		if err != nil {
			return err
		}
		card, err := u.repo.GetCard(ctx, item.CardID)
		if err != nil {
			return err
		}
		if err := u.repo.DeleteChecklistItem(ctx, itemID); err != nil {
			return err
		}
		_, err = u.record(ctx, card, domain.EventChecklistItemDeleted, item.Title, actor)
		return err
	})
}

// DeleteAllChecklistItems clears a card's checklist without touching converted cards.
func (s *Service) DeleteAllChecklistItems(ctx context.Context, cardID int64, actor string) error {
	return s.inTx(ctx, "delete_all_checklist_items", func(u *unitOfWork) error {
		card, err := u.repo.GetCard(ctx, cardID)
		if err != nil {
			return err
		}
		if err := u.repo.DeleteChecklistItems(ctx, cardID); err != nil {
			return err
		}
		_, err = u.record(ctx, card, domain.EventChecklistDeleteAll, "All checklist items deleted", actor)
		return err
	})
}
