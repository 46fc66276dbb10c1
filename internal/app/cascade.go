package app

import (
	"context"
	"fmt"

	"github.com/hylla/cardflow/internal/domain"
)

// cascadeNode is one card scheduled for deletion with its distance from the root.
type cascadeNode struct {
	cardID int64
	depth  int
}

// collectDescendants walks converted-card links breadth first from root and returns the
// cards in deletion order, deepest first. Already deleted cards are skipped.
func (u *unitOfWork) collectDescendants(ctx context.Context, root int64, deleted map[int64]bool, maxDepth int) ([]int64, error) {
	visited := map[int64]bool{root: true}
	order := []int64{root}
	queue := []cascadeNode{{cardID: root}}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		items, err := u.repo.ListChecklistItems(ctx, node.cardID)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if !item.IsConverted() {
				continue
			}
			child := *item.ConvertedCardID
			if deleted[child] {
				continue
			}
			if visited[child] {
				return nil, fmt.Errorf("%w (card %d)", ErrCascadeCycle, child)
			}
			if node.depth+1 > maxDepth {
				return nil, fmt.Errorf("%w (limit %d)", ErrCascadeTooDeep, maxDepth)
			}
			visited[child] = true
			order = append(order, child)
			queue = append(queue, cascadeNode{cardID: child, depth: node.depth + 1})
		}
	}
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order, nil
}

// deleteCardTree deletes a card and every card converted from its checklist, children first.
func (u *unitOfWork) deleteCardTree(ctx context.Context, root domain.Card, deleted map[int64]bool, actor string) (int, error) {
	boardID, err := u.boardOf(ctx, root)
	if err != nil {
		return 0, err
	}
	order, err := u.collectDescendants(ctx, root.ID, deleted, u.svc.cfg.MaxCascadeDepth)
	if err != nil {
		return 0, err
	}
	for _, cardID := range order {
		if err := u.deleteOneCard(ctx, cardID); err != nil {
			return 0, fmt.Errorf("delete card %d: %w", cardID, err)
		}
		deleted[cardID] = true
	}
	u.announce(root, boardID, domain.EventCardDeleted, root.Name, actor)
	return len(order), nil
}

// deleteOneCard removes a card's dependent rows and then the card itself.
func (u *unitOfWork) deleteOneCard(ctx context.Context, cardID int64) error {
	parent, ok, err := u.parentItem(ctx, cardID)
	if err != nil {
		return err
	}
	if ok {
		parent.ConvertedCardID = nil
		parent.UpdatedAt = u.now.UTC()
		if err := u.repo.UpdateChecklistItem(ctx, parent); err != nil {
			return err
		}
	}
	if err := u.repo.DeleteCardDependencies(ctx, cardID); err != nil {
		return err
	}
	if err := u.repo.DeleteChecklistItems(ctx, cardID); err != nil {
		return err
	}
	if err := u.repo.DeleteActivities(ctx, cardID); err != nil {
		return err
	}
	return u.repo.DeleteCard(ctx, cardID)
}

// announce queues a listener event that is not persisted, for cards that no longer exist.
func (u *unitOfWork) announce(card domain.Card, boardID int64, eventType domain.EventType, details, actor string) {
	if actor == "" {
		actor = "system"
	}
	u.events = append(u.events, ActivityEvent{
		Activity: domain.Activity{
			ID:        u.svc.idGen(),
			CardID:    card.ID,
			Type:      eventType,
			Details:   details,
			Actor:     actor,
			CreatedAt: u.now.UTC(),
		},
		BoardID:  boardID,
		CardName: card.Name,
	})
}

// DeleteCard deletes a card with its dependencies, checklist, activities and every card
// converted from its checklist, recursively. It returns the number of cards removed.
func (s *Service) DeleteCard(ctx context.Context, cardID int64, actor string) (int, error) {
	var removed int
	err := s.inTx(ctx, "delete_card", func(u *unitOfWork) error {
		card, err := u.repo.GetCard(ctx, cardID)
		if err != nil {
			return err
		}
		removed, err = u.deleteCardTree(ctx, card, map[int64]bool{}, actor)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("card deleted", "card_id", cardID, "cards_removed", removed)
	return removed, nil
}

// DeleteCategory deletes a custom category and every card in it.
func (s *Service) DeleteCategory(ctx context.Context, categoryID int64, actor string) (int, error) {
	var removed int
	err := s.inTx(ctx, "delete_category", func(u *unitOfWork) error {
		category, err := u.repo.GetCategory(ctx, categoryID)
		if err != nil {
			return err
		}
		if category.Kind == domain.CategoryKindBuiltin {
			return fmt.Errorf("%w (%s)", domain.ErrBuiltinCategoryLocked, category.Name)
		}
		removed, err = u.deleteCategoryCards(ctx, categoryID, map[int64]bool{}, actor)
		if err != nil {
			return err
		}
		return u.repo.DeleteCategory(ctx, categoryID)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (u *unitOfWork) deleteCategoryCards(ctx context.Context, categoryID int64, deleted map[int64]bool, actor string) (int, error) {
	cards, err := u.repo.ListCardsByCategory(ctx, categoryID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, card := range cards {
		if deleted[card.ID] {
			continue
		}
		n, err := u.deleteCardTree(ctx, card, deleted, actor)
		if err != nil {
			return 0, err
		}
		removed += n
	}
	return removed, nil
}

// DeleteBoard deletes a board, its categories and all of their cards.
func (s *Service) DeleteBoard(ctx context.Context, boardID int64, actor string) (int, error) {
	var removed int
	err := s.inTx(ctx, "delete_board", func(u *unitOfWork) error {
		if _, err := u.repo.GetBoard(ctx, boardID); err != nil {
			return err
		}
		categories, err := u.repo.ListCategories(ctx, boardID)
		if err != nil {
			return err
		}
		deleted := map[int64]bool{}
		for _, category := range categories {
			n, err := u.deleteCategoryCards(ctx, category.ID, deleted, actor)
			if err != nil {
				return err
			}
			removed += n
		}
		for _, category := range categories {
			if err := u.repo.DeleteCategory(ctx, category.ID); err != nil {
				return fmt.Errorf("delete category %d: %w", category.ID, err)
			}
		}
		return u.repo.DeleteBoard(ctx, boardID)
	})
	if err != nil {
		return 0, err
	}
	s.logger.Info("board deleted", "board_id", boardID, "cards_removed", removed)
	return removed, nil
}
