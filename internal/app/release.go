package app

import (
	"context"
	"fmt"

	"github.com/hylla/cardflow/internal/domain"
)

// ReleaseVersion creates a version on a board and marks the given completed cards as
// released in it. Cards must belong to the board.
func (s *Service) ReleaseVersion(ctx context.Context, boardID int64, name string, cardIDs []int64, actor string) (domain.Version, []domain.Card, error) {
	var (
		version  domain.Version
		released []domain.Card
	)
	err := s.inTx(ctx, "release_version", func(u *unitOfWork) error {
		if _, err := u.repo.GetBoard(ctx, boardID); err != nil {
			return err
		}
		v, err := domain.NewVersion(boardID, name, u.now)
		if err != nil {
			return err
		}
		version, err = u.repo.CreateVersion(ctx, v)
		if err != nil {
			return err
		}
		for _, cardID := range cardIDs {
			card, err := u.repo.GetCard(ctx, cardID)
			if err != nil {
				return fmt.Errorf("card %d: %w", cardID, err)
			}
			cardBoard, err := u.boardOf(ctx, card)
			if err != nil {
				return err
			}
			if cardBoard != boardID {
				return fmt.Errorf("%w: card %d is not on board %d", domain.ErrValidation, cardID, boardID)
			}
			if err := card.MarkReleased(version.ID, u.now); err != nil {
				return fmt.Errorf("card %q: %w", card.Name, err)
			}
			if err := u.repo.UpdateCard(ctx, card); err != nil {
				return err
			}
			if _, err := u.record(ctx, card, domain.EventCardReleased, version.Name, actor); err != nil {
				return err
			}
			released = append(released, card)
		}
		return nil
	})
	if err != nil {
		return domain.Version{}, nil, err
	}
	s.logger.Info("version released", "board_id", boardID, "version", version.Name, "cards", len(released))
	return version, released, nil
}

// ArchiveCards archives the given cards.
func (s *Service) ArchiveCards(ctx context.Context, cardIDs []int64, actor string) ([]domain.Card, error) {
	var archived []domain.Card
	err := s.inTx(ctx, "archive_cards", func(u *unitOfWork) error {
		for _, cardID := range cardIDs {
			card, err := u.repo.GetCard(ctx, cardID)
			if err != nil {
				return fmt.Errorf("card %d: %w", cardID, err)
			}
			if card.IsArchived() {
				continue
			}
			card.Archive(u.now)
			if err := u.repo.UpdateCard(ctx, card); err != nil {
				return err
			}
			if _, err := u.record(ctx, card, domain.EventCardArchived, card.Name, actor); err != nil {
				return err
			}
			archived = append(archived, card)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return archived, nil
}

// ListUnreleasedCards returns the board's completed cards in Done that are not released yet.
func (s *Service) ListUnreleasedCards(ctx context.Context, boardID int64) ([]domain.Card, error) {
	categories, err := s.repo.ListCategories(ctx, boardID)
	if err != nil {
		return nil, err
	}
	var out []domain.Card
	for _, category := range categories {
		if !category.IsDone() {
			continue
		}
		cards, err := s.repo.ListCardsByCategory(ctx, category.ID)
		if err != nil {
			return nil, err
		}
		for _, card := range cards {
			if card.Release == domain.ReleaseUnreleased && !card.IsArchived() {
				out = append(out, card)
			}
		}
	}
	return out, nil
}

// ListVersionCards returns the cards of a board released in versionID.
func (s *Service) ListVersionCards(ctx context.Context, boardID, versionID int64) ([]domain.Card, error) {
	versions, err := s.repo.ListVersions(ctx, boardID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, v := range versions {
		if v.ID == versionID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("version %d: %w", versionID, domain.ErrNotFound)
	}
	cards, err := s.repo.ListCardsByBoard(ctx, boardID)
	if err != nil {
		return nil, err
	}
	var out []domain.Card
	for _, card := range cards {
		if card.VersionID != nil && *card.VersionID == versionID {
			out = append(out, card)
		}
	}
	return out, nil
}

// ListVersions lists a board's versions, newest first.
func (s *Service) ListVersions(ctx context.Context, boardID int64) ([]domain.Version, error) {
	if _, err := s.repo.GetBoard(ctx, boardID); err != nil {
		return nil, err
	}
	return s.repo.ListVersions(ctx, boardID)
}
