package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/hylla/cardflow/internal/domain"
)

// Engine defaults applied when ServiceConfig leaves a field unset.
const (
	DefaultMaxCascadeDepth   = 64
	DefaultImportParallelism = 8
	DefaultImportDueDays     = 7
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	MaxCascadeDepth   int
	ImportParallelism int
	ImportDueDays     int
	Logger            Logger
}

// IDGenerator returns unique identifiers for new activities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service runs the card lifecycle and dependency rules over a Store.
type Service struct {
	repo   Store
	idGen  IDGenerator
	clock  Clock
	cfg    ServiceConfig
	logger Logger

	mu        sync.RWMutex
	listeners []ActivityListener
}

// NewService constructs a new value for this package.
func NewService(repo Store, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = uuid.NewString
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.MaxCascadeDepth <= 0 {
		cfg.MaxCascadeDepth = DefaultMaxCascadeDepth
	}
	if cfg.ImportParallelism <= 0 {
		cfg.ImportParallelism = DefaultImportParallelism
	}
	if cfg.ImportDueDays <= 0 {
		cfg.ImportDueDays = DefaultImportDueDays
	}
	var logger Logger = log.New(io.Discard)
	if cfg.Logger != nil {
		logger = cfg.Logger
	}
	return &Service{
		repo:   repo,
		idGen:  idGen,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
}

// Subscribe registers a listener for committed activities.
func (s *Service) Subscribe(listener ActivityListener) {
	if listener == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// unitOfWork carries the transaction-bound repository and the activities it recorded.
type unitOfWork struct {
	svc    *Service
	repo   Repository
	now    time.Time
	events []ActivityEvent
}

// inTx runs fn in one repository transaction and publishes its activities after commit.
func (s *Service) inTx(ctx context.Context, op string, fn func(*unitOfWork) error) error {
	var uow *unitOfWork
	err := s.repo.WithinTx(ctx, func(repo Repository) error {
		uow = &unitOfWork{svc: s, repo: repo, now: s.clock()}
		return fn(uow)
	})
	if err != nil {
		s.logFailure(op, err)
		return err
	}
	s.publish(ctx, uow.events)
	return nil
}

// logFailure logs data-integrity and unexpected failures. Rule rejections are routine and stay at debug.
func (s *Service) logFailure(op string, err error) {
	switch domain.KindOf(err) {
	case domain.KindInvariantViolation, domain.KindInternal:
		s.logger.Error("operation failed", "op", op, "err", err)
	default:
		s.logger.Debug("operation rejected", "op", op, "err", err)
	}
}

func (s *Service) publish(ctx context.Context, events []ActivityEvent) {
	if len(events) == 0 {
		return
	}
	s.mu.RLock()
	listeners := slices.Clone(s.listeners)
	s.mu.RUnlock()
	for _, ev := range events {
		for _, listener := range listeners {
			listener.ActivityCommitted(ctx, ev)
		}
	}
}

// record appends one activity for card inside the unit of work.
func (u *unitOfWork) record(ctx context.Context, card domain.Card, eventType domain.EventType, details, actor string) (domain.Activity, error) {
	activity, err := domain.NewActivity(domain.ActivityInput{
		ID:      u.svc.idGen(),
		CardID:  card.ID,
		Type:    eventType,
		Details: details,
		Actor:   actor,
	}, u.now)
	if err != nil {
		return domain.Activity{}, err
	}
	if err := u.repo.CreateActivity(ctx, activity); err != nil {
		return domain.Activity{}, fmt.Errorf("record %s activity: %w", eventType, err)
	}
	category, err := u.repo.GetCategory(ctx, card.CategoryID)
	if err != nil {
		return domain.Activity{}, err
	}
	u.events = append(u.events, ActivityEvent{
		Activity: activity,
		BoardID:  category.BoardID,
		CardName: card.Name,
	})
	return activity, nil
}

// boardOf resolves the board a card lives on.
func (u *unitOfWork) boardOf(ctx context.Context, card domain.Card) (int64, error) {
	category, err := u.repo.GetCategory(ctx, card.CategoryID)
	if err != nil {
		return 0, err
	}
	return category.BoardID, nil
}

// categoryNamed finds a built-in category by exact name on a board.
func (u *unitOfWork) categoryNamed(ctx context.Context, boardID int64, name string) (domain.Category, bool, error) {
	categories, err := u.repo.ListCategories(ctx, boardID)
	if err != nil {
		return domain.Category{}, false, err
	}
	for _, c := range categories {
		if c.Kind == domain.CategoryKindBuiltin && c.Name == name {
			return c, true, nil
		}
	}
	return domain.Category{}, false, nil
}

// CreateBoard creates a board with the built-in categories in board order.
func (s *Service) CreateBoard(ctx context.Context, name string) (domain.Board, []domain.Category, error) {
	var (
		board      domain.Board
		categories []domain.Category
	)
	err := s.inTx(ctx, "create_board", func(u *unitOfWork) error {
		b, err := domain.NewBoard(name, u.now)
		if err != nil {
			return err
		}
		board, err = u.repo.CreateBoard(ctx, b)
		if err != nil {
			return err
		}
		for idx, tpl := range domain.DefaultCategories() {
			c, err := domain.NewCategory(domain.CategoryInput{
				BoardID:  board.ID,
				Name:     tpl.Name,
				Color:    tpl.Color,
				Position: idx,
			}, u.now)
			if err != nil {
				return err
			}
			created, err := u.repo.CreateCategory(ctx, c)
			if err != nil {
				return err
			}
			categories = append(categories, created)
		}
		return nil
	})
	if err != nil {
		return domain.Board{}, nil, err
	}
	s.logger.Info("board created", "board_id", board.ID, "name", board.Name)
	return board, categories, nil
}

// CreateCategory adds a custom category at the end of a board.
func (s *Service) CreateCategory(ctx context.Context, boardID int64, name, color string) (domain.Category, error) {
	var category domain.Category
	err := s.inTx(ctx, "create_category", func(u *unitOfWork) error {
		if _, err := u.repo.GetBoard(ctx, boardID); err != nil {
			return err
		}
		if domain.IsBuiltinCategoryName(name) {
			return fmt.Errorf("%w: %q", domain.ErrReservedCategory, strings.TrimSpace(name))
		}
		existing, err := u.repo.ListCategories(ctx, boardID)
		if err != nil {
			return err
		}
		for _, c := range existing {
			if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
				return fmt.Errorf("%w: %q", domain.ErrCategoryExists, c.Name)
			}
		}
		c, err := domain.NewCategory(domain.CategoryInput{
			BoardID:  boardID,
			Name:     name,
			Color:    color,
			Position: len(existing),
		}, u.now)
		if err != nil {
			return err
		}
		category, err = u.repo.CreateCategory(ctx, c)
		return err
	})
	if err != nil {
		return domain.Category{}, err
	}
	return category, nil
}

// ListCategories lists a board's categories in board order.
func (s *Service) ListCategories(ctx context.Context, boardID int64) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx, boardID)
}

// GetBoard returns one board.
func (s *Service) GetBoard(ctx context.Context, boardID int64) (domain.Board, error) {
	return s.repo.GetBoard(ctx, boardID)
}

// ListBoards lists every board.
func (s *Service) ListBoards(ctx context.Context) ([]domain.Board, error) {
	return s.repo.ListBoards(ctx)
}

// CreateCardInput holds input values for create card operations.
type CreateCardInput struct {
	CategoryID  int64
	Name        string
	Description string
	Priority    domain.Priority
	SerialNo    string
	DueAt       *time.Time
	Actor       string
}

// CreateCard creates a card whose progress follows its category.
func (s *Service) CreateCard(ctx context.Context, in CreateCardInput) (domain.Card, error) {
	var card domain.Card
	err := s.inTx(ctx, "create_card", func(u *unitOfWork) error {
		var err error
		card, err = u.createCard(ctx, in)
		return err
	})
	if err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

func (u *unitOfWork) createCard(ctx context.Context, in CreateCardInput) (domain.Card, error) {
	category, err := u.repo.GetCategory(ctx, in.CategoryID)
	if err != nil {
		return domain.Card{}, err
	}
	card, err := domain.NewCard(domain.CardInput{
		CategoryID:  in.CategoryID,
		Name:        in.Name,
		Description: in.Description,
		Priority:    in.Priority,
		SerialNo:    in.SerialNo,
		DueAt:       in.DueAt,
	}, category, u.now)
	if err != nil {
		return domain.Card{}, err
	}
	if category.IsRelease() {
		return domain.Card{}, domain.ErrReleaseNotAllowed
	}
	if category.IsDone() {
		card.IsCompleted = true
	}
	card, err = u.repo.CreateCard(ctx, card)
	if err != nil {
		return domain.Card{}, err
	}
	if _, err := u.record(ctx, card, domain.EventCardCreated, card.Name, in.Actor); err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

// GetCard returns one card.
func (s *Service) GetCard(ctx context.Context, cardID int64) (domain.Card, error) {
	return s.repo.GetCard(ctx, cardID)
}

// ListBoardCards lists every card on a board, archived ones included.
func (s *Service) ListBoardCards(ctx context.Context, boardID int64) ([]domain.Card, error) {
	return s.repo.ListCardsByBoard(ctx, boardID)
}

// RenameCard renames a card and the checklist item it was promoted from.
func (s *Service) RenameCard(ctx context.Context, cardID int64, name, actor string) (domain.Card, error) {
	return s.updateCard(ctx, "rename_card", cardID, actor, func(u *unitOfWork, card *domain.Card) (domain.EventType, string, error) {
		if err := card.Rename(name, u.now); err != nil {
			return "", "", err
		}
		parent, ok, err := u.parentItem(ctx, card.ID)
		if err != nil {
			return "", "", err
		}
		if ok {
			if err := parent.Rename(card.Name, u.now); err != nil {
				return "", "", err
			}
			if err := u.repo.UpdateChecklistItem(ctx, parent); err != nil {
				return "", "", err
			}
		}
		return domain.EventCardRenamed, card.Name, nil
	})
}

// UpdateCardPriority changes a card's priority.
func (s *Service) UpdateCardPriority(ctx context.Context, cardID int64, priority domain.Priority, actor string) (domain.Card, error) {
	return s.updateCard(ctx, "update_card_priority", cardID, actor, func(u *unitOfWork, card *domain.Card) (domain.EventType, string, error) {
		if err := card.SetPriority(priority, u.now); err != nil {
			return "", "", err
		}
		return domain.EventCardPriorityUpdated, card.Name, nil
	})
}

// UpdateCardDates changes a card's due date; nil clears it.
func (s *Service) UpdateCardDates(ctx context.Context, cardID int64, dueAt *time.Time, actor string) (domain.Card, error) {
	return s.updateCard(ctx, "update_card_dates", cardID, actor, func(u *unitOfWork, card *domain.Card) (domain.EventType, string, error) {
		card.SetDueAt(dueAt, u.now)
		return domain.EventCardDatesUpdated, card.Name, nil
	})
}

// UpdateCardDescription replaces a card's description.
func (s *Service) UpdateCardDescription(ctx context.Context, cardID int64, description, actor string) (domain.Card, error) {
	return s.updateCard(ctx, "update_card_description", cardID, actor, func(u *unitOfWork, card *domain.Card) (domain.EventType, string, error) {
		card.Description = strings.TrimSpace(description)
		card.UpdatedAt = u.now.UTC()
		return domain.EventCardDescriptionUpdated, card.Name, nil
	})
}

// updateCard loads, mutates, stores and records one card change.
func (s *Service) updateCard(ctx context.Context, op string, cardID int64, actor string, mutate func(*unitOfWork, *domain.Card) (domain.EventType, string, error)) (domain.Card, error) {
	var card domain.Card
	err := s.inTx(ctx, op, func(u *unitOfWork) error {
		var err error
		card, err = u.repo.GetCard(ctx, cardID)
		if err != nil {
			return err
		}
		eventType, details, err := mutate(u, &card)
		if err != nil {
			return err
		}
		if err := u.repo.UpdateCard(ctx, card); err != nil {
			return err
		}
		_, err = u.record(ctx, card, eventType, details, actor)
		return err
	})
	if err != nil {
		return domain.Card{}, err
	}
	return card, nil
}

// RecordActivity appends an activity to a card's log.
func (s *Service) RecordActivity(ctx context.Context, cardID int64, eventType domain.EventType, details, actor string) (domain.Activity, error) {
	var activity domain.Activity
	err := s.inTx(ctx, "record_activity", func(u *unitOfWork) error {
		card, err := u.repo.GetCard(ctx, cardID)
		if err != nil {
			return err
		}
		activity, err = u.record(ctx, card, eventType, details, actor)
		return err
	})
	if err != nil {
		return domain.Activity{}, err
	}
	return activity, nil
}

// ListActivities returns a card's activities, oldest first.
func (s *Service) ListActivities(ctx context.Context, cardID int64) ([]domain.Activity, error) {
	if _, err := s.repo.GetCard(ctx, cardID); err != nil {
		return nil, err
	}
	return s.repo.ListActivities(ctx, cardID)
}

// parentItem returns the checklist item card was promoted from, if any.
func (u *unitOfWork) parentItem(ctx context.Context, cardID int64) (domain.ChecklistItem, bool, error) {
	item, err := u.repo.FindChecklistItemByConvertedCard(ctx, cardID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ChecklistItem{}, false, nil
	}
	if err != nil {
		return domain.ChecklistItem{}, false, err
	}
	return item, true, nil
}
