package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hylla/cardflow/internal/app"
	"github.com/hylla/cardflow/internal/domain"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = fmt.Errorf("%w: invalid request", domain.ErrValidation)

// CardService is the engine surface the transports drive.
type CardService interface {
	CreateBoard(context.Context, string) (domain.Board, []domain.Category, error)
	ListBoards(context.Context) ([]domain.Board, error)
	GetBoard(context.Context, int64) (domain.Board, error)
	CreateCategory(context.Context, int64, string, string) (domain.Category, error)
	ListCategories(context.Context, int64) ([]domain.Category, error)
	DeleteCategory(context.Context, int64, string) (int, error)
	DeleteBoard(context.Context, int64, string) (int, error)

	CreateCard(context.Context, app.CreateCardInput) (domain.Card, error)
	GetCard(context.Context, int64) (domain.Card, error)
	ListCardsWithDependencyFlags(context.Context, int64) ([]domain.CardDependencyFlags, error)
	RenameCard(context.Context, int64, string, string) (domain.Card, error)
	UpdateCardPriority(context.Context, int64, domain.Priority, string) (domain.Card, error)
	UpdateCardDates(context.Context, int64, *time.Time, string) (domain.Card, error)
	UpdateCardDescription(context.Context, int64, string, string) (domain.Card, error)
	MoveToCategory(context.Context, int64, int64, string) (domain.Card, error)
	SetCompletion(context.Context, int64, bool, string) (domain.Card, error)
	DeleteCard(context.Context, int64, string) (int, error)

	AddDependency(context.Context, int64, int64, string) (domain.Dependency, error)
	RemoveDependency(context.Context, int64, int64, string) error
	GetDependencies(context.Context, int64) (domain.CardDependencies, error)

	ListChecklistItems(context.Context, int64) ([]domain.ChecklistItem, error)
	AddChecklistItem(context.Context, int64, string, *time.Time, string) (domain.ChecklistItem, error)
	UpdateChecklistItem(context.Context, int64, string, string) (domain.ChecklistItem, error)
	ToggleChecklistItem(context.Context, int64, string) (domain.ChecklistItem, error)
	ToggleAllChecklistItems(context.Context, int64, string) ([]domain.ChecklistItem, error)
	ConvertChecklistItem(context.Context, int64, int64, int64, string) (app.ConvertResult, error)
	DeleteChecklistItem(context.Context, int64, string) error
	DeleteAllChecklistItems(context.Context, int64, string) error

	RecordActivity(context.Context, int64, domain.EventType, string, string) (domain.Activity, error)
	ListActivities(context.Context, int64) ([]domain.Activity, error)

	ReleaseVersion(context.Context, int64, string, []int64, string) (domain.Version, []domain.Card, error)
	ArchiveCards(context.Context, []int64, string) ([]domain.Card, error)
	ListUnreleasedCards(context.Context, int64) ([]domain.Card, error)
	ListVersionCards(context.Context, int64, int64) ([]domain.Card, error)
	ListVersions(context.Context, int64) ([]domain.Version, error)

	ImportSheet(context.Context, int64, [][]string, string) (app.ImportResult, error)
}

var _ CardService = (*app.Service)(nil)

// ErrorStatus maps an engine error to an HTTP status and a stable code.
func ErrorStatus(err error) (int, string) {
	kind := domain.KindOf(err)
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest, string(kind)
	case domain.KindNotFound:
		return http.StatusNotFound, string(kind)
	case domain.KindAlreadyExists:
		return http.StatusConflict, string(kind)
	case domain.KindPreconditionFailed:
		return http.StatusUnprocessableEntity, string(kind)
	default:
		return http.StatusInternalServerError, string(kind)
	}
}

// ResolveActor returns the trimmed actor, or fallback when it is empty.
func ResolveActor(actor, fallback string) string {
	if actor = strings.TrimSpace(actor); actor != "" {
		return actor
	}
	return fallback
}

// UpdateCard applies every set field of req in a fixed order and returns the final card.
// Each field change is its own operation and records its own activity.
func UpdateCard(ctx context.Context, svc CardService, cardID int64, req UpdateCardRequest, actor string) (domain.Card, error) {
	card, err := svc.GetCard(ctx, cardID)
	if err != nil {
		return domain.Card{}, err
	}
	if req.Name != nil {
		if card, err = svc.RenameCard(ctx, cardID, *req.Name, actor); err != nil {
			return domain.Card{}, err
		}
	}
	if req.Description != nil {
		if card, err = svc.UpdateCardDescription(ctx, cardID, *req.Description, actor); err != nil {
			return domain.Card{}, err
		}
	}
	if req.Priority != nil {
		priority, err := domain.ParsePriority(*req.Priority)
		if err != nil {
			return domain.Card{}, err
		}
		if card, err = svc.UpdateCardPriority(ctx, cardID, priority, actor); err != nil {
			return domain.Card{}, err
		}
	}
	if req.DueAt != nil || req.ClearDueAt {
		dueAt := req.DueAt
		if req.ClearDueAt {
			dueAt = nil
		}
		if card, err = svc.UpdateCardDates(ctx, cardID, dueAt, actor); err != nil {
			return domain.Card{}, err
		}
	}
	return card, nil
}
