package app

import (
	"context"

	"github.com/hylla/cardflow/internal/domain"
)

// Repository is the persistence port used by the service.
// Lookups of missing rows return an error wrapping domain.ErrNotFound.
type Repository interface {
	CreateBoard(context.Context, domain.Board) (domain.Board, error)
	GetBoard(context.Context, int64) (domain.Board, error)
	ListBoards(context.Context) ([]domain.Board, error)
	DeleteBoard(context.Context, int64) error

	CreateCategory(context.Context, domain.Category) (domain.Category, error)
	GetCategory(context.Context, int64) (domain.Category, error)
	ListCategories(context.Context, int64) ([]domain.Category, error)
	DeleteCategory(context.Context, int64) error

	CreateCard(context.Context, domain.Card) (domain.Card, error)
	UpdateCard(context.Context, domain.Card) error
	GetCard(context.Context, int64) (domain.Card, error)
	ListCardsByCategory(context.Context, int64) ([]domain.Card, error)
	ListCardsByBoard(context.Context, int64) ([]domain.Card, error)
	DeleteCard(context.Context, int64) error

	CreateDependency(context.Context, domain.Dependency) error
	DeleteDependency(context.Context, int64, int64) (int64, error)
	ListBlockers(context.Context, int64) ([]domain.Card, error)
	ListBlocked(context.Context, int64) ([]domain.Card, error)
	ListBoardDependencies(context.Context, int64) ([]domain.Dependency, error)
	DeleteCardDependencies(context.Context, int64) error

	CreateChecklistItem(context.Context, domain.ChecklistItem) (domain.ChecklistItem, error)
	UpdateChecklistItem(context.Context, domain.ChecklistItem) error
	GetChecklistItem(context.Context, int64) (domain.ChecklistItem, error)
	ListChecklistItems(context.Context, int64) ([]domain.ChecklistItem, error)
	FindChecklistItemByConvertedCard(context.Context, int64) (domain.ChecklistItem, error)
	DeleteChecklistItem(context.Context, int64) error
	DeleteChecklistItems(context.Context, int64) error

	CreateActivity(context.Context, domain.Activity) error
	ListActivities(context.Context, int64) ([]domain.Activity, error)
	DeleteActivities(context.Context, int64) error

	CreateVersion(context.Context, domain.Version) (domain.Version, error)
	ListVersions(context.Context, int64) ([]domain.Version, error)
}

// Store is a Repository that can group calls into one unit of work.
// fn receives a Repository bound to the transaction; a non-nil error rolls it back.
type Store interface {
	Repository
	WithinTx(ctx context.Context, fn func(Repository) error) error
}

// ActivityEvent is one committed activity with the context listeners need.
type ActivityEvent struct {
	Activity domain.Activity
	BoardID  int64
	CardName string
}

// ActivityListener observes activities after their unit of work commits.
type ActivityListener interface {
	ActivityCommitted(context.Context, ActivityEvent)
}

// ActivityListenerFunc adapts a function to ActivityListener.
type ActivityListenerFunc func(context.Context, ActivityEvent)

// ActivityCommitted calls f.
func (f ActivityListenerFunc) ActivityCommitted(ctx context.Context, ev ActivityEvent) {
	f(ctx, ev)
}

// PreferenceLookup returns a user's boolean notification flags keyed by preference name.
type PreferenceLookup interface {
	NotificationPreferences(ctx context.Context, email string) (map[string]bool, error)
}

// MemberDirectory lists the users subscribed to a board.
type MemberDirectory interface {
	ListBoardMembers(ctx context.Context, boardID int64) ([]domain.BoardMember, error)
}

// Logger is the leveled key-value logger the engine and its adapters write to.
// *log.Logger from charmbracelet/log satisfies it.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}
