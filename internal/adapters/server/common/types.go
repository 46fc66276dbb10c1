// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"time"

	"github.com/hylla/cardflow/internal/app"
	"github.com/hylla/cardflow/internal/domain"
)

// BoardView is the transport shape of one board.
type BoardView struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryView is the transport shape of one category.
type CategoryView struct {
	ID       int64  `json:"id"`
	BoardID  int64  `json:"board_id"`
	Name     string `json:"name"`
	Color    string `json:"color,omitempty"`
	Position int    `json:"position"`
	Kind     string `json:"kind"`
	Progress int    `json:"progress"`
}

// CardView is the transport shape of one card.
type CardView struct {
	ID          int64      `json:"id"`
	CategoryID  int64      `json:"category_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	IsCompleted bool       `json:"is_completed"`
	Progress    int        `json:"progress"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	Release     string     `json:"release"`
	VersionID   *int64     `json:"version_id,omitempty"`
	SerialNo    string     `json:"sr_number,omitempty"`
	DueAt       *time.Time `json:"due_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CardFlagsView is a card annotated with its dependency role on the board.
type CardFlagsView struct {
	CardView
	IsBlocker     bool `json:"is_blocker"`
	IsBlockedBy   bool `json:"is_blocked_by"`
	IsIndependent bool `json:"is_independent"`
}

// DependencyView is the transport shape of one blocker edge.
type DependencyView struct {
	BlockerID int64     `json:"blocker_id"`
	BlockedID int64     `json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CardDependenciesView lists both sides of a card's dependency edges.
type CardDependenciesView struct {
	CardID    int64      `json:"card_id"`
	Blockers  []CardView `json:"blockers"`
	BlockedBy []CardView `json:"blocked_by"`
}

// ChecklistItemView is the transport shape of one checklist item.
type ChecklistItemView struct {
	ID              int64      `json:"id"`
	CardID          int64      `json:"card_id"`
	Title           string     `json:"title"`
	IsComplete      bool       `json:"is_complete"`
	ConvertedCardID *int64     `json:"converted_card_id,omitempty"`
	DueAt           *time.Time `json:"due_date,omitempty"`
	Position        int        `json:"position"`
}

// ActivityView is the transport shape of one activity with its rendered message.
type ActivityView struct {
	ID        string    `json:"id"`
	CardID    int64     `json:"card_id"`
	Type      string    `json:"type"`
	Details   string    `json:"details,omitempty"`
	Actor     string    `json:"actor"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// VersionView is the transport shape of one released version.
type VersionView struct {
	ID         int64     `json:"id"`
	BoardID    int64     `json:"board_id"`
	Name       string    `json:"name"`
	ReleasedAt time.Time `json:"released_at"`
}

// ReleaseView is the result of a release: the version and the cards it shipped.
type ReleaseView struct {
	Version VersionView `json:"version"`
	Cards   []CardView  `json:"cards"`
}

// DeleteResult reports how many cards a delete removed.
type DeleteResult struct {
	DeletedCards int `json:"deleted_cards"`
}

// CreateBoardRequest creates a board with the built-in categories.
type CreateBoardRequest struct {
	Name string `json:"name"`
}

// BoardCreated is returned by board creation.
type BoardCreated struct {
	Board      BoardView      `json:"board"`
	Categories []CategoryView `json:"categories"`
}

// CreateCategoryRequest adds a custom category to a board.
type CreateCategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// CreateCardRequest creates a card in a category.
type CreateCardRequest struct {
	CategoryID  int64      `json:"category_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	SerialNo    string     `json:"sr_number,omitempty"`
	DueAt       *time.Time `json:"due_date,omitempty"`
	Actor       string     `json:"actor,omitempty"`
}

// UpdateCardRequest patches one or more card fields. Nil fields are left alone.
type UpdateCardRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	DueAt       *time.Time `json:"due_date,omitempty"`
	ClearDueAt  bool       `json:"clear_due_date,omitempty"`
	Actor       string     `json:"actor,omitempty"`
}

// MoveCardRequest moves a card to another category.
type MoveCardRequest struct {
	CategoryID int64  `json:"category_id"`
	Actor      string `json:"actor,omitempty"`
}

// CompletionRequest checks or unchecks a card.
type CompletionRequest struct {
	Checked bool   `json:"checked"`
	Actor   string `json:"actor,omitempty"`
}

// DependencyRequest names the blocker of a card.
type DependencyRequest struct {
	BlockerID int64  `json:"blocker_id"`
	Actor     string `json:"actor,omitempty"`
}

// ChecklistItemRequest adds or renames a checklist item.
type ChecklistItemRequest struct {
	Title string     `json:"title"`
	DueAt *time.Time `json:"due_date,omitempty"`
	Actor string     `json:"actor,omitempty"`
}

// ConvertRequest converts a checklist item into a card.
type ConvertRequest struct {
	CategoryID   int64  `json:"category_id"`
	ParentCardID int64  `json:"parent_card_id"`
	Actor        string `json:"actor,omitempty"`
}

// ActorRequest carries only the acting user.
type ActorRequest struct {
	Actor string `json:"actor,omitempty"`
}

// CommentRequest records a free-form activity on a card.
type CommentRequest struct {
	Type    string `json:"type,omitempty"`
	Details string `json:"details"`
	Actor   string `json:"actor,omitempty"`
}

// ImportRequest carries sheet rows, header first.
type ImportRequest struct {
	Rows  [][]string `json:"rows"`
	Actor string     `json:"actor,omitempty"`
}

// ReleaseRequest releases cards under a new version.
type ReleaseRequest struct {
	Name    string  `json:"name"`
	CardIDs []int64 `json:"card_ids"`
	Actor   string  `json:"actor,omitempty"`
}

// ArchiveRequest archives cards.
type ArchiveRequest struct {
	CardIDs []int64 `json:"card_ids"`
	Actor   string  `json:"actor,omitempty"`
}

// ImportView is the transport shape of a sheet import.
type ImportView = app.ImportResult

// ConvertView is the transport shape of a checklist conversion.
type ConvertView = app.ConvertResult

// ToBoardView maps a domain board.
func ToBoardView(b domain.Board) BoardView {
	return BoardView{ID: b.ID, Name: b.Name, CreatedAt: b.CreatedAt}
}

// ToCategoryView maps a domain category.
func ToCategoryView(c domain.Category) CategoryView {
	return CategoryView{
		ID:       c.ID,
		BoardID:  c.BoardID,
		Name:     c.Name,
		Color:    c.Color,
		Position: c.Position,
		Kind:     string(c.Kind),
		Progress: c.Progress(),
	}
}

// ToCategoryViews maps a category slice.
func ToCategoryViews(in []domain.Category) []CategoryView {
	out := make([]CategoryView, 0, len(in))
	for _, c := range in {
		out = append(out, ToCategoryView(c))
	}
	return out
}

// ToCardView maps a domain card.
func ToCardView(c domain.Card) CardView {
	return CardView{
		ID:          c.ID,
		CategoryID:  c.CategoryID,
		Name:        c.Name,
		Description: c.Description,
		IsCompleted: c.IsCompleted,
		Progress:    c.Progress,
		Priority:    string(c.Priority),
		Status:      string(c.Status),
		Release:     string(c.Release),
		VersionID:   c.VersionID,
		SerialNo:    c.SerialNo,
		DueAt:       c.DueAt,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

// ToCardViews maps a card slice.
func ToCardViews(in []domain.Card) []CardView {
	out := make([]CardView, 0, len(in))
	for _, c := range in {
		out = append(out, ToCardView(c))
	}
	return out
}

// ToCardFlagsViews maps dependency-flagged cards.
func ToCardFlagsViews(in []domain.CardDependencyFlags) []CardFlagsView {
	out := make([]CardFlagsView, 0, len(in))
	for _, f := range in {
		out = append(out, CardFlagsView{
			CardView:      ToCardView(f.Card),
			IsBlocker:     f.IsBlocker,
			IsBlockedBy:   f.IsBlockedBy,
			IsIndependent: f.IsIndependent,
		})
	}
	return out
}

// ToDependencyView maps one edge.
func ToDependencyView(d domain.Dependency) DependencyView {
	return DependencyView{BlockerID: d.BlockerID, BlockedID: d.BlockedID, CreatedAt: d.CreatedAt}
}

// ToCardDependenciesView maps both sides of a card's edges.
func ToCardDependenciesView(d domain.CardDependencies) CardDependenciesView {
	return CardDependenciesView{
		CardID:    d.CardID,
		Blockers:  ToCardViews(d.Blockers),
		BlockedBy: ToCardViews(d.BlockedBy),
	}
}

// ToChecklistItemView maps one checklist item.
func ToChecklistItemView(i domain.ChecklistItem) ChecklistItemView {
	return ChecklistItemView{
		ID:              i.ID,
		CardID:          i.CardID,
		Title:           i.Title,
		IsComplete:      i.IsComplete,
		ConvertedCardID: i.ConvertedCardID,
		DueAt:           i.DueAt,
		Position:        i.Position,
	}
}

// ToChecklistItemViews maps a checklist.
func ToChecklistItemViews(in []domain.ChecklistItem) []ChecklistItemView {
	out := make([]ChecklistItemView, 0, len(in))
	for _, i := range in {
		out = append(out, ToChecklistItemView(i))
	}
	return out
}

// ToActivityView maps one activity and renders its message.
func ToActivityView(a domain.Activity) ActivityView {
	return ActivityView{
		ID:        a.ID,
		CardID:    a.CardID,
		Type:      string(a.Type),
		Details:   a.Details,
		Actor:     a.Actor,
		Message:   a.Message(),
		CreatedAt: a.CreatedAt,
	}
}

// ToActivityViews maps an activity feed.
func ToActivityViews(in []domain.Activity) []ActivityView {
	out := make([]ActivityView, 0, len(in))
	for _, a := range in {
		out = append(out, ToActivityView(a))
	}
	return out
}

// ToVersionView maps one version.
func ToVersionView(v domain.Version) VersionView {
	return VersionView{ID: v.ID, BoardID: v.BoardID, Name: v.Name, ReleasedAt: v.ReleasedAt}
}

// ToVersionViews maps a version list.
func ToVersionViews(in []domain.Version) []VersionView {
	out := make([]VersionView, 0, len(in))
	for _, v := range in {
		out = append(out, ToVersionView(v))
	}
	return out
}
