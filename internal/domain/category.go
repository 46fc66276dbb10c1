package domain

import (
	"strings"
	"time"
)

// Built-in category names.
const (
	CategoryBacklog    = "Backlog"
	CategoryTodo       = "Todo"
	CategoryInProgress = "In Progress"
	CategoryDone       = "Done"
	CategoryRelease    = "Release"
)

type CategoryKind string

const (
	CategoryKindBuiltin CategoryKind = "builtin"
	CategoryKindCustom  CategoryKind = "custom"
)

type CategoryTemplate struct {
	Name  string
	Color string
}

var builtinCategories = []CategoryTemplate{
	{Name: CategoryBacklog, Color: "#f1c40f"},
	{Name: CategoryTodo, Color: "#e74c3c"},
	{Name: CategoryInProgress, Color: "#3498db"},
	{Name: CategoryDone, Color: "#2ecc71"},
	{Name: CategoryRelease, Color: "#9b59b6"},
}

var categoryProgress = map[string]int{
	CategoryBacklog:    0,
	CategoryTodo:       10,
	CategoryInProgress: 50,
	CategoryDone:       80,
	CategoryRelease:    100,
}

// DefaultCategories returns the categories every new board starts with, in board order.
func DefaultCategories() []CategoryTemplate {
	return append([]CategoryTemplate(nil), builtinCategories...)
}

// ProgressFor maps a category name to its default progress. Unknown names map to 0.
func ProgressFor(name string) int {
	return categoryProgress[name]
}

// IsBuiltinCategoryName reports whether name matches a built-in category, ignoring case.
func IsBuiltinCategoryName(name string) bool {
	name = strings.TrimSpace(name)
	for _, tpl := range builtinCategories {
		if strings.EqualFold(tpl.Name, name) {
			return true
		}
	}
	return false
}

type Category struct {
	ID        int64
	BoardID   int64
	Name      string
	Color     string
	Position  int
	Kind      CategoryKind
	CreatedAt time.Time
}

type CategoryInput struct {
	BoardID  int64
	Name     string
	Color    string
	Position int
}

// NewCategory builds a category and derives its kind from the name.
// Built-in names are only accepted with their exact spelling.
func NewCategory(in CategoryInput, now time.Time) (Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Color = strings.TrimSpace(in.Color)
	if in.BoardID <= 0 {
		return Category{}, ErrInvalidID
	}
	if in.Name == "" {
		return Category{}, ErrInvalidName
	}
	kind := CategoryKindCustom
	if IsBuiltinCategoryName(in.Name) {
		if _, exact := categoryProgress[in.Name]; !exact {
			return Category{}, ErrReservedCategory
		}
		kind = CategoryKindBuiltin
	}
	if in.Position < 0 {
		in.Position = 0
	}
	return Category{
		BoardID:   in.BoardID,
		Name:      in.Name,
		Color:     in.Color,
		Position:  in.Position,
		Kind:      kind,
		CreatedAt: now.UTC(),
	}, nil
}

// ParseCategoryKind validates a stored kind against the category name.
func ParseCategoryKind(raw, name string) (CategoryKind, error) {
	kind := CategoryKind(strings.TrimSpace(raw))
	switch kind {
	case CategoryKindBuiltin:
		if _, ok := categoryProgress[name]; !ok {
			return "", ErrInvalidCategoryKind
		}
	case CategoryKindCustom:
		if IsBuiltinCategoryName(name) {
			return "", ErrInvalidCategoryKind
		}
	default:
		return "", ErrInvalidCategoryKind
	}
	return kind, nil
}

func (c Category) Progress() int {
	return ProgressFor(c.Name)
}

func (c Category) IsDone() bool {
	return c.Kind == CategoryKindBuiltin && c.Name == CategoryDone
}

func (c Category) IsRelease() bool {
	return c.Kind == CategoryKindBuiltin && c.Name == CategoryRelease
}

// IsTerminal reports whether entering the category is gated on blockers and checklist items.
func (c Category) IsTerminal() bool {
	return c.IsDone() || c.IsRelease()
}
