package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hylla/cardflow/internal/domain"
)

// SnapshotFormatVersion tags the snapshot layout.
const SnapshotFormatVersion = "cardflow.snapshot.v1"

// Snapshot is a portable copy of every board and everything hanging off it.
// IDs inside a snapshot are only references between its own rows; import assigns new ones.
type Snapshot struct {
	Version        string                  `json:"version"`
	ExportedAt     time.Time               `json:"exported_at"`
	Boards         []SnapshotBoard         `json:"boards"`
	Categories     []SnapshotCategory      `json:"categories"`
	Versions       []SnapshotVersion       `json:"versions,omitempty"`
	Cards          []SnapshotCard          `json:"cards"`
	Dependencies   []SnapshotDependency    `json:"dependencies,omitempty"`
	ChecklistItems []SnapshotChecklistItem `json:"checklist_items,omitempty"`
	Activities     []SnapshotActivity      `json:"activities,omitempty"`
}

// SnapshotBoard represents snapshot board data used by this package.
type SnapshotBoard struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotCategory represents snapshot category data used by this package.
type SnapshotCategory struct {
	ID        int64               `json:"id"`
	BoardID   int64               `json:"board_id"`
	Name      string              `json:"name"`
	Color     string              `json:"color"`
	Position  int                 `json:"position"`
	Kind      domain.CategoryKind `json:"kind"`
	CreatedAt time.Time           `json:"created_at"`
}

// SnapshotVersion represents one named release in a snapshot.
type SnapshotVersion struct {
	ID         int64     `json:"id"`
	BoardID    int64     `json:"board_id"`
	Name       string    `json:"name"`
	ReleasedAt time.Time `json:"released_at"`
}

// SnapshotCard represents snapshot card data used by this package.
type SnapshotCard struct {
	ID          int64               `json:"id"`
	CategoryID  int64               `json:"category_id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	IsCompleted bool                `json:"is_completed"`
	Progress    int                 `json:"progress"`
	Priority    domain.Priority     `json:"priority"`
	Status      domain.CardStatus   `json:"status"`
	Release     domain.ReleaseState `json:"release"`
	VersionID   *int64              `json:"version_id,omitempty"`
	SerialNo    string              `json:"serial_no,omitempty"`
	DueAt       *time.Time          `json:"due_at,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// SnapshotDependency is one blocker edge.
type SnapshotDependency struct {
	BlockerID int64     `json:"blocker_id"`
	BlockedID int64     `json:"blocked_id"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotChecklistItem represents snapshot checklist data used by this package.
type SnapshotChecklistItem struct {
	ID              int64      `json:"id"`
	CardID          int64      `json:"card_id"`
	Title           string     `json:"title"`
	IsComplete      bool       `json:"is_complete"`
	ConvertedCardID *int64     `json:"converted_card_id,omitempty"`
	DueAt           *time.Time `json:"due_at,omitempty"`
	Position        int        `json:"position"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SnapshotActivity is one feed entry of a card.
type SnapshotActivity struct {
	ID        string           `json:"id"`
	CardID    int64            `json:"card_id"`
	Type      domain.EventType `json:"type"`
	Details   string           `json:"details"`
	Actor     string           `json:"actor"`
	CreatedAt time.Time        `json:"created_at"`
}

// SnapshotImportSummary counts the rows an import created.
type SnapshotImportSummary struct {
	Boards         int `json:"boards"`
	Categories     int `json:"categories"`
	Versions       int `json:"versions"`
	Cards          int `json:"cards"`
	Dependencies   int `json:"dependencies"`
	ChecklistItems int `json:"checklist_items"`
	Activities     int `json:"activities"`
}

// ExportSnapshot copies every board into a snapshot.
// Archived cards, and the rows that only make sense with them, are skipped unless includeArchived is set.
func (s *Service) ExportSnapshot(ctx context.Context, includeArchived bool) (Snapshot, error) {
	boards, err := s.repo.ListBoards(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Version:    SnapshotFormatVersion,
		ExportedAt: s.clock().UTC(),
	}
	exported := map[int64]struct{}{}
	var items []domain.ChecklistItem
	var deps []domain.Dependency
	for _, board := range boards {
		snap.Boards = append(snap.Boards, snapshotBoardFromDomain(board))

		categories, err := s.repo.ListCategories(ctx, board.ID)
		if err != nil {
			return Snapshot{}, err
		}
		for _, category := range categories {
			snap.Categories = append(snap.Categories, snapshotCategoryFromDomain(category))
		}

		versions, err := s.repo.ListVersions(ctx, board.ID)
		if err != nil {
			return Snapshot{}, err
		}
		for _, v := range versions {
			snap.Versions = append(snap.Versions, snapshotVersionFromDomain(v))
		}

		cards, err := s.repo.ListCardsByBoard(ctx, board.ID)
		if err != nil {
			return Snapshot{}, err
		}
		for _, card := range cards {
			if !includeArchived && card.Status == domain.CardStatusArchived {
				continue
			}
			exported[card.ID] = struct{}{}
			snap.Cards = append(snap.Cards, snapshotCardFromDomain(card))

			cardItems, err := s.repo.ListChecklistItems(ctx, card.ID)
			if err != nil {
				return Snapshot{}, err
			}
			items = append(items, cardItems...)

			activities, err := s.repo.ListActivities(ctx, card.ID)
			if err != nil {
				return Snapshot{}, err
			}
			for _, a := range activities {
				snap.Activities = append(snap.Activities, snapshotActivityFromDomain(a))
			}
		}

		boardDeps, err := s.repo.ListBoardDependencies(ctx, board.ID)
		if err != nil {
			return Snapshot{}, err
		}
		deps = append(deps, boardDeps...)
	}

	seenDeps := map[[2]int64]struct{}{}
	for _, dep := range deps {
		if !hasID(exported, dep.BlockerID) || !hasID(exported, dep.BlockedID) {
			continue
		}
		key := [2]int64{dep.BlockerID, dep.BlockedID}
		if _, ok := seenDeps[key]; ok {
			continue
		}
		seenDeps[key] = struct{}{}
		snap.Dependencies = append(snap.Dependencies, SnapshotDependency{
			BlockerID: dep.BlockerID,
			BlockedID: dep.BlockedID,
			CreatedAt: dep.CreatedAt.UTC(),
		})
	}
	for _, item := range items {
		out := snapshotChecklistItemFromDomain(item)
		if out.ConvertedCardID != nil && !hasID(exported, *out.ConvertedCardID) {
			out.ConvertedCardID = nil
		}
		snap.ChecklistItems = append(snap.ChecklistItems, out)
	}

	snap.sort()
	return snap, nil
}

// ImportSnapshot recreates a snapshot's boards in one transaction.
// Every row gets a fresh ID, so importing the same snapshot twice yields two copies.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) (SnapshotImportSummary, error) {
	if err := snap.Validate(); err != nil {
		s.logFailure("import_snapshot", err)
		return SnapshotImportSummary{}, err
	}
	snap.sort()

	var summary SnapshotImportSummary
	err := s.inTx(ctx, "import_snapshot", func(u *unitOfWork) error {
		summary = SnapshotImportSummary{}
		boardIDs := map[int64]int64{}
		for _, b := range snap.Boards {
			created, err := u.repo.CreateBoard(ctx, b.toDomain())
			if err != nil {
				return err
			}
			boardIDs[b.ID] = created.ID
			summary.Boards++
		}

		categoryIDs := map[int64]int64{}
		for _, c := range snap.Categories {
			dc := c.toDomain()
			dc.BoardID = boardIDs[c.BoardID]
			created, err := u.repo.CreateCategory(ctx, dc)
			if err != nil {
				return err
			}
			categoryIDs[c.ID] = created.ID
			summary.Categories++
		}

		versionIDs := map[int64]int64{}
		for _, v := range snap.Versions {
			dv := v.toDomain()
			dv.BoardID = boardIDs[v.BoardID]
			created, err := u.repo.CreateVersion(ctx, dv)
			if err != nil {
				return err
			}
			versionIDs[v.ID] = created.ID
			summary.Versions++
		}

		cardIDs := map[int64]int64{}
		for _, c := range snap.Cards {
			dc := c.toDomain()
			dc.CategoryID = categoryIDs[c.CategoryID]
			if c.VersionID != nil {
				id := versionIDs[*c.VersionID]
				dc.VersionID = &id
			}
			created, err := u.repo.CreateCard(ctx, dc)
			if err != nil {
				return err
			}
			cardIDs[c.ID] = created.ID
			summary.Cards++
		}

		for _, d := range snap.Dependencies {
			err := u.repo.CreateDependency(ctx, domain.Dependency{
				BlockerID: cardIDs[d.BlockerID],
				BlockedID: cardIDs[d.BlockedID],
				CreatedAt: d.CreatedAt.UTC(),
			})
			if err != nil {
				return err
			}
			summary.Dependencies++
		}

		for _, item := range snap.ChecklistItems {
			di := item.toDomain()
			di.CardID = cardIDs[item.CardID]
			if item.ConvertedCardID != nil {
				id := cardIDs[*item.ConvertedCardID]
				di.ConvertedCardID = &id
			}
			if _, err := u.repo.CreateChecklistItem(ctx, di); err != nil {
				return err
			}
			summary.ChecklistItems++
		}

		for _, a := range snap.Activities {
			da := a.toDomain()
			da.ID = s.idGen()
			da.CardID = cardIDs[a.CardID]
			if err := u.repo.CreateActivity(ctx, da); err != nil {
				return err
			}
			summary.Activities++
		}
		return nil
	})
	if err != nil {
		return SnapshotImportSummary{}, err
	}
	s.logger.Info("snapshot imported", "boards", summary.Boards, "cards", summary.Cards, "activities", summary.Activities)
	return summary, nil
}

// Validate checks required fields and that every reference resolves inside the snapshot.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotFormatVersion {
		return fmt.Errorf("%w: unsupported snapshot version: %q", domain.ErrValidation, s.Version)
	}

	boardIDs := map[int64]struct{}{}
	for i, b := range s.Boards {
		if b.ID <= 0 {
			return fmt.Errorf("%w: boards[%d].id is required", domain.ErrValidation, i)
		}
		if strings.TrimSpace(b.Name) == "" {
			return fmt.Errorf("%w: boards[%d].name is required", domain.ErrValidation, i)
		}
		if hasID(boardIDs, b.ID) {
			return fmt.Errorf("%w: duplicate board id: %d", domain.ErrValidation, b.ID)
		}
		boardIDs[b.ID] = struct{}{}
	}

	categoryIDs := map[int64]struct{}{}
	categoryNames := map[string]struct{}{}
	for i, c := range s.Categories {
		if c.ID <= 0 {
			return fmt.Errorf("%w: categories[%d].id is required", domain.ErrValidation, i)
		}
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: categories[%d].name is required", domain.ErrValidation, i)
		}
		if c.Position < 0 {
			return fmt.Errorf("%w: categories[%d].position must be >= 0", domain.ErrValidation, i)
		}
		if c.Kind != domain.CategoryKindBuiltin && c.Kind != domain.CategoryKindCustom {
			return fmt.Errorf("%w: categories[%d].kind %q is unknown", domain.ErrValidation, i, c.Kind)
		}
		if !hasID(boardIDs, c.BoardID) {
			return fmt.Errorf("%w: categories[%d] references unknown board_id %d", domain.ErrValidation, i, c.BoardID)
		}
		if hasID(categoryIDs, c.ID) {
			return fmt.Errorf("%w: duplicate category id: %d", domain.ErrValidation, c.ID)
		}
		nameKey := fmt.Sprintf("%d/%s", c.BoardID, strings.ToLower(strings.TrimSpace(c.Name)))
		if _, ok := categoryNames[nameKey]; ok {
			return fmt.Errorf("%w: categories[%d] duplicates name %q on board %d", domain.ErrValidation, i, c.Name, c.BoardID)
		}
		categoryIDs[c.ID] = struct{}{}
		categoryNames[nameKey] = struct{}{}
	}

	versionIDs := map[int64]struct{}{}
	for i, v := range s.Versions {
		if v.ID <= 0 {
			return fmt.Errorf("%w: versions[%d].id is required", domain.ErrValidation, i)
		}
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("%w: versions[%d].name is required", domain.ErrValidation, i)
		}
		if !hasID(boardIDs, v.BoardID) {
			return fmt.Errorf("%w: versions[%d] references unknown board_id %d", domain.ErrValidation, i, v.BoardID)
		}
		if hasID(versionIDs, v.ID) {
			return fmt.Errorf("%w: duplicate version id: %d", domain.ErrValidation, v.ID)
		}
		versionIDs[v.ID] = struct{}{}
	}

	cardIDs := map[int64]struct{}{}
	for i, c := range s.Cards {
		if c.ID <= 0 {
			return fmt.Errorf("%w: cards[%d].id is required", domain.ErrValidation, i)
		}
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: cards[%d].name is required", domain.ErrValidation, i)
		}
		if c.Progress < 0 || c.Progress > 100 {
			return fmt.Errorf("%w: cards[%d].progress must be between 0 and 100", domain.ErrValidation, i)
		}
		if c.Priority == "" {
			s.Cards[i].Priority = domain.PriorityMedium
		} else {
			p, err := domain.ParsePriority(string(c.Priority))
			if err != nil {
				return fmt.Errorf("cards[%d]: %w", i, err)
			}
			s.Cards[i].Priority = p
		}
		if c.Status == "" {
			s.Cards[i].Status = domain.CardStatusActive
		}
		if c.Release == "" {
			s.Cards[i].Release = domain.ReleaseUnreleased
		}
		if !hasID(categoryIDs, c.CategoryID) {
			return fmt.Errorf("%w: cards[%d] references unknown category_id %d", domain.ErrValidation, i, c.CategoryID)
		}
		if c.VersionID != nil && !hasID(versionIDs, *c.VersionID) {
			return fmt.Errorf("%w: cards[%d] references unknown version_id %d", domain.ErrValidation, i, *c.VersionID)
		}
		if hasID(cardIDs, c.ID) {
			return fmt.Errorf("%w: duplicate card id: %d", domain.ErrValidation, c.ID)
		}
		cardIDs[c.ID] = struct{}{}
	}

	edges := map[[2]int64]struct{}{}
	for i, d := range s.Dependencies {
		if !hasID(cardIDs, d.BlockerID) || !hasID(cardIDs, d.BlockedID) {
			return fmt.Errorf("%w: dependencies[%d] references an unknown card", domain.ErrValidation, i)
		}
		if d.BlockerID == d.BlockedID {
			return fmt.Errorf("dependencies[%d]: %w", i, domain.ErrSelfDependency)
		}
		if _, ok := edges[[2]int64{d.BlockedID, d.BlockerID}]; ok {
			return fmt.Errorf("dependencies[%d]: %w", i, domain.ErrReverseDependencyExists)
		}
		if _, ok := edges[[2]int64{d.BlockerID, d.BlockedID}]; ok {
			return fmt.Errorf("dependencies[%d]: %w", i, domain.ErrDependencyExists)
		}
		edges[[2]int64{d.BlockerID, d.BlockedID}] = struct{}{}
	}

	itemIDs := map[int64]struct{}{}
	convertedTo := map[int64]struct{}{}
	for i, item := range s.ChecklistItems {
		if item.ID <= 0 {
			return fmt.Errorf("%w: checklist_items[%d].id is required", domain.ErrValidation, i)
		}
		if strings.TrimSpace(item.Title) == "" {
			return fmt.Errorf("%w: checklist_items[%d].title is required", domain.ErrValidation, i)
		}
		if !hasID(cardIDs, item.CardID) {
			return fmt.Errorf("%w: checklist_items[%d] references unknown card_id %d", domain.ErrValidation, i, item.CardID)
		}
		if item.ConvertedCardID != nil {
			if !hasID(cardIDs, *item.ConvertedCardID) {
				return fmt.Errorf("%w: checklist_items[%d] references unknown converted_card_id %d", domain.ErrValidation, i, *item.ConvertedCardID)
			}
			if hasID(convertedTo, *item.ConvertedCardID) {
				return fmt.Errorf("%w: card %d is the converted card of more than one checklist item", domain.ErrValidation, *item.ConvertedCardID)
			}
			convertedTo[*item.ConvertedCardID] = struct{}{}
		}
		if hasID(itemIDs, item.ID) {
			return fmt.Errorf("%w: duplicate checklist item id: %d", domain.ErrValidation, item.ID)
		}
		itemIDs[item.ID] = struct{}{}
	}

	for i, a := range s.Activities {
		if !hasID(cardIDs, a.CardID) {
			return fmt.Errorf("%w: activities[%d] references unknown card_id %d", domain.ErrValidation, i, a.CardID)
		}
		et, err := domain.ParseEventType(string(a.Type))
		if err != nil {
			return fmt.Errorf("activities[%d]: %w", i, err)
		}
		s.Activities[i].Type = et
	}
	return nil
}

func (s *Snapshot) sort() {
	sort.Slice(s.Boards, func(i, j int) bool {
		return s.Boards[i].ID < s.Boards[j].ID
	})
	sort.Slice(s.Categories, func(i, j int) bool {
		a := s.Categories[i]
		b := s.Categories[j]
		if a.BoardID == b.BoardID {
			if a.Position == b.Position {
				return a.ID < b.ID
			}
			return a.Position < b.Position
		}
		return a.BoardID < b.BoardID
	})
	sort.Slice(s.Versions, func(i, j int) bool {
		return s.Versions[i].ID < s.Versions[j].ID
	})
	sort.Slice(s.Cards, func(i, j int) bool {
		return s.Cards[i].ID < s.Cards[j].ID
	})
	sort.Slice(s.Dependencies, func(i, j int) bool {
		a := s.Dependencies[i]
		b := s.Dependencies[j]
		if a.BlockerID == b.BlockerID {
			return a.BlockedID < b.BlockedID
		}
		return a.BlockerID < b.BlockerID
	})
	sort.Slice(s.ChecklistItems, func(i, j int) bool {
		a := s.ChecklistItems[i]
		b := s.ChecklistItems[j]
		if a.CardID == b.CardID {
			if a.Position == b.Position {
				return a.ID < b.ID
			}
			return a.Position < b.Position
		}
		return a.CardID < b.CardID
	})
	sort.SliceStable(s.Activities, func(i, j int) bool {
		a := s.Activities[i]
		b := s.Activities[j]
		if a.CardID == b.CardID {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.CardID < b.CardID
	})
}

func hasID[K comparable](set map[K]struct{}, id K) bool {
	_, ok := set[id]
	return ok
}

func snapshotBoardFromDomain(b domain.Board) SnapshotBoard {
	return SnapshotBoard{
		ID:        b.ID,
		Name:      b.Name,
		CreatedAt: b.CreatedAt.UTC(),
		UpdatedAt: b.UpdatedAt.UTC(),
	}
}

func snapshotCategoryFromDomain(c domain.Category) SnapshotCategory {
	return SnapshotCategory{
		ID:        c.ID,
		BoardID:   c.BoardID,
		Name:      c.Name,
		Color:     c.Color,
		Position:  c.Position,
		Kind:      c.Kind,
		CreatedAt: c.CreatedAt.UTC(),
	}
}

func snapshotVersionFromDomain(v domain.Version) SnapshotVersion {
	return SnapshotVersion{
		ID:         v.ID,
		BoardID:    v.BoardID,
		Name:       v.Name,
		ReleasedAt: v.ReleasedAt.UTC(),
	}
}

func snapshotCardFromDomain(c domain.Card) SnapshotCard {
	return SnapshotCard{
		ID:          c.ID,
		CategoryID:  c.CategoryID,
		Name:        c.Name,
		Description: c.Description,
		IsCompleted: c.IsCompleted,
		Progress:    c.Progress,
		Priority:    c.Priority,
		Status:      c.Status,
		Release:     c.Release,
		VersionID:   copyIDPtr(c.VersionID),
		SerialNo:    c.SerialNo,
		DueAt:       copyTimePtr(c.DueAt),
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

func snapshotChecklistItemFromDomain(item domain.ChecklistItem) SnapshotChecklistItem {
	return SnapshotChecklistItem{
		ID:              item.ID,
		CardID:          item.CardID,
		Title:           item.Title,
		IsComplete:      item.IsComplete,
		ConvertedCardID: copyIDPtr(item.ConvertedCardID),
		DueAt:           copyTimePtr(item.DueAt),
		Position:        item.Position,
		CreatedAt:       item.CreatedAt.UTC(),
		UpdatedAt:       item.UpdatedAt.UTC(),
	}
}

func snapshotActivityFromDomain(a domain.Activity) SnapshotActivity {
	return SnapshotActivity{
		ID:        a.ID,
		CardID:    a.CardID,
		Type:      a.Type,
		Details:   a.Details,
		Actor:     a.Actor,
		CreatedAt: a.CreatedAt.UTC(),
	}
}

func (b SnapshotBoard) toDomain() domain.Board {
	updatedAt := b.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = b.CreatedAt.UTC()
	}
	return domain.Board{
		Name:      strings.TrimSpace(b.Name),
		CreatedAt: b.CreatedAt.UTC(),
		UpdatedAt: updatedAt,
	}
}

func (c SnapshotCategory) toDomain() domain.Category {
	return domain.Category{
		Name:      strings.TrimSpace(c.Name),
		Color:     c.Color,
		Position:  c.Position,
		Kind:      c.Kind,
		CreatedAt: c.CreatedAt.UTC(),
	}
}

func (v SnapshotVersion) toDomain() domain.Version {
	return domain.Version{
		Name:       strings.TrimSpace(v.Name),
		ReleasedAt: v.ReleasedAt.UTC(),
	}
}

func (c SnapshotCard) toDomain() domain.Card {
	return domain.Card{
		Name:        strings.TrimSpace(c.Name),
		Description: c.Description,
		IsCompleted: c.IsCompleted,
		Progress:    c.Progress,
		Priority:    c.Priority,
		Status:      c.Status,
		Release:     c.Release,
		SerialNo:    strings.TrimSpace(c.SerialNo),
		DueAt:       copyTimePtr(c.DueAt),
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
}

func (item SnapshotChecklistItem) toDomain() domain.ChecklistItem {
	return domain.ChecklistItem{
		Title:      strings.TrimSpace(item.Title),
		IsComplete: item.IsComplete,
		DueAt:      copyTimePtr(item.DueAt),
		Position:   item.Position,
		CreatedAt:  item.CreatedAt.UTC(),
		UpdatedAt:  item.UpdatedAt.UTC(),
	}
}

func (a SnapshotActivity) toDomain() domain.Activity {
	return domain.Activity{
		Type:      a.Type,
		Details:   a.Details,
		Actor:     a.Actor,
		CreatedAt: a.CreatedAt.UTC(),
	}
}

func copyTimePtr(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	out := in.UTC()
	return &out
}

func copyIDPtr(in *int64) *int64 {
	if in == nil {
		return nil
	}
	out := *in
	return &out
}
