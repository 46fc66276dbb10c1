package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hylla/cardflow/internal/domain"
)

// seedSnapshotBoard builds a board with a dependency, a converted checklist item and an archived release.
func seedSnapshotBoard(t *testing.T) (*testEnv, map[string]domain.Card) {
	t.Helper()
	env := newTestEnv(t)
	ctx := context.Background()
	cards := map[string]domain.Card{
		"api": env.card(t, domain.CategoryTodo, "API"),
		"ui":  env.card(t, domain.CategoryTodo, "UI"),
		"old": env.card(t, domain.CategoryTodo, "Old"),
	}
	if _, err := env.svc.AddDependency(ctx, cards["api"].ID, cards["ui"].ID, "jane"); err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}
	item, err := env.svc.AddChecklistItem(ctx, cards["ui"].ID, "Icons", nil, "jane")
	if err != nil {
		t.Fatalf("AddChecklistItem() error = %v", err)
	}
	converted, err := env.svc.ConvertChecklistItem(ctx, item.ID, env.categories[domain.CategoryBacklog].ID, cards["ui"].ID, "jane")
	if err != nil {
		t.Fatalf("ConvertChecklistItem() error = %v", err)
	}
	cards["icons"] = env.reload(t, converted.NewCardID)

	if _, err := env.svc.SetCompletion(ctx, cards["old"].ID, true, "jane"); err != nil {
		t.Fatalf("SetCompletion() error = %v", err)
	}
	if _, _, err := env.svc.ReleaseVersion(ctx, env.board.ID, "v1", []int64{cards["old"].ID}, "jane"); err != nil {
		t.Fatalf("ReleaseVersion() error = %v", err)
	}
	if _, err := env.svc.MoveToCategory(ctx, cards["old"].ID, env.categories[domain.CategoryRelease].ID, "jane"); err != nil {
		t.Fatalf("MoveToCategory(Release) error = %v", err)
	}
	return env, cards
}

func TestExportSnapshotIncludesExpectedData(t *testing.T) {
	env, cards := seedSnapshotBoard(t)
	ctx := context.Background()

	active, err := env.svc.ExportSnapshot(ctx, false)
	if err != nil {
		t.Fatalf("ExportSnapshot(active) error = %v", err)
	}
	if active.Version != SnapshotFormatVersion {
		t.Fatalf("unexpected version %q", active.Version)
	}
	if !active.ExportedAt.Equal(env.now) {
		t.Fatalf("expected exported_at %s, got %s", env.now, active.ExportedAt)
	}
	if len(active.Boards) != 1 || active.Boards[0].Name != "Roadmap" {
		t.Fatalf("unexpected boards %#v", active.Boards)
	}
	if len(active.Categories) != len(env.categories) {
		t.Fatalf("expected %d categories, got %d", len(env.categories), len(active.Categories))
	}
	if len(active.Cards) != 3 {
		t.Fatalf("expected archived card to be skipped, got %#v", active.Cards)
	}
	for _, c := range active.Cards {
		if c.ID == cards["old"].ID {
			t.Fatalf("archived card exported: %#v", c)
		}
	}
	for _, a := range active.Activities {
		if a.CardID == cards["old"].ID {
			t.Fatalf("archived card activity exported: %#v", a)
		}
	}
	if len(active.Dependencies) != 2 {
		t.Fatalf("expected 2 dependencies, got %#v", active.Dependencies)
	}
	if len(active.ChecklistItems) != 1 || active.ChecklistItems[0].ConvertedCardID == nil || *active.ChecklistItems[0].ConvertedCardID != cards["icons"].ID {
		t.Fatalf("unexpected checklist items %#v", active.ChecklistItems)
	}
	if len(active.Versions) != 1 || active.Versions[0].Name != "v1" {
		t.Fatalf("unexpected versions %#v", active.Versions)
	}

	all, err := env.svc.ExportSnapshot(ctx, true)
	if err != nil {
		t.Fatalf("ExportSnapshot(all) error = %v", err)
	}
	if len(all.Cards) != 4 {
		t.Fatalf("expected 4 cards with archived, got %d", len(all.Cards))
	}
	if len(all.Activities) <= len(active.Activities) {
		t.Fatalf("expected archived activities to be included, got %d <= %d", len(all.Activities), len(active.Activities))
	}
	for i := 1; i < len(all.Cards); i++ {
		if all.Cards[i-1].ID >= all.Cards[i].ID {
			t.Fatalf("expected cards sorted by id, got %#v", all.Cards)
		}
	}
}

func TestImportSnapshotRemapsIDs(t *testing.T) {
	source, _ := seedSnapshotBoard(t)
	ctx := context.Background()
	snap, err := source.svc.ExportSnapshot(ctx, true)
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}

	target := newTestEnv(t)
	var published int
	target.svc.Subscribe(ActivityListenerFunc(func(context.Context, ActivityEvent) { published++ }))

	summary, err := target.svc.ImportSnapshot(ctx, snap)
	if err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	want := SnapshotImportSummary{
		Boards:         1,
		Categories:     len(snap.Categories),
		Versions:       1,
		Cards:          4,
		Dependencies:   2,
		ChecklistItems: 1,
		Activities:     len(snap.Activities),
	}
	if summary != want {
		t.Fatalf("unexpected summary %#v, want %#v", summary, want)
	}
	if published != 0 {
		t.Fatalf("expected import to publish no activities, got %d", published)
	}

	boards, err := target.repo.ListBoards(ctx)
	if err != nil {
		t.Fatalf("ListBoards() error = %v", err)
	}
	if len(boards) != 2 {
		t.Fatalf("expected the imported board next to the existing one, got %#v", boards)
	}
	imported := boards[1]
	if imported.ID == snap.Boards[0].ID {
		t.Fatalf("expected a fresh board id, got %d", imported.ID)
	}

	byName := map[string]domain.Card{}
	importedCards, err := target.repo.ListCardsByBoard(ctx, imported.ID)
	if err != nil {
		t.Fatalf("ListCardsByBoard() error = %v", err)
	}
	for _, c := range importedCards {
		byName[c.Name] = c
	}
	if len(byName) != 4 {
		t.Fatalf("unexpected imported cards %#v", importedCards)
	}

	deps, err := target.svc.GetDependencies(ctx, byName["UI"].ID)
	if err != nil {
		t.Fatalf("GetDependencies() error = %v", err)
	}
	if len(deps.Blockers) != 2 {
		t.Fatalf("expected 2 remapped blockers, got %#v", deps.Blockers)
	}
	items, err := target.svc.ListChecklistItems(ctx, byName["UI"].ID)
	if err != nil {
		t.Fatalf("ListChecklistItems() error = %v", err)
	}
	if len(items) != 1 || items[0].ConvertedCardID == nil || *items[0].ConvertedCardID != byName["Icons"].ID {
		t.Fatalf("unexpected imported checklist %#v", items)
	}

	old := byName["Old"]
	if !old.IsArchived() || old.Release != domain.ReleaseReleased || old.VersionID == nil {
		t.Fatalf("unexpected imported release state %#v", old)
	}
	versions, err := target.svc.ListVersions(ctx, imported.ID)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(versions) != 1 || versions[0].ID != *old.VersionID {
		t.Fatalf("expected version reference to be remapped, got %#v / %d", versions, *old.VersionID)
	}
}

func TestImportSnapshotRejectsBrokenReferences(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	base := func() Snapshot {
		return Snapshot{
			Version: SnapshotFormatVersion,
			Boards:  []SnapshotBoard{{ID: 1, Name: "Ops", CreatedAt: now, UpdatedAt: now}},
			Categories: []SnapshotCategory{
				{ID: 10, BoardID: 1, Name: "Todo", Kind: domain.CategoryKindBuiltin, CreatedAt: now},
			},
			Cards: []SnapshotCard{
				{ID: 100, CategoryID: 10, Name: "A", CreatedAt: now, UpdatedAt: now},
				{ID: 101, CategoryID: 10, Name: "B", CreatedAt: now, UpdatedAt: now},
			},
		}
	}
	vid := int64(7)

	tests := []struct {
		name   string
		mutate func(*Snapshot)
		want   error
	}{
		{name: "version", mutate: func(s *Snapshot) { s.Version = "kanban.v0" }, want: domain.ErrValidation},
		{name: "duplicate board", mutate: func(s *Snapshot) { s.Boards = append(s.Boards, s.Boards[0]) }, want: domain.ErrValidation},
		{name: "unknown category", mutate: func(s *Snapshot) { s.Cards[0].CategoryID = 99 }, want: domain.ErrValidation},
		{name: "unknown version", mutate: func(s *Snapshot) { s.Cards[0].VersionID = &vid }, want: domain.ErrValidation},
		{name: "bad priority", mutate: func(s *Snapshot) { s.Cards[0].Priority = "urgent" }, want: domain.ErrInvalidPriority},
		{name: "self dependency", mutate: func(s *Snapshot) {
			s.Dependencies = []SnapshotDependency{{BlockerID: 100, BlockedID: 100}}
		}, want: domain.ErrSelfDependency},
		{name: "reverse dependency", mutate: func(s *Snapshot) {
			s.Dependencies = []SnapshotDependency{{BlockerID: 100, BlockedID: 101}, {BlockerID: 101, BlockedID: 100}}
		}, want: domain.ErrReverseDependencyExists},
		{name: "event type", mutate: func(s *Snapshot) {
			s.Activities = []SnapshotActivity{{ID: "a1", CardID: 100, Type: "CARD_EXPLODED", CreatedAt: now}}
		}, want: domain.ErrInvalidEventType},
		{name: "double conversion", mutate: func(s *Snapshot) {
			target := int64(101)
			s.ChecklistItems = []SnapshotChecklistItem{
				{ID: 1, CardID: 100, Title: "x", ConvertedCardID: &target},
				{ID: 2, CardID: 100, Title: "y", ConvertedCardID: &target},
			}
		}, want: domain.ErrValidation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := newFakeRepo()
			svc := NewService(repo, nil, func() time.Time { return now }, ServiceConfig{})
			snap := base()
			tc.mutate(&snap)
			if _, err := svc.ImportSnapshot(context.Background(), snap); !errors.Is(err, tc.want) {
				t.Fatalf("ImportSnapshot() error = %v, want %v", err, tc.want)
			}
			if boards, _ := repo.ListBoards(context.Background()); len(boards) != 0 {
				t.Fatalf("expected nothing imported, got %#v", boards)
			}
		})
	}
}

func TestImportSnapshotDefaultsMissingCardFields(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	repo := newFakeRepo()
	svc := NewService(repo, nil, func() time.Time { return now }, ServiceConfig{})
	snap := Snapshot{
		Boards:     []SnapshotBoard{{ID: 1, Name: "Ops", CreatedAt: now}},
		Categories: []SnapshotCategory{{ID: 2, BoardID: 1, Name: "Todo", Kind: domain.CategoryKindBuiltin, CreatedAt: now}},
		Cards:      []SnapshotCard{{ID: 3, CategoryID: 2, Name: "Bare", Priority: "HIGH", CreatedAt: now, UpdatedAt: now}},
	}
	if _, err := svc.ImportSnapshot(context.Background(), snap); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	boards, _ := repo.ListBoards(context.Background())
	if len(boards) != 1 || !boards[0].UpdatedAt.Equal(now) {
		t.Fatalf("unexpected boards %#v", boards)
	}
	cards, err := repo.ListCardsByBoard(context.Background(), boards[0].ID)
	if err != nil || len(cards) != 1 {
		t.Fatalf("ListCardsByBoard() = %#v, %v", cards, err)
	}
	got := cards[0]
	if got.Priority != domain.PriorityHigh || got.Status != domain.CardStatusActive || got.Release != domain.ReleaseUnreleased {
		t.Fatalf("expected defaults to be filled, got %#v", got)
	}
}
