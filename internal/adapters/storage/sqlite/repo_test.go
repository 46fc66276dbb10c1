package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/hylla/cardflow/internal/app"
	"github.com/hylla/cardflow/internal/domain"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func seedBoard(t *testing.T, repo *Repository, now time.Time) (domain.Board, domain.Category) {
	t.Helper()
	ctx := context.Background()
	board, err := domain.NewBoard("Roadmap", now)
	if err != nil {
		t.Fatalf("NewBoard() error = %v", err)
	}
	board, err = repo.CreateBoard(ctx, board)
	if err != nil {
		t.Fatalf("CreateBoard() error = %v", err)
	}
	category, err := domain.NewCategory(domain.CategoryInput{BoardID: board.ID, Name: domain.CategoryTodo, Position: 1}, now)
	if err != nil {
		t.Fatalf("NewCategory() error = %v", err)
	}
	category, err = repo.CreateCategory(ctx, category)
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	return board, category
}

func TestRepository_CardChecklistDependencyLifecycle(t *testing.T) {
	ctx := context.Background()
	repo, err := Open(filepath.Join(t.TempDir(), "cardflow.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	board, category := seedBoard(t, repo, now)
	if category.Kind != domain.CategoryKindBuiltin {
		t.Fatalf("expected builtin kind, got %q", category.Kind)
	}

	due := now.Add(24 * time.Hour)
	a, err := domain.NewCard(domain.CardInput{CategoryID: category.ID, Name: "A", Priority: domain.PriorityHigh, DueAt: &due, SerialNo: "SR-1"}, category, now)
	if err != nil {
		t.Fatalf("NewCard() error = %v", err)
	}
	a, err = repo.CreateCard(ctx, a)
	if err != nil {
		t.Fatalf("CreateCard() error = %v", err)
	}
	b, err := domain.NewCard(domain.CardInput{CategoryID: category.ID, Name: "B"}, category, now)
	if err != nil {
		t.Fatalf("NewCard() error = %v", err)
	}
	b, err = repo.CreateCard(ctx, b)
	if err != nil {
		t.Fatalf("CreateCard() error = %v", err)
	}

	loaded, err := repo.GetCard(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetCard() error = %v", err)
	}
	if loaded.Name != "A" || loaded.Priority != domain.PriorityHigh || loaded.Progress != 10 || loaded.SerialNo != "SR-1" {
		t.Fatalf("unexpected loaded card %#v", loaded)
	}
	if loaded.DueAt == nil || !loaded.DueAt.Equal(due) {
		t.Fatalf("unexpected due date %v", loaded.DueAt)
	}

	dep, err := domain.NewDependency(a.ID, b.ID, now)
	if err != nil {
		t.Fatalf("NewDependency() error = %v", err)
	}
	if err := repo.CreateDependency(ctx, dep); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}
	if err := repo.CreateDependency(ctx, dep); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected duplicate edge to be rejected, got %v", err)
	}
	blockers, err := repo.ListBlockers(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListBlockers() error = %v", err)
	}
	if len(blockers) != 1 || blockers[0].ID != a.ID {
		t.Fatalf("unexpected blockers %#v", blockers)
	}
	blocked, err := repo.ListBlocked(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListBlocked() error = %v", err)
	}
	if len(blocked) != 1 || blocked[0].ID != b.ID {
		t.Fatalf("unexpected blocked cards %#v", blocked)
	}
	edges, err := repo.ListBoardDependencies(ctx, board.ID)
	if err != nil {
		t.Fatalf("ListBoardDependencies() error = %v", err)
	}
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %#v", edges)
	}

	item, err := domain.NewChecklistItem(domain.ChecklistItemInput{CardID: b.ID, Title: "step"}, now)
	if err != nil {
		t.Fatalf("NewChecklistItem() error = %v", err)
	}
	item, err = repo.CreateChecklistItem(ctx, item)
	if err != nil {
		t.Fatalf("CreateChecklistItem() error = %v", err)
	}
	if err := item.ConvertTo(a.ID, now); err != nil {
		t.Fatalf("ConvertTo() error = %v", err)
	}
	if err := repo.UpdateChecklistItem(ctx, item); err != nil {
		t.Fatalf("UpdateChecklistItem() error = %v", err)
	}
	parent, err := repo.FindChecklistItemByConvertedCard(ctx, a.ID)
	if err != nil {
		t.Fatalf("FindChecklistItemByConvertedCard() error = %v", err)
	}
	if parent.ID != item.ID || parent.ConvertedCardID == nil || *parent.ConvertedCardID != a.ID {
		t.Fatalf("unexpected parent item %#v", parent)
	}

	removed, err := repo.DeleteDependency(ctx, a.ID, b.ID)
	if err != nil || removed != 1 {
		t.Fatalf("DeleteDependency() = %d, %v", removed, err)
	}
	removed, err = repo.DeleteDependency(ctx, a.ID, b.ID)
	if err != nil || removed != 0 {
		t.Fatalf("DeleteDependency(again) = %d, %v", removed, err)
	}

	if err := repo.DeleteCard(ctx, a.ID); err != nil {
		t.Fatalf("DeleteCard() error = %v", err)
	}
	item, err = repo.GetChecklistItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetChecklistItem() error = %v", err)
	}
	if item.ConvertedCardID != nil {
		t.Fatalf("expected converted link cleared by the schema, got %v", *item.ConvertedCardID)
	}
}

func TestRepository_NotFoundCases(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	if _, err := repo.GetBoard(ctx, 42); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected app.ErrNotFound for board, got %v", err)
	}
	if _, err := repo.GetCard(ctx, 42); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected app.ErrNotFound for card, got %v", err)
	}
	if _, err := repo.GetChecklistItem(ctx, 42); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected app.ErrNotFound for item, got %v", err)
	}
	if _, err := repo.FindChecklistItemByConvertedCard(ctx, 42); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected app.ErrNotFound for converted lookup, got %v", err)
	}
	if err := repo.UpdateCard(ctx, domain.Card{ID: 42}); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected app.ErrNotFound for update, got %v", err)
	}
	if err := repo.DeleteCategory(ctx, 42); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("expected app.ErrNotFound for delete, got %v", err)
	}
}

func TestRepository_WithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	boom := errors.New("boom")
	err := repo.WithinTx(ctx, func(tx app.Repository) error {
		board, err := domain.NewBoard("Temp", now)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBoard(ctx, board); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	boards, err := repo.ListBoards(ctx)
	if err != nil {
		t.Fatalf("ListBoards() error = %v", err)
	}
	if len(boards) != 0 {
		t.Fatalf("expected rollback to discard the board, got %#v", boards)
	}
}

func TestRepository_RejectsUnknownCategoryKind(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	board, _ := seedBoard(t, repo, now)

	if _, err := repo.db.ExecContext(ctx, `
		INSERT INTO categories(board_id, name, color, position, kind, created_at) VALUES (?, 'Weird', '', 9, 'legacy', ?)
	`, board.ID, ts(now)); err != nil {
		t.Fatalf("insert raw category error = %v", err)
	}
	if _, err := repo.ListCategories(ctx, board.ID); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown kind, got %v", err)
	}
}

func TestRepository_PreferencesMembersNotifications(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	board, _ := seedBoard(t, repo, now)

	prefs, err := repo.NotificationPreferences(ctx, "nobody@example.com")
	if err != nil {
		t.Fatalf("NotificationPreferences() error = %v", err)
	}
	if len(prefs) != 0 {
		t.Fatalf("expected empty preferences, got %#v", prefs)
	}
	if err := repo.SetNotificationPreferences(ctx, "Jane@Example.com", map[string]bool{domain.PreferenceCardEvents: false}); err != nil {
		t.Fatalf("SetNotificationPreferences() error = %v", err)
	}
	prefs, err = repo.NotificationPreferences(ctx, "jane@example.com")
	if err != nil {
		t.Fatalf("NotificationPreferences() error = %v", err)
	}
	if enabled, ok := prefs[domain.PreferenceCardEvents]; !ok || enabled {
		t.Fatalf("unexpected preferences %#v", prefs)
	}

	for _, email := range []string{"jane@example.com", "bob@example.com"} {
		if err := repo.UpsertBoardMember(ctx, domain.BoardMember{BoardID: board.ID, Email: email}); err != nil {
			t.Fatalf("UpsertBoardMember() error = %v", err)
		}
	}
	if err := repo.UpsertBoardMember(ctx, domain.BoardMember{BoardID: board.ID, Email: "bob@example.com", Name: "Bob"}); err != nil {
		t.Fatalf("UpsertBoardMember(update) error = %v", err)
	}
	members, err := repo.ListBoardMembers(ctx, board.ID)
	if err != nil {
		t.Fatalf("ListBoardMembers() error = %v", err)
	}
	if len(members) != 2 || members[0].Email != "bob@example.com" || members[0].Name != "Bob" {
		t.Fatalf("unexpected members %#v", members)
	}

	for _, msg := range []string{"first", "second"} {
		if _, err := repo.SaveNotification(ctx, domain.Notification{
			Email:     "bob@example.com",
			CardID:    1,
			Type:      domain.EventCardCreated,
			Message:   msg,
			CreatedAt: now,
		}); err != nil {
			t.Fatalf("SaveNotification() error = %v", err)
		}
	}
	notes, err := repo.ListNotifications(ctx, "bob@example.com", 1)
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(notes) != 1 || notes[0].Message != "second" || notes[0].Type != domain.EventCardCreated {
		t.Fatalf("unexpected notifications %#v", notes)
	}
}

func TestRepository_ServiceRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	seq := 0
	svc := app.NewService(repo, func() string {
		seq++
		return "act-" + strconv.Itoa(seq)
	}, func() time.Time { return now }, app.ServiceConfig{ImportParallelism: 1})

	board, categories, err := svc.CreateBoard(ctx, "Roadmap")
	if err != nil {
		t.Fatalf("CreateBoard() error = %v", err)
	}
	byName := map[string]domain.Category{}
	for _, c := range categories {
		byName[c.Name] = c
	}
	parent, err := svc.CreateCard(ctx, app.CreateCardInput{CategoryID: byName[domain.CategoryBacklog].ID, Name: "X", Actor: "jane"})
	if err != nil {
		t.Fatalf("CreateCard() error = %v", err)
	}
	item, err := svc.AddChecklistItem(ctx, parent.ID, "sub", nil, "jane")
	if err != nil {
		t.Fatalf("AddChecklistItem() error = %v", err)
	}
	converted, err := svc.ConvertChecklistItem(ctx, item.ID, byName[domain.CategoryTodo].ID, parent.ID, "jane")
	if err != nil {
		t.Fatalf("ConvertChecklistItem() error = %v", err)
	}

	if _, err := svc.MoveToCategory(ctx, parent.ID, byName[domain.CategoryDone].ID, "jane"); !errors.Is(err, domain.ErrOpenBlockers) {
		t.Fatalf("expected ErrOpenBlockers, got %v", err)
	}
	if _, err := svc.ToggleChecklistItem(ctx, item.ID, "jane"); err != nil {
		t.Fatalf("ToggleChecklistItem() error = %v", err)
	}
	moved, err := svc.MoveToCategory(ctx, parent.ID, byName[domain.CategoryDone].ID, "jane")
	if err != nil {
		t.Fatalf("MoveToCategory() error = %v", err)
	}
	if moved.Progress != 80 || !moved.IsCompleted {
		t.Fatalf("unexpected moved card %#v", moved)
	}

	result, err := svc.ImportSheet(ctx, board.ID, [][]string{
		{"Sr Number", "Issue", "Card Name", "Priority", "Category", "Due Date"},
		{"SR-1", "", "Imported", "low", "Todo", ""},
		{"SR-2", "", "", "low", "Todo", ""},
	}, "jane")
	if err != nil {
		t.Fatalf("ImportSheet() error = %v", err)
	}
	if result.CreatedCount != 1 || len(result.Errors) != 1 {
		t.Fatalf("unexpected import result %#v", result)
	}

	removed, err := svc.DeleteCard(ctx, parent.ID, "jane")
	if err != nil {
		t.Fatalf("DeleteCard() error = %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected parent and converted card removed, got %d", removed)
	}
	if _, err := svc.GetCard(ctx, converted.NewCardID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected converted card deleted, got %v", err)
	}

	if _, err := svc.DeleteBoard(ctx, board.ID, "jane"); err != nil {
		t.Fatalf("DeleteBoard() error = %v", err)
	}
	boards, err := svc.ListBoards(ctx)
	if err != nil {
		t.Fatalf("ListBoards() error = %v", err)
	}
	if len(boards) != 0 {
		t.Fatalf("expected no boards, got %#v", boards)
	}
}
