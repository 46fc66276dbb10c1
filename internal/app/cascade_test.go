package app

import (
	"context"
	"errors"
	"testing"

	"github.com/hylla/cardflow/internal/domain"
)

// chain builds Root -> Child -> Grandchild through converted checklist items.
func (e *testEnv) chain(t *testing.T) (root, child, grandchild domain.Card) {
	t.Helper()
	root = e.card(t, domain.CategoryTodo, "Root")
	child = e.convert(t, root, "Child").child
	grandchild = e.convert(t, child, "Grandchild").child
	return root, child, grandchild
}

func TestDeleteCardCascadesThroughConvertedCards(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root, child, grandchild := env.chain(t)
	other := env.card(t, domain.CategoryTodo, "Other")
	if _, err := env.svc.AddDependency(ctx, root.ID, other.ID, "jane"); err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}

	var deleted []int64
	env.svc.Subscribe(ActivityListenerFunc(func(_ context.Context, ev ActivityEvent) {
		if ev.Activity.Type == domain.EventCardDeleted {
			deleted = append(deleted, ev.Activity.CardID)
		}
	}))

	removed, err := env.svc.DeleteCard(ctx, root.ID, "jane")
	if err != nil {
		t.Fatalf("DeleteCard() error = %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 cards removed, got %d", removed)
	}
	for _, id := range []int64{root.ID, child.ID, grandchild.ID} {
		if _, err := env.svc.GetCard(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected card %d deleted, got %v", id, err)
		}
		if got := env.repo.activityTypes(id); len(got) != 0 {
			t.Fatalf("expected activities of card %d deleted, got %v", id, got)
		}
	}
	if len(env.repo.deps) != 0 || len(env.repo.items) != 0 {
		t.Fatalf("expected no dangling rows, deps %d items %d", len(env.repo.deps), len(env.repo.items))
	}
	if _, err := env.svc.GetCard(ctx, other.ID); err != nil {
		t.Fatalf("expected unrelated card to survive, got %v", err)
	}
	if len(deleted) != 1 || deleted[0] != root.ID {
		t.Fatalf("unexpected deletion events %v", deleted)
	}
}

func TestDeleteCardRollsBackOnFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root, child, grandchild := env.chain(t)
	env.repo.failDeleteCard[child.ID] = errInjected

	if _, err := env.svc.DeleteCard(ctx, root.ID, "jane"); !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	for _, id := range []int64{root.ID, child.ID, grandchild.ID} {
		if _, err := env.svc.GetCard(ctx, id); err != nil {
			t.Fatalf("expected card %d restored, got %v", id, err)
		}
	}
	items, err := env.svc.ListChecklistItems(ctx, child.ID)
	if err != nil {
		t.Fatalf("ListChecklistItems() error = %v", err)
	}
	if len(items) != 1 || items[0].ConvertedCardID == nil || *items[0].ConvertedCardID != grandchild.ID {
		t.Fatalf("expected conversion link restored, got %#v", items)
	}
}

func TestDeleteConvertedCardUnlinksItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root, child, grandchild := env.chain(t)

	removed, err := env.svc.DeleteCard(ctx, child.ID, "jane")
	if err != nil {
		t.Fatalf("DeleteCard() error = %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 cards removed, got %d", removed)
	}
	if _, err := env.svc.GetCard(ctx, grandchild.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected grandchild deleted, got %v", err)
	}
	items, err := env.svc.ListChecklistItems(ctx, root.ID)
	if err != nil {
		t.Fatalf("ListChecklistItems() error = %v", err)
	}
	if len(items) != 1 || items[0].IsConverted() {
		t.Fatalf("expected the originating item to be unlinked, got %#v", items)
	}
}

func TestDeleteCardDetectsCycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root, _, grandchild := env.chain(t)
	loop, err := env.svc.AddChecklistItem(ctx, grandchild.ID, "loop", nil, "jane")
	if err != nil {
		t.Fatalf("AddChecklistItem() error = %v", err)
	}
	loop.ConvertedCardID = &root.ID
	env.repo.items[loop.ID] = loop

	_, err = env.svc.DeleteCard(ctx, root.ID, "jane")
	if !errors.Is(err, ErrCascadeCycle) {
		t.Fatalf("expected ErrCascadeCycle, got %v", err)
	}
	if domain.KindOf(err) != domain.KindInvariantViolation {
		t.Fatalf("expected invariant kind, got %s", domain.KindOf(err))
	}
}

func TestDeleteCardDepthLimit(t *testing.T) {
	env := newTestEnv(t)
	root, _, _ := env.chain(t)
	shallow := NewService(env.repo, nil, nil, ServiceConfig{MaxCascadeDepth: 1})

	if _, err := shallow.DeleteCard(context.Background(), root.ID, "jane"); !errors.Is(err, ErrCascadeTooDeep) {
		t.Fatalf("expected ErrCascadeTooDeep, got %v", err)
	}
	if _, err := shallow.GetCard(context.Background(), root.ID); err != nil {
		t.Fatalf("expected root to survive, got %v", err)
	}
}

func TestDeleteCategory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	if _, err := env.svc.DeleteCategory(ctx, env.categories[domain.CategoryTodo].ID, "jane"); !errors.Is(err, domain.ErrBuiltinCategoryLocked) {
		t.Fatalf("expected ErrBuiltinCategoryLocked, got %v", err)
	}

	qa, err := env.svc.CreateCategory(ctx, env.board.ID, "QA", "")
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	card, err := env.svc.CreateCard(ctx, CreateCardInput{CategoryID: qa.ID, Name: "Check"})
	if err != nil {
		t.Fatalf("CreateCard() error = %v", err)
	}
	pair := env.convert(t, card, "Sub check")

	removed, err := env.svc.DeleteCategory(ctx, qa.ID, "jane")
	if err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected card and its converted card removed, got %d", removed)
	}
	if _, err := env.svc.GetCard(ctx, pair.child.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected converted card deleted, got %v", err)
	}
	categories, err := env.svc.ListCategories(ctx, env.board.ID)
	if err != nil {
		t.Fatalf("ListCategories() error = %v", err)
	}
	if len(categories) != 5 {
		t.Fatalf("expected custom category removed, got %d categories", len(categories))
	}
}

func TestDeleteBoard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.chain(t)
	env.card(t, domain.CategoryDone, "Done card")

	removed, err := env.svc.DeleteBoard(ctx, env.board.ID, "jane")
	if err != nil {
		t.Fatalf("DeleteBoard() error = %v", err)
	}
	if removed != 4 {
		t.Fatalf("expected 4 cards removed, got %d", removed)
	}
	if _, err := env.svc.GetBoard(ctx, env.board.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected board deleted, got %v", err)
	}
	if len(env.repo.cards) != 0 || len(env.repo.categories) != 0 {
		t.Fatalf("expected empty store, cards %d categories %d", len(env.repo.cards), len(env.repo.categories))
	}
}
