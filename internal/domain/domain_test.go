package domain

import (
	"errors"
	"testing"
	"time"
)

func testCategory(t *testing.T, id int64, name string) Category {
	t.Helper()
	c, err := NewCategory(CategoryInput{BoardID: 1, Name: name}, time.Now())
	if err != nil {
		t.Fatalf("NewCategory(%q) error = %v", name, err)
	}
	c.ID = id
	return c
}

func TestProgressForIsTotal(t *testing.T) {
	cases := map[string]int{
		"Backlog":        0,
		"Todo":           10,
		"In Progress":    50,
		"Done":           80,
		"Release":        100,
		"CustomCategory": 0,
		"":               0,
		"done":           0,
	}
	for name, want := range cases {
		if got := ProgressFor(name); got != want {
			t.Fatalf("ProgressFor(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestNewCategoryDerivesKind(t *testing.T) {
	now := time.Now()
	done, err := NewCategory(CategoryInput{BoardID: 1, Name: " Done "}, now)
	if err != nil {
		t.Fatalf("NewCategory() error = %v", err)
	}
	if done.Kind != CategoryKindBuiltin || !done.IsDone() || !done.IsTerminal() {
		t.Fatalf("unexpected done category %#v", done)
	}
	custom, err := NewCategory(CategoryInput{BoardID: 1, Name: "QA"}, now)
	if err != nil {
		t.Fatalf("NewCategory() error = %v", err)
	}
	if custom.Kind != CategoryKindCustom || custom.IsTerminal() || custom.Progress() != 0 {
		t.Fatalf("unexpected custom category %#v", custom)
	}
	if _, err := NewCategory(CategoryInput{BoardID: 1, Name: "dOnE"}, now); !errors.Is(err, ErrReservedCategory) {
		t.Fatalf("expected ErrReservedCategory, got %v", err)
	}
	if _, err := NewCategory(CategoryInput{BoardID: 1, Name: "  "}, now); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestParseCategoryKindRejectsMismatch(t *testing.T) {
	if _, err := ParseCategoryKind("builtin", "QA"); !errors.Is(err, ErrInvalidCategoryKind) {
		t.Fatalf("expected ErrInvalidCategoryKind, got %v", err)
	}
	if _, err := ParseCategoryKind("custom", "Done"); !errors.Is(err, ErrInvalidCategoryKind) {
		t.Fatalf("expected ErrInvalidCategoryKind, got %v", err)
	}
	kind, err := ParseCategoryKind("builtin", "Release")
	if err != nil || kind != CategoryKindBuiltin {
		t.Fatalf("ParseCategoryKind() = %q, %v", kind, err)
	}
}

func TestCardMoveToRecomputesProgress(t *testing.T) {
	now := time.Now()
	backlog := testCategory(t, 1, CategoryBacklog)
	done := testCategory(t, 4, CategoryDone)
	release := testCategory(t, 5, CategoryRelease)
	card, err := NewCard(CardInput{CategoryID: 1, Name: "Ship it"}, backlog, now)
	if err != nil {
		t.Fatalf("NewCard() error = %v", err)
	}
	if card.Priority != PriorityMedium || card.Status != CardStatusActive || card.Release != ReleaseUnreleased {
		t.Fatalf("unexpected defaults %#v", card)
	}

	card.MoveTo(done, now)
	if !card.IsCompleted || card.Progress != 80 {
		t.Fatalf("expected completed at 80 in Done, got %#v", card)
	}
	card.MoveTo(release, now)
	if card.IsCompleted || card.Progress != 100 || !card.IsArchived() {
		t.Fatalf("expected archived, not completed, card at 100 in Release, got %#v", card)
	}
	card.MoveTo(backlog, now)
	if card.IsCompleted || card.Progress != 0 {
		t.Fatalf("expected reopened card in Backlog, got %#v", card)
	}
}

func TestCardCompleteAndRelease(t *testing.T) {
	now := time.Now()
	todo := testCategory(t, 2, CategoryTodo)
	done := testCategory(t, 4, CategoryDone)
	card, err := NewCard(CardInput{CategoryID: 2, Name: "x", Priority: PriorityHigh}, todo, now)
	if err != nil {
		t.Fatalf("NewCard() error = %v", err)
	}
	if card.Progress != 10 {
		t.Fatalf("expected Todo progress 10, got %d", card.Progress)
	}
	if err := card.MarkReleased(9, now); !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
	card.Complete(done, now)
	if card.Progress != 100 || card.CategoryID != done.ID {
		t.Fatalf("unexpected completed card %#v", card)
	}
	if err := card.MarkReleased(9, now); err != nil {
		t.Fatalf("MarkReleased() error = %v", err)
	}
	if card.Release != ReleaseReleased || card.VersionID == nil || *card.VersionID != 9 {
		t.Fatalf("unexpected released card %#v", card)
	}
	card.Reopen(now)
	if card.IsCompleted || card.Progress != 0 {
		t.Fatalf("unexpected reopened card %#v", card)
	}
}

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority(" HIGHEST ")
	if err != nil || p != PriorityHighest {
		t.Fatalf("ParsePriority() = %q, %v", p, err)
	}
	if _, err := ParsePriority("urgent"); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("expected ErrInvalidPriority, got %v", err)
	}
}

func TestNewDependencyRejectsSelfLoop(t *testing.T) {
	if _, err := NewDependency(3, 3, time.Now()); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if KindOf(ErrSelfDependency) != KindValidation {
		t.Fatalf("unexpected kind %q", KindOf(ErrSelfDependency))
	}
}

func TestClassifyDependencies(t *testing.T) {
	cards := []Card{{ID: 1}, {ID: 2}, {ID: 3}}
	flags := ClassifyDependencies(cards, []Dependency{{BlockerID: 1, BlockedID: 2}})
	if !flags[0].IsBlocker || flags[0].IsBlockedBy || flags[0].IsIndependent {
		t.Fatalf("unexpected flags for blocker %#v", flags[0])
	}
	if flags[1].IsBlocker || !flags[1].IsBlockedBy || flags[1].IsIndependent {
		t.Fatalf("unexpected flags for blocked %#v", flags[1])
	}
	if !flags[2].IsIndependent {
		t.Fatalf("expected independent card, got %#v", flags[2])
	}
}

func TestOpenBlockersSkipsCompletedAndArchived(t *testing.T) {
	deps := CardDependencies{Blockers: []Card{
		{ID: 1, IsCompleted: true, Status: CardStatusActive},
		{ID: 2, Status: CardStatusArchived},
		{ID: 3, Status: CardStatusActive},
	}}
	open := deps.OpenBlockers()
	if len(open) != 1 || open[0].ID != 3 {
		t.Fatalf("unexpected open blockers %#v", open)
	}
}

func TestKindOf(t *testing.T) {
	cases := map[error]ErrorKind{
		ErrOpenBlockers:        KindPreconditionFailed,
		ErrDependencyExists:    KindAlreadyExists,
		ErrDoneCategoryMissing: KindInvariantViolation,
		ErrNotFound:            KindNotFound,
		errors.New("boom"):     KindInternal,
	}
	for err, want := range cases {
		if got := KindOf(err); got != want {
			t.Fatalf("KindOf(%v) = %q, want %q", err, got, want)
		}
	}
}
