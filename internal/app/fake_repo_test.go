package app

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/hylla/cardflow/internal/domain"
)

type depKey struct {
	blocker int64
	blocked int64
}

type fakeState struct {
	nextID     int64
	boards     map[int64]domain.Board
	categories map[int64]domain.Category
	cards      map[int64]domain.Card
	deps       map[depKey]domain.Dependency
	items      map[int64]domain.ChecklistItem
	activities []domain.Activity
	versions   map[int64]domain.Version
}

func (s fakeState) clone() fakeState {
	return fakeState{
		nextID:     s.nextID,
		boards:     maps.Clone(s.boards),
		categories: maps.Clone(s.categories),
		cards:      maps.Clone(s.cards),
		deps:       maps.Clone(s.deps),
		items:      maps.Clone(s.items),
		activities: slices.Clone(s.activities),
		versions:   maps.Clone(s.versions),
	}
}

type fakeRepo struct {
	txMu sync.Mutex
	mu   sync.Mutex
	fakeState

	failDeleteCard map[int64]error
	txCount        int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		fakeState: fakeState{
			boards:     map[int64]domain.Board{},
			categories: map[int64]domain.Category{},
			cards:      map[int64]domain.Card{},
			deps:       map[depKey]domain.Dependency{},
			items:      map[int64]domain.ChecklistItem{},
			versions:   map[int64]domain.Version{},
		},
		failDeleteCard: map[int64]error{},
	}
}

func (f *fakeRepo) WithinTx(_ context.Context, fn func(Repository) error) error {
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	snapshot := f.fakeState.clone()
	f.txCount++
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.fakeState = snapshot
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeRepo) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeRepo) CreateBoard(_ context.Context, b domain.Board) (domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.ID = f.id()
	f.boards[b.ID] = b
	return b, nil
}

func (f *fakeRepo) GetBoard(_ context.Context, id int64) (domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.boards[id]
	if !ok {
		return domain.Board{}, ErrNotFound
	}
	return b, nil
}

func (f *fakeRepo) ListBoards(_ context.Context) ([]domain.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := slices.Collect(maps.Values(f.boards))
	slices.SortFunc(out, func(a, b domain.Board) int { return int(a.ID - b.ID) })
	return out, nil
}

func (f *fakeRepo) DeleteBoard(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.boards, id)
	for vid, v := range f.versions {
		if v.BoardID == id {
			delete(f.versions, vid)
		}
	}
	return nil
}

func (f *fakeRepo) CreateCategory(_ context.Context, c domain.Category) (domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.id()
	f.categories[c.ID] = c
	return c, nil
}

func (f *fakeRepo) GetCategory(_ context.Context, id int64) (domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return domain.Category{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) ListCategories(_ context.Context, boardID int64) ([]domain.Category, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Category
	for _, c := range f.categories {
		if c.BoardID == boardID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.Category) int { return a.Position - b.Position })
	return out, nil
}

func (f *fakeRepo) DeleteCategory(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.categories, id)
	return nil
}

func (f *fakeRepo) CreateCard(_ context.Context, c domain.Card) (domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = f.id()
	f.cards[c.ID] = c
	return c, nil
}

func (f *fakeRepo) UpdateCard(_ context.Context, c domain.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.cards[c.ID]; !ok {
		return ErrNotFound
	}
	f.cards[c.ID] = c
	return nil
}

func (f *fakeRepo) GetCard(_ context.Context, id int64) (domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.cards[id]
	if !ok {
		return domain.Card{}, ErrNotFound
	}
	return c, nil
}

func (f *fakeRepo) sortedCards(keep func(domain.Card) bool) []domain.Card {
	var out []domain.Card
	for _, c := range f.cards {
		if keep(c) {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.Card) int { return int(a.ID - b.ID) })
	return out
}

func (f *fakeRepo) ListCardsByCategory(_ context.Context, categoryID int64) ([]domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedCards(func(c domain.Card) bool { return c.CategoryID == categoryID }), nil
}

func (f *fakeRepo) ListCardsByBoard(_ context.Context, boardID int64) ([]domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedCards(func(c domain.Card) bool { return f.categories[c.CategoryID].BoardID == boardID }), nil
}

func (f *fakeRepo) DeleteCard(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failDeleteCard[id]; err != nil {
		return err
	}
	delete(f.cards, id)
	return nil
}

func (f *fakeRepo) CreateDependency(_ context.Context, d domain.Dependency) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deps[depKey{d.BlockerID, d.BlockedID}] = d
	return nil
}

func (f *fakeRepo) DeleteDependency(_ context.Context, blockerID, blockedID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := depKey{blockerID, blockedID}
	if _, ok := f.deps[key]; !ok {
		return 0, nil
	}
	delete(f.deps, key)
	return 1, nil
}

func (f *fakeRepo) ListBlockers(_ context.Context, cardID int64) ([]domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedCards(func(c domain.Card) bool {
		_, ok := f.deps[depKey{c.ID, cardID}]
		return ok
	}), nil
}

func (f *fakeRepo) ListBlocked(_ context.Context, cardID int64) ([]domain.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedCards(func(c domain.Card) bool {
		_, ok := f.deps[depKey{cardID, c.ID}]
		return ok
	}), nil
}

func (f *fakeRepo) ListBoardDependencies(_ context.Context, boardID int64) ([]domain.Dependency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	onBoard := func(cardID int64) bool {
		c, ok := f.cards[cardID]
		return ok && f.categories[c.CategoryID].BoardID == boardID
	}
	var out []domain.Dependency
	for key, d := range f.deps {
		if onBoard(key.blocker) || onBoard(key.blocked) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteCardDependencies(_ context.Context, cardID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.deps {
		if key.blocker == cardID || key.blocked == cardID {
			delete(f.deps, key)
		}
	}
	return nil
}

func (f *fakeRepo) CreateChecklistItem(_ context.Context, item domain.ChecklistItem) (domain.ChecklistItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ID = f.id()
	f.items[item.ID] = item
	return item, nil
}

func (f *fakeRepo) UpdateChecklistItem(_ context.Context, item domain.ChecklistItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[item.ID]; !ok {
		return ErrNotFound
	}
	f.items[item.ID] = item
	return nil
}

func (f *fakeRepo) GetChecklistItem(_ context.Context, id int64) (domain.ChecklistItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[id]
	if !ok {
		return domain.ChecklistItem{}, ErrNotFound
	}
	return item, nil
}

func (f *fakeRepo) ListChecklistItems(_ context.Context, cardID int64) ([]domain.ChecklistItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ChecklistItem
	for _, item := range f.items {
		if item.CardID == cardID {
			out = append(out, item)
		}
	}
	slices.SortFunc(out, func(a, b domain.ChecklistItem) int {
		if a.Position != b.Position {
			return a.Position - b.Position
		}
		return int(a.ID - b.ID)
	})
	return out, nil
}

func (f *fakeRepo) FindChecklistItemByConvertedCard(_ context.Context, cardID int64) (domain.ChecklistItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.ConvertedCardID != nil && *item.ConvertedCardID == cardID {
			return item, nil
		}
	}
	return domain.ChecklistItem{}, ErrNotFound
}

func (f *fakeRepo) DeleteChecklistItem(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, id)
	return nil
}

func (f *fakeRepo) DeleteChecklistItems(_ context.Context, cardID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, item := range f.items {
		if item.CardID == cardID {
			delete(f.items, id)
		}
	}
	return nil
}

func (f *fakeRepo) CreateActivity(_ context.Context, a domain.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = append(f.activities, a)
	return nil
}

func (f *fakeRepo) ListActivities(_ context.Context, cardID int64) ([]domain.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Activity
	for _, a := range f.activities {
		if a.CardID == cardID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteActivities(_ context.Context, cardID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activities = slices.DeleteFunc(f.activities, func(a domain.Activity) bool { return a.CardID == cardID })
	return nil
}

func (f *fakeRepo) CreateVersion(_ context.Context, v domain.Version) (domain.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v.ID = f.id()
	f.versions[v.ID] = v
	return v, nil
}

func (f *fakeRepo) ListVersions(_ context.Context, boardID int64) ([]domain.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Version
	for _, v := range f.versions {
		if v.BoardID == boardID {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b domain.Version) int { return int(b.ID - a.ID) })
	return out, nil
}

func (f *fakeRepo) activityTypes(cardID int64) []domain.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.EventType
	for _, a := range f.activities {
		if a.CardID == cardID {
			out = append(out, a.Type)
		}
	}
	return out
}

var errInjected = errors.New("injected failure")
