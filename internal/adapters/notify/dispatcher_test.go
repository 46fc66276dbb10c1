package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hylla/cardflow/internal/app"
	"github.com/hylla/cardflow/internal/domain"
)

type fakeStore struct {
	members []domain.BoardMember
	prefs   map[string]map[string]bool
	saved   []domain.Notification
	saveErr error
	listErr error
}

func (f *fakeStore) ListBoardMembers(_ context.Context, boardID int64) ([]domain.BoardMember, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.BoardMember
	for _, m := range f.members {
		if m.BoardID == boardID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) NotificationPreferences(_ context.Context, email string) (map[string]bool, error) {
	return f.prefs[email], nil
}

func (f *fakeStore) SaveNotification(_ context.Context, n domain.Notification) (domain.Notification, error) {
	if f.saveErr != nil {
		return domain.Notification{}, f.saveErr
	}
	n.ID = int64(len(f.saved) + 1)
	f.saved = append(f.saved, n)
	return n, nil
}

func event(eventType domain.EventType, actor string) app.ActivityEvent {
	return app.ActivityEvent{
		Activity: domain.Activity{
			ID:        "a1",
			CardID:    7,
			Type:      eventType,
			Details:   "Blocked by: A",
			Actor:     actor,
			CreatedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		},
		BoardID:  1,
		CardName: "B",
	}
}

func TestDispatchSkipsActorAndMutedMembers(t *testing.T) {
	store := &fakeStore{
		members: []domain.BoardMember{
			{BoardID: 1, Email: "jane@example.com"},
			{BoardID: 1, Email: "bob@example.com"},
			{BoardID: 1, Email: "amy@example.com"},
			{BoardID: 2, Email: "other@example.com"},
		},
		prefs: map[string]map[string]bool{
			"amy@example.com": {domain.PreferenceDependencyUpdates: false},
		},
	}
	d := NewDispatcher(store, nil)

	sent, err := d.Dispatch(context.Background(), event(domain.EventDependencyAdded, "Jane@example.com"))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if sent != 1 || len(store.saved) != 1 {
		t.Fatalf("expected one notification, got %d %#v", sent, store.saved)
	}
	got := store.saved[0]
	if got.Email != "bob@example.com" || got.CardID != 7 || got.Type != domain.EventDependencyAdded {
		t.Fatalf("unexpected notification %#v", got)
	}
	if got.Message != "**Jane@example.com** added a dependency to the card **Blocked by: A**." {
		t.Fatalf("unexpected message %q", got.Message)
	}
}

func TestDispatchSkipsActorNamedByDisplayName(t *testing.T) {
	store := &fakeStore{
		members: []domain.BoardMember{
			{BoardID: 1, Email: "jane@example.com", Name: "Jane"},
			{BoardID: 1, Email: "bob@example.com", Name: "Bob"},
		},
	}
	sent, err := NewDispatcher(store, nil).Dispatch(context.Background(), event(domain.EventDependencyAdded, " jane "))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if sent != 1 || store.saved[0].Email != "bob@example.com" {
		t.Fatalf("expected only bob to be notified, got %d %#v", sent, store.saved)
	}
}

func TestDispatchRespectsCardEventsSwitch(t *testing.T) {
	store := &fakeStore{
		members: []domain.BoardMember{{BoardID: 1, Email: "bob@example.com"}},
		prefs: map[string]map[string]bool{
			"bob@example.com": {domain.PreferenceCardEvents: false},
		},
	}
	sent, err := NewDispatcher(store, nil).Dispatch(context.Background(), event(domain.EventCardCreated, "jane"))
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if sent != 0 {
		t.Fatalf("expected card events to be muted, got %d", sent)
	}
}

func TestActivityCommittedSwallowsErrors(t *testing.T) {
	store := &fakeStore{
		members: []domain.BoardMember{{BoardID: 1, Email: "bob@example.com"}},
		saveErr: errors.New("disk full"),
	}
	d := NewDispatcher(store, nil)
	if _, err := d.Dispatch(context.Background(), event(domain.EventCardCreated, "jane")); err == nil {
		t.Fatal("expected Dispatch to report the save failure")
	}
	d.ActivityCommitted(context.Background(), event(domain.EventCardCreated, "jane"))
}

func TestDispatchReportsMemberLookupFailure(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db closed")}
	if _, err := NewDispatcher(store, nil).Dispatch(context.Background(), event(domain.EventCardCreated, "jane")); err == nil {
		t.Fatal("expected member lookup failure")
	}
}
