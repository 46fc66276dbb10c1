package notify

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/hylla/cardflow/internal/app"
	"github.com/hylla/cardflow/internal/domain"
)

// Store persists rendered notifications and answers member and preference lookups.
type Store interface {
	app.MemberDirectory
	app.PreferenceLookup
	SaveNotification(context.Context, domain.Notification) (domain.Notification, error)
}

var _ app.ActivityListener = (*Dispatcher)(nil)

// Dispatcher turns committed activities into per-member notifications.
type Dispatcher struct {
	store  Store
	logger app.Logger
}

// NewDispatcher constructs a dispatcher. A nil logger discards output.
func NewDispatcher(store Store, logger app.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Dispatcher{store: store, logger: logger}
}

// ActivityCommitted implements app.ActivityListener.
func (d *Dispatcher) ActivityCommitted(ctx context.Context, ev app.ActivityEvent) {
	if _, err := d.Dispatch(ctx, ev); err != nil {
		d.logger.Warn("notification dispatch failed", "activity_id", ev.Activity.ID, "type", ev.Activity.Type, "err", err)
	}
}

// Dispatch stores one notification per board member allowed to receive ev, skipping the actor.
// It returns the number of notifications stored.
func (d *Dispatcher) Dispatch(ctx context.Context, ev app.ActivityEvent) (int, error) {
	members, err := d.store.ListBoardMembers(ctx, ev.BoardID)
	if err != nil {
		return 0, err
	}
	message := ev.Activity.Message()
	if message == "" {
		return 0, nil
	}
	actor := strings.ToLower(strings.TrimSpace(ev.Activity.Actor))
	sent := 0
	for _, member := range members {
		email := strings.ToLower(strings.TrimSpace(member.Email))
		if email == "" || isActor(member, actor) {
			continue
		}
		prefs, err := d.store.NotificationPreferences(ctx, email)
		if err != nil {
			return sent, err
		}
		if !domain.NotificationAllowed(prefs, ev.Activity.Type) {
			d.logger.Debug("notification muted", "email", email, "type", ev.Activity.Type)
			continue
		}
		if _, err := d.store.SaveNotification(ctx, domain.Notification{
			Email:     email,
			CardID:    ev.Activity.CardID,
			Type:      ev.Activity.Type,
			Message:   message,
			CreatedAt: ev.Activity.CreatedAt,
		}); err != nil {
			return sent, err
		}
		sent++
	}
	if sent > 0 {
		d.logger.Debug("notifications stored", "card_id", ev.Activity.CardID, "type", ev.Activity.Type, "count", sent)
	}
	return sent, nil
}

// isActor reports whether member is the actor, who is named by email or display name.
func isActor(member domain.BoardMember, actor string) bool {
	if actor == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(member.Email), actor) ||
		strings.EqualFold(strings.TrimSpace(member.Name), actor)
}
