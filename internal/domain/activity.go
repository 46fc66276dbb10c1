package domain

import (
	"slices"
	"strings"
	"time"
)

// EventType is the closed set of activity events.
type EventType string

const (
	EventCardCreated                  EventType = "CARD_CREATED"
	EventCardUpdated                  EventType = "CARD_UPDATED"
	EventCardRenamed                  EventType = "CARD_RENAMED"
	EventCardDeleted                  EventType = "CARD_DELETED"
	EventCardArchived                 EventType = "CARD_ARCHIVED"
	EventCardReleased                 EventType = "CARD_RELEASED"
	EventCategoryChanged              EventType = "CATEGORY_CHANGED"
	EventCardDescriptionUpdated       EventType = "CARD_DESCRIPTION_UPDATED"
	EventCardDatesUpdated             EventType = "CARD_DATES_UPDATED"
	EventCardPriorityUpdated          EventType = "CARD_PRIORITY_UPDATED"
	EventUserAssigned                 EventType = "USER_ASSIGNED"
	EventUserUnassigned               EventType = "USER_UNASSIGNED"
	EventAttachmentAdded              EventType = "ATTACHMENT_ADDED"
	EventLabelAdded                   EventType = "LABEL_ADDED"
	EventLabelRemoved                 EventType = "LABEL_REMOVED"
	EventCommentAdded                 EventType = "COMMENT_ADDED"
	EventTeamAssignedToCard           EventType = "TEAM_ASSIGNED_TO_CARD"
	EventTeamUnassignedFromCard       EventType = "TEAM_UNASSIGNED_FROM_CARD"
	EventChecklistItemAdded           EventType = "CHECKLIST_ITEM_ADDED"
	EventChecklistItemUpdated         EventType = "CHECKLIST_ITEM_UPDATED"
	EventChecklistItemDeleted         EventType = "CHECKLIST_ITEM_DELETED"
	EventChecklistItemConvertedToCard EventType = "CHECKLIST_ITEM_CONVERTED_TO_CARD"
	EventChecklistGeneratedItemAdded  EventType = "CHECKLIST_GEN_ITEM_ADDED"
	EventChecklistDeleteAll           EventType = "CHECKLIST_DELETE_ALL"
	EventDependencyAdded              EventType = "DEPENDENCY_ADDED"
	EventDependencyRemoved            EventType = "DEPENDENCY_REMOVED"
	EventBoardCreated                 EventType = "BOARD_CREATED"
	EventBoardUpdated                 EventType = "BOARD_UPDATED"
	EventBoardDeleted                 EventType = "BOARD_DELETED"
)

var eventTypes = []EventType{
	EventCardCreated,
	EventCardUpdated,
	EventCardRenamed,
	EventCardDeleted,
	EventCardArchived,
	EventCardReleased,
	EventCategoryChanged,
	EventCardDescriptionUpdated,
	EventCardDatesUpdated,
	EventCardPriorityUpdated,
	EventUserAssigned,
	EventUserUnassigned,
	EventAttachmentAdded,
	EventLabelAdded,
	EventLabelRemoved,
	EventCommentAdded,
	EventTeamAssignedToCard,
	EventTeamUnassignedFromCard,
	EventChecklistItemAdded,
	EventChecklistItemUpdated,
	EventChecklistItemDeleted,
	EventChecklistItemConvertedToCard,
	EventChecklistGeneratedItemAdded,
	EventChecklistDeleteAll,
	EventDependencyAdded,
	EventDependencyRemoved,
	EventBoardCreated,
	EventBoardUpdated,
	EventBoardDeleted,
}

// EventTypes returns every known event type.
func EventTypes() []EventType {
	return append([]EventType(nil), eventTypes...)
}

func ParseEventType(raw string) (EventType, error) {
	et := EventType(strings.ToUpper(strings.TrimSpace(raw)))
	if !slices.Contains(eventTypes, et) {
		return "", ErrInvalidEventType
	}
	return et, nil
}

// Activity is an append-only log entry attached to a card.
type Activity struct {
	ID        string
	CardID    int64
	Type      EventType
	Details   string
	Actor     string
	CreatedAt time.Time
}

type ActivityInput struct {
	ID      string
	CardID  int64
	Type    EventType
	Details string
	Actor   string
}

func NewActivity(in ActivityInput, now time.Time) (Activity, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Actor = strings.TrimSpace(in.Actor)
	if in.ID == "" || in.CardID <= 0 {
		return Activity{}, ErrInvalidID
	}
	if !slices.Contains(eventTypes, in.Type) {
		return Activity{}, ErrInvalidEventType
	}
	if in.Actor == "" {
		in.Actor = "system"
	}
	return Activity{
		ID:        in.ID,
		CardID:    in.CardID,
		Type:      in.Type,
		Details:   in.Details,
		Actor:     in.Actor,
		CreatedAt: now.UTC(),
	}, nil
}

// Message renders the activity as a feed sentence.
func (a Activity) Message() string {
	return FormatActivity(a.Type, a.Actor, a.Details)
}
