package domain

// Preference keys stored per user.
const (
	PreferenceCardEvents         = "cardEvents"
	PreferenceBoardEvents        = "boardEvents"
	PreferenceTeamAssignment     = "teamAssignment"
	PreferenceUserAssignment     = "userAssignment"
	PreferenceDescriptionUpdates = "descriptionUpdates"
	PreferenceCardUpdates        = "cardUpdates"
	PreferenceAttachments        = "attachments"
	PreferenceCategoryChanges    = "categoryChanges"
	PreferenceChecklistUpdates   = "checklistUpdates"
	PreferenceCardRenames        = "cardRenames"
	PreferencePriorityChanges    = "priorityChanges"
	PreferenceDateChanges        = "dateChanges"
	PreferenceLabelChanges       = "labelChanges"
	PreferenceDependencyUpdates  = "dependencyUpdates"
)

var preferenceEvents = map[string][]EventType{
	PreferenceTeamAssignment:     {EventTeamAssignedToCard, EventTeamUnassignedFromCard},
	PreferenceUserAssignment:     {EventUserAssigned, EventUserUnassigned},
	PreferenceDescriptionUpdates: {EventCardDescriptionUpdated},
	PreferenceCardUpdates:        {EventCardUpdated},
	PreferenceAttachments:        {EventAttachmentAdded},
	PreferenceCategoryChanges:    {EventCategoryChanged, EventCardUpdated},
	PreferenceChecklistUpdates: {
		EventChecklistItemAdded,
		EventChecklistItemUpdated,
		EventChecklistItemDeleted,
		EventChecklistItemConvertedToCard,
		EventChecklistGeneratedItemAdded,
		EventChecklistDeleteAll,
	},
	PreferenceCardRenames:       {EventCardRenamed},
	PreferencePriorityChanges:   {EventCardPriorityUpdated},
	PreferenceDateChanges:       {EventCardDatesUpdated},
	PreferenceLabelChanges:      {EventLabelAdded, EventLabelRemoved},
	PreferenceDependencyUpdates: {EventDependencyAdded, EventDependencyRemoved},
}

// PreferenceKeysFor returns the fine-grained preference keys controlling eventType.
func PreferenceKeysFor(eventType EventType) []string {
	var keys []string
	for key, events := range preferenceEvents {
		for _, et := range events {
			if et == eventType {
				keys = append(keys, key)
				break
			}
		}
	}
	return keys
}

func isBoardEvent(eventType EventType) bool {
	switch eventType {
	case EventBoardCreated, EventBoardUpdated, EventBoardDeleted:
		return true
	default:
		return false
	}
}

// NotificationAllowed reports whether a user with prefs should be notified of eventType.
// Missing keys count as enabled. The coarse cardEvents/boardEvents switch must be on,
// and at least one fine-grained key mapped to the event must be on.
func NotificationAllowed(prefs map[string]bool, eventType EventType) bool {
	enabled := func(key string) bool {
		v, ok := prefs[key]
		return !ok || v
	}
	if isBoardEvent(eventType) {
		return enabled(PreferenceBoardEvents)
	}
	if !enabled(PreferenceCardEvents) {
		return false
	}
	keys := PreferenceKeysFor(eventType)
	if len(keys) == 0 {
		return true
	}
	for _, key := range keys {
		if enabled(key) {
			return true
		}
	}
	return false
}
