package domain

import (
	"fmt"
	"strings"
)

// maxActivityFieldRunes bounds author and details in rendered sentences.
const maxActivityFieldRunes = 30

// FormatActivity renders one activity as a markdown sentence.
func FormatActivity(eventType EventType, author, details string) string {
	boldAuthor := bold(truncateActivityField(capitalizeWords(author)))
	boldDetails := bold(truncateActivityField(details))

	switch eventType {
	case EventCardCreated:
		return fmt.Sprintf("A new card %s was created by %s.", boldDetails, boldAuthor)
	case EventCardUpdated:
		return fmt.Sprintf("The status of card %s was updated by %s.", boldDetails, boldAuthor)
	case EventCardRenamed:
		return fmt.Sprintf("The card %s was renamed by %s.", boldDetails, boldAuthor)
	case EventCardDeleted:
		return fmt.Sprintf("The card %s was deleted by %s.", boldDetails, boldAuthor)
	case EventCardArchived:
		return fmt.Sprintf("The card %s was archived by %s.", boldDetails, boldAuthor)
	case EventCardReleased:
		return fmt.Sprintf("The card was released in version %s by %s.", boldDetails, boldAuthor)
	case EventCategoryChanged:
		return fmt.Sprintf("The category of card %s was changed by %s.", boldDetails, boldAuthor)
	case EventBoardCreated:
		return fmt.Sprintf("A new board %s was created by %s.", boldDetails, boldAuthor)
	case EventBoardDeleted:
		return fmt.Sprintf("The board %s was deleted by %s.", boldDetails, boldAuthor)
	case EventBoardUpdated:
		return fmt.Sprintf("The board %s was updated by %s.", boldDetails, boldAuthor)
	case EventCardDescriptionUpdated:
		return fmt.Sprintf("The description of card was updated by %s.", boldAuthor)
	case EventCardDatesUpdated:
		return fmt.Sprintf("The dates of card %s were updated by %s.", boldDetails, boldAuthor)
	case EventCardPriorityUpdated:
		return fmt.Sprintf("The priority of card %s was updated by %s.", boldDetails, boldAuthor)
	case EventAttachmentAdded:
		return fmt.Sprintf("%s added an attachment to the card %s.", boldAuthor, boldDetails)
	case EventLabelAdded:
		return fmt.Sprintf("The label was added to the card %s by %s.", boldDetails, boldAuthor)
	case EventLabelRemoved:
		return fmt.Sprintf("The label was removed from the card %s by %s.", boldDetails, boldAuthor)
	case EventUserAssigned:
		return fmt.Sprintf("%s assigned %s to the card.", bold(capitalizeWords(author)), bold(capitalizeWords(details)))
	case EventUserUnassigned:
		return fmt.Sprintf("%s removed %s from the card.", bold(capitalizeWords(author)), bold(capitalizeWords(details)))
	case EventCommentAdded:
		return fmt.Sprintf("A new comment was added by %s: %s", boldAuthor, boldDetails)
	case EventTeamAssignedToCard:
		return fmt.Sprintf("A team was assigned to the card by %s.", boldAuthor)
	case EventTeamUnassignedFromCard:
		return fmt.Sprintf("A team was unassigned from the card by %s.", boldAuthor)
	case EventChecklistItemAdded:
		return fmt.Sprintf("%s added checklist item %s to the card.", boldAuthor, boldDetails)
	case EventChecklistItemUpdated:
		return fmt.Sprintf("%s updated checklist item %s on the card.", boldAuthor, boldDetails)
	case EventChecklistItemDeleted:
		return fmt.Sprintf("%s deleted checklist item %s from the card.", boldAuthor, boldDetails)
	case EventChecklistItemConvertedToCard:
		return fmt.Sprintf("%s converted checklist item %s to a card.", boldAuthor, boldDetails)
	case EventChecklistGeneratedItemAdded:
		return fmt.Sprintf("%s added a AI generated checklist item to the card %s.", boldAuthor, boldDetails)
	case EventChecklistDeleteAll:
		return fmt.Sprintf("%s deleted all checklist items from the card %s.", boldAuthor, boldDetails)
	case EventDependencyAdded:
		return fmt.Sprintf("%s added a dependency to the card %s.", boldAuthor, boldDetails)
	case EventDependencyRemoved:
		return fmt.Sprintf("%s removed a dependency from the card %s.", boldAuthor, boldDetails)
	default:
		return ""
	}
}

// capitalizeWords upper-cases the first letter of every space-separated word.
func capitalizeWords(s string) string {
	if s == "" {
		return ""
	}
	words := strings.Split(s, " ")
	for i, word := range words {
		runes := []rune(word)
		if len(runes) == 0 {
			continue
		}
		words[i] = strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
	return strings.Join(words, " ")
}

func truncateActivityField(s string) string {
	runes := []rune(s)
	if len(runes) <= maxActivityFieldRunes {
		return s
	}
	return string(runes[:maxActivityFieldRunes]) + "..."
}

func bold(s string) string {
	return "**" + s + "**"
}
