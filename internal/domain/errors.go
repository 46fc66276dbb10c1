package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the engine wraps exactly one of these.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrInvariantViolation = errors.New("invariant violation")
)

var (
	ErrInvalidID           = fmt.Errorf("%w: invalid id", ErrValidation)
	ErrInvalidName         = fmt.Errorf("%w: name is required", ErrValidation)
	ErrInvalidTitle        = fmt.Errorf("%w: title is required", ErrValidation)
	ErrInvalidPriority     = fmt.Errorf("%w: invalid priority", ErrValidation)
	ErrInvalidProgress     = fmt.Errorf("%w: progress must be between 0 and 100", ErrValidation)
	ErrInvalidEventType    = fmt.Errorf("%w: unknown event type", ErrValidation)
	ErrInvalidCategoryKind = fmt.Errorf("%w: unknown category kind", ErrValidation)
	ErrReservedCategory    = fmt.Errorf("%w: category name is reserved", ErrValidation)
	ErrSelfDependency      = fmt.Errorf("%w: a card cannot block itself", ErrValidation)

	ErrDependencyExists        = fmt.Errorf("%w: dependency already exists", ErrAlreadyExists)
	ErrReverseDependencyExists = fmt.Errorf("%w: the cards already depend on each other in the opposite direction", ErrAlreadyExists)
	ErrAlreadyConverted        = fmt.Errorf("%w: checklist item is already converted to a card", ErrAlreadyExists)
	ErrCategoryExists          = fmt.Errorf("%w: category already exists on this board", ErrAlreadyExists)
	ErrSerialNumberExists      = fmt.Errorf("%w: Card with this serial number already exists.", ErrAlreadyExists)

	ErrBlockerCompleted      = fmt.Errorf("%w: Cannot add dependency. The blocker card is already completed.", ErrPreconditionFailed)
	ErrBlockedCompleted      = fmt.Errorf("%w: Cannot add dependency. Current card is already completed.", ErrPreconditionFailed)
	ErrOpenBlockers          = fmt.Errorf("%w: Cannot complete card until all blocker cards are completed", ErrPreconditionFailed)
	ErrIncompleteChecklist   = fmt.Errorf("%w: Cannot complete card until all checklist items are completed", ErrPreconditionFailed)
	ErrReleaseNotAllowed     = fmt.Errorf("%w: only completed and released cards may enter Release", ErrPreconditionFailed)
	ErrReleaseRequiresDone   = fmt.Errorf("%w: only completed cards can be released", ErrPreconditionFailed)
	ErrConvertedCardBlocked  = fmt.Errorf("%w: the converted card has its own blockers or checklist; complete it from the card", ErrPreconditionFailed)
	ErrParentCompleted       = fmt.Errorf("%w: cannot convert checklist items of a completed card", ErrPreconditionFailed)
	ErrDoneCategoryMissing   = fmt.Errorf("%w: Done category not found", ErrInvariantViolation)
	ErrBuiltinCategoryLocked = fmt.Errorf("%w: built-in categories cannot be deleted", ErrPreconditionFailed)
)

// ErrorKind classifies an error for transports.
type ErrorKind string

const (
	KindValidation         ErrorKind = "validation_error"
	KindNotFound           ErrorKind = "not_found"
	KindAlreadyExists      ErrorKind = "already_exists"
	KindPreconditionFailed ErrorKind = "precondition_failed"
	KindInvariantViolation ErrorKind = "invariant_violation"
	KindInternal           ErrorKind = "internal_error"
)

// KindOf returns the kind wrapped by err, or KindInternal when none matches.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadyExists):
		return KindAlreadyExists
	case errors.Is(err, ErrPreconditionFailed):
		return KindPreconditionFailed
	case errors.Is(err, ErrInvariantViolation):
		return KindInvariantViolation
	default:
		return KindInternal
	}
}
