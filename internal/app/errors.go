package app

import (
	"fmt"

	"github.com/hylla/cardflow/internal/domain"
)

// ErrNotFound is the repository miss error; it is domain.ErrNotFound.
var ErrNotFound = domain.ErrNotFound

var (
	ErrCascadeTooDeep      = fmt.Errorf("%w: converted card chain exceeds the cascade depth limit", domain.ErrInvariantViolation)
	ErrCascadeCycle        = fmt.Errorf("%w: converted card chain loops back on itself", domain.ErrInvariantViolation)
	ErrMissingImportColumn = fmt.Errorf("%w: sheet is missing required columns", domain.ErrValidation)
	ErrEmptyImport         = fmt.Errorf("%w: sheet has no data rows", domain.ErrValidation)
)
