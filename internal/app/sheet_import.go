package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hylla/cardflow/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Sheet column headers, matched case-insensitively.
const (
	ColumnSerialNumber = "sr number"
	ColumnIssue        = "issue"
	ColumnCardName     = "card name"
	ColumnPriority     = "priority"
	ColumnCategory     = "category"
	ColumnDueDate      = "due date"
)

const serialExistsMessage = "Card with this serial number already exists."

var requiredColumns = []string{
	ColumnSerialNumber,
	ColumnIssue,
	ColumnCardName,
	ColumnPriority,
	ColumnCategory,
	ColumnDueDate,
}

var dueDateLayouts = []string{
	time.RFC3339,
	time.DateOnly,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ImportResult is the partial-success outcome of a sheet import.
type ImportResult struct {
	BatchID      string        `json:"batch_id"`
	Success      bool          `json:"success"`
	CreatedCount int           `json:"created_count"`
	Errors       []string      `json:"errors"`
	Cards        []domain.Card `json:"-"`
}

// sheetRow is one data row after validation.
type sheetRow struct {
	index      int
	serialNo   string
	issue      string
	name       string
	priority   domain.Priority
	categoryID int64
	dueAt      *time.Time
}

type rowError struct {
	index int
	msg   string
}

// ImportSheet creates one card per data row of rows, whose first row is the header.
// Rows run concurrently and independently; a failing row is reported in the result
// and never aborts the rest. Only a malformed header or a missing board fails the call.
func (s *Service) ImportSheet(ctx context.Context, boardID int64, rows [][]string, actor string) (ImportResult, error) {
	result := ImportResult{BatchID: s.idGen(), Errors: []string{}}
	if len(rows) == 0 {
		return ImportResult{}, ErrEmptyImport
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	var missing []string
	for _, col := range requiredColumns {
		if !slices.Contains(header, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return ImportResult{}, fmt.Errorf("%w: Missing columns: %s", ErrMissingImportColumn, strings.Join(missing, ", "))
	}

	if _, err := s.repo.GetBoard(ctx, boardID); err != nil {
		return ImportResult{}, err
	}
	categories, err := s.repo.ListCategories(ctx, boardID)
	if err != nil {
		return ImportResult{}, err
	}
	categoryByName := make(map[string]int64, len(categories))
	for _, c := range categories {
		categoryByName[strings.ToLower(c.Name)] = c.ID
	}

	var (
		mu      sync.Mutex
		errs    []rowError
		created []domain.Card
	)
	report := func(index int, msg string) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, rowError{index: index, msg: msg})
	}

	now := s.clock()
	seenSerial := map[string]int{}
	valid := make([]sheetRow, 0, len(rows)-1)
	for i, raw := range rows[1:] {
		row, rowErrs := s.parseSheetRow(i+1, header, raw, categoryByName, now)
		for _, msg := range rowErrs {
			report(row.index, msg)
		}
		if row.categoryID == 0 {
			continue
		}
		if row.serialNo != "" {
			if first, dup := seenSerial[row.serialNo]; dup {
				report(row.index, fmt.Sprintf("Row %d: %s (duplicates row %d)", row.index, serialExistsMessage, first))
				continue
			}
			seenSerial[row.serialNo] = row.index
		}
		valid = append(valid, row)
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.ImportParallelism)
	for _, row := range valid {
		g.Go(func() error {
			card, err := s.importRow(ctx, boardID, row, actor)
			if err != nil {
				report(row.index, rowFailure(row.index, err))
				return nil
			}
			mu.Lock()
			created = append(created, card)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.SortStableFunc(errs, func(a, b rowError) int { return a.index - b.index })
	for _, e := range errs {
		result.Errors = append(result.Errors, e.msg)
	}
	slices.SortFunc(created, func(a, b domain.Card) int { return int(a.ID - b.ID) })
	result.Cards = created
	result.CreatedCount = len(created)
	result.Success = len(result.Errors) == 0
	s.logger.Info("sheet imported", "board_id", boardID, "batch_id", result.BatchID, "created", result.CreatedCount, "errors", len(result.Errors))
	return result, nil
}

// parseSheetRow validates one row. A row with categoryID 0 must not be imported.
func (s *Service) parseSheetRow(index int, header, raw []string, categories map[string]int64, now time.Time) (sheetRow, []string) {
	cell := func(col string) string {
		i := slices.Index(header, col)
		if i < 0 || i >= len(raw) {
			return ""
		}
		return strings.TrimSpace(raw[i])
	}
	row := sheetRow{
		index:    index,
		serialNo: cell(ColumnSerialNumber),
		issue:    cell(ColumnIssue),
		name:     cell(ColumnCardName),
	}
	var errs []string
	ok := true
	if row.name == "" {
		errs = append(errs, fmt.Sprintf("Row %d: Missing Card Name", index))
		ok = false
	}
	categoryName := cell(ColumnCategory)
	categoryID, found := categories[strings.ToLower(categoryName)]
	if categoryName == "" || !found {
		errs = append(errs, fmt.Sprintf("Row %d: Invalid or missing Category '%s'", index, categoryName))
		ok = false
	}
	rawPriority := strings.ToLower(cell(ColumnPriority))
	if rawPriority == "" {
		rawPriority = string(domain.PriorityMedium)
	}
	priority, err := domain.ParsePriority(rawPriority)
	if err != nil {
		errs = append(errs, fmt.Sprintf("Row %d: Invalid Priority '%s'", index, rawPriority))
		ok = false
	}
	row.priority = priority

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if rawDue := cell(ColumnDueDate); rawDue != "" {
		due, parsed := parseDueDate(rawDue)
		if !parsed {
			due = today.AddDate(0, 0, s.cfg.ImportDueDays)
			errs = append(errs, fmt.Sprintf("Row %d: Invalid Due Date '%s'. Set to %d days from now.", index, rawDue, s.cfg.ImportDueDays))
		}
		if due.Before(today) {
			due = today
		}
		row.dueAt = &due
	}

	if ok {
		row.categoryID = categoryID
	}
	return row, errs
}

// parseDueDate accepts common date layouts and spreadsheet serial day numbers.
func parseDueDate(raw string) (time.Time, bool) {
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if serial <= 0 {
			return time.Time{}, false
		}
		return excelSerialToDate(serial), true
	}
	for _, layout := range dueDateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// excelSerialToDate converts a 1900-system spreadsheet serial, skipping the phantom leap day.
func excelSerialToDate(serial float64) time.Time {
	days := int(serial)
	if days > 59 {
		days -= 2
	} else {
		days--
	}
	return time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, days)
}

// importRow creates one card inside its own unit of work after checking the serial number.
func (s *Service) importRow(ctx context.Context, boardID int64, row sheetRow, actor string) (domain.Card, error) {
	var card domain.Card
	err := s.inTx(ctx, "import_row", func(u *unitOfWork) error {
		if row.serialNo != "" {
			existing, err := u.repo.ListCardsByBoard(ctx, boardID)
			if err != nil {
				return err
			}
			for _, c := range existing {
				if c.SerialNo == row.serialNo {
					return domain.ErrSerialNumberExists
				}
			}
		}
		var err error
		card, err = u.createCard(ctx, CreateCardInput{
			CategoryID:  row.categoryID,
			Name:        row.name,
			Description: row.issue,
			Priority:    row.priority,
			SerialNo:    row.serialNo,
			DueAt:       row.dueAt,
			Actor:       actor,
		})
		return err
	})
	return card, err
}

func rowFailure(index int, err error) string {
	if errors.Is(err, domain.ErrSerialNumberExists) {
		return fmt.Sprintf("Row %d: %s", index, serialExistsMessage)
	}
	return fmt.Sprintf("Row %d: Failed to create card - %v", index, err)
}
