package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/cardflow/internal/app"
	"github.com/hylla/cardflow/internal/domain"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository is the SQLite-backed app.Store.
type Repository struct {
	db *sqlx.DB
	*store
}

// store runs queries against either the database or an open transaction.
type store struct {
	q sqlx.ExtContext
}

// Open opens or creates the database file at path and migrates it.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sqlx.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sqlx.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	return newRepository(db)
}

func newRepository(db *sqlx.DB) (*Repository, error) {
	// One connection serializes writers and keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db, store: &store{q: db}}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// WithinTx runs fn against a transaction-bound repository and commits when fn succeeds.
func (r *Repository) WithinTx(ctx context.Context, fn func(app.Repository) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(&store{q: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// migrate creates the schema.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS boards (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			board_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			color TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL,
			kind TEXT NOT NULL DEFAULT 'custom',
			created_at TEXT NOT NULL,
			FOREIGN KEY(board_id) REFERENCES boards(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			board_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			released_at TEXT NOT NULL,
			FOREIGN KEY(board_id) REFERENCES boards(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS cards (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			is_completed INTEGER NOT NULL DEFAULT 0,
			progress INTEGER NOT NULL DEFAULT 0,
			priority TEXT NOT NULL DEFAULT 'medium',
			status TEXT NOT NULL DEFAULT 'active',
			release_state TEXT NOT NULL DEFAULT 'UNRELEASED',
			version_id INTEGER,
			serial_no TEXT NOT NULL DEFAULT '',
			due_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(category_id) REFERENCES categories(id),
			FOREIGN KEY(version_id) REFERENCES versions(id) ON DELETE SET NULL
		);`,
		`CREATE TABLE IF NOT EXISTS card_dependencies (
			blocker_id INTEGER NOT NULL,
			blocked_id INTEGER NOT NULL,
			created_at TEXT NOT NULL,
			PRIMARY KEY(blocker_id, blocked_id),
			FOREIGN KEY(blocker_id) REFERENCES cards(id) ON DELETE CASCADE,
			FOREIGN KEY(blocked_id) REFERENCES cards(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS checklist_items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			card_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			is_complete INTEGER NOT NULL DEFAULT 0,
			converted_card_id INTEGER,
			due_at TEXT,
			position INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(card_id) REFERENCES cards(id) ON DELETE CASCADE,
			FOREIGN KEY(converted_card_id) REFERENCES cards(id) ON DELETE SET NULL
		);`,
		`CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			card_id INTEGER NOT NULL,
			type TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '',
			actor TEXT NOT NULL DEFAULT 'system',
			created_at TEXT NOT NULL,
			FOREIGN KEY(card_id) REFERENCES cards(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS board_members (
			board_id INTEGER NOT NULL,
			email TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			PRIMARY KEY(board_id, email),
			FOREIGN KEY(board_id) REFERENCES boards(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS user_preferences (
			email TEXT PRIMARY KEY,
			prefs_json TEXT NOT NULL DEFAULT '{}'
		);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL,
			card_id INTEGER NOT NULL,
			type TEXT NOT NULL,
			message TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_categories_board_name ON categories(board_id, name COLLATE NOCASE);`,
		`CREATE INDEX IF NOT EXISTS idx_cards_category ON cards(category_id);`,
		`CREATE INDEX IF NOT EXISTS idx_card_dependencies_blocked ON card_dependencies(blocked_id);`,
		`CREATE INDEX IF NOT EXISTS idx_checklist_items_card ON checklist_items(card_id, position);`,
		`CREATE INDEX IF NOT EXISTS idx_checklist_items_converted ON checklist_items(converted_card_id);`,
		`CREATE INDEX IF NOT EXISTS idx_activities_card ON activities(card_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_email ON notifications(email, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

type boardRow struct {
	ID        int64  `db:"id"`
	Name      string `db:"name"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func (r boardRow) toDomain() domain.Board {
	return domain.Board{
		ID:        r.ID,
		Name:      r.Name,
		CreatedAt: parseTS(r.CreatedAt),
		UpdatedAt: parseTS(r.UpdatedAt),
	}
}

// CreateBoard inserts a board and returns it with its new id.
func (s *store) CreateBoard(ctx context.Context, b domain.Board) (domain.Board, error) {
	id, err := s.insert(ctx, `
		INSERT INTO boards(name, created_at, updated_at) VALUES (?, ?, ?)
	`, b.Name, ts(b.CreatedAt), ts(b.UpdatedAt))
	if err != nil {
		return domain.Board{}, err
	}
	b.ID = id
	return b, nil
}

// GetBoard returns board.
func (s *store) GetBoard(ctx context.Context, id int64) (domain.Board, error) {
	var row boardRow
	if err := s.get(ctx, &row, `SELECT id, name, created_at, updated_at FROM boards WHERE id = ?`, id); err != nil {
		return domain.Board{}, fmt.Errorf("board %d: %w", id, err)
	}
	return row.toDomain(), nil
}

// ListBoards lists boards.
func (s *store) ListBoards(ctx context.Context) ([]domain.Board, error) {
	var rows []boardRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, `SELECT id, name, created_at, updated_at FROM boards ORDER BY id ASC`); err != nil {
		return nil, err
	}
	out := make([]domain.Board, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// DeleteBoard deletes board.
func (s *store) DeleteBoard(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

type categoryRow struct {
	ID        int64  `db:"id"`
	BoardID   int64  `db:"board_id"`
	Name      string `db:"name"`
	Color     string `db:"color"`
	Position  int    `db:"position"`
	Kind      string `db:"kind"`
	CreatedAt string `db:"created_at"`
}

func (r categoryRow) toDomain() (domain.Category, error) {
	kind, err := domain.ParseCategoryKind(r.Kind, r.Name)
	if err != nil {
		return domain.Category{}, fmt.Errorf("category %d: %w", r.ID, err)
	}
	return domain.Category{
		ID:        r.ID,
		BoardID:   r.BoardID,
		Name:      r.Name,
		Color:     r.Color,
		Position:  r.Position,
		Kind:      kind,
		CreatedAt: parseTS(r.CreatedAt),
	}, nil
}

const categoryColumns = `id, board_id, name, color, position, kind, created_at`

// CreateCategory creates category.
func (s *store) CreateCategory(ctx context.Context, c domain.Category) (domain.Category, error) {
	id, err := s.insert(ctx, `
		INSERT INTO categories(board_id, name, color, position, kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.BoardID, c.Name, c.Color, c.Position, string(c.Kind), ts(c.CreatedAt))
	if err != nil {
		return domain.Category{}, err
	}
	c.ID = id
	return c, nil
}

// GetCategory returns category.
func (s *store) GetCategory(ctx context.Context, id int64) (domain.Category, error) {
	var row categoryRow
	if err := s.get(ctx, &row, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id); err != nil {
		return domain.Category{}, fmt.Errorf("category %d: %w", id, err)
	}
	return row.toDomain()
}

// ListCategories lists categories in board order.
func (s *store) ListCategories(ctx context.Context, boardID int64) ([]domain.Category, error) {
	var rows []categoryRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT `+categoryColumns+` FROM categories WHERE board_id = ? ORDER BY position ASC, id ASC
	`, boardID); err != nil {
		return nil, err
	}
	out := make([]domain.Category, 0, len(rows))
	for _, row := range rows {
		c, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// DeleteCategory deletes category.
func (s *store) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

type cardRow struct {
	ID          int64          `db:"id"`
	CategoryID  int64          `db:"category_id"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	IsCompleted bool           `db:"is_completed"`
	Progress    int            `db:"progress"`
	Priority    string         `db:"priority"`
	Status      string         `db:"status"`
	Release     string         `db:"release_state"`
	VersionID   sql.NullInt64  `db:"version_id"`
	SerialNo    string         `db:"serial_no"`
	DueAt       sql.NullString `db:"due_at"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

func (r cardRow) toDomain() domain.Card {
	c := domain.Card{
		ID:          r.ID,
		CategoryID:  r.CategoryID,
		Name:        r.Name,
		Description: r.Description,
		IsCompleted: r.IsCompleted,
		Progress:    r.Progress,
		Priority:    domain.Priority(r.Priority),
		Status:      domain.CardStatus(r.Status),
		Release:     domain.ReleaseState(r.Release),
		SerialNo:    r.SerialNo,
		DueAt:       parseNullTS(r.DueAt),
		CreatedAt:   parseTS(r.CreatedAt),
		UpdatedAt:   parseTS(r.UpdatedAt),
	}
	if r.VersionID.Valid {
		v := r.VersionID.Int64
		c.VersionID = &v
	}
	return c
}

const cardColumns = `c.id, c.category_id, c.name, c.description, c.is_completed, c.progress, c.priority, c.status,
	c.release_state, c.version_id, c.serial_no, c.due_at, c.created_at, c.updated_at`

// CreateCard creates card.
func (s *store) CreateCard(ctx context.Context, c domain.Card) (domain.Card, error) {
	id, err := s.insert(ctx, `
		INSERT INTO cards(
			category_id, name, description, is_completed, progress, priority, status,
			release_state, version_id, serial_no, due_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.CategoryID,
		c.Name,
		c.Description,
		c.IsCompleted,
		c.Progress,
		string(c.Priority),
		string(c.Status),
		string(c.Release),
		nullableID(c.VersionID),
		c.SerialNo,
		nullableTS(c.DueAt),
		ts(c.CreatedAt),
		ts(c.UpdatedAt),
	)
	if err != nil {
		return domain.Card{}, err
	}
	c.ID = id
	return c, nil
}

// UpdateCard updates state for the requested operation.
func (s *store) UpdateCard(ctx context.Context, c domain.Card) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE cards
		SET category_id = ?, name = ?, description = ?, is_completed = ?, progress = ?, priority = ?, status = ?,
		    release_state = ?, version_id = ?, serial_no = ?, due_at = ?, updated_at = ?
		WHERE id = ?
	`,
		c.CategoryID,
		c.Name,
		c.Description,
		c.IsCompleted,
		c.Progress,
		string(c.Priority),
		string(c.Status),
		string(c.Release),
		nullableID(c.VersionID),
		c.SerialNo,
		nullableTS(c.DueAt),
		ts(c.UpdatedAt),
		c.ID,
	)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetCard returns card.
func (s *store) GetCard(ctx context.Context, id int64) (domain.Card, error) {
	var row cardRow
	if err := s.get(ctx, &row, `SELECT `+cardColumns+` FROM cards c WHERE c.id = ?`, id); err != nil {
		return domain.Card{}, fmt.Errorf("card %d: %w", id, err)
	}
	return row.toDomain(), nil
}

// ListCardsByCategory lists cards.
func (s *store) ListCardsByCategory(ctx context.Context, categoryID int64) ([]domain.Card, error) {
	return s.selectCards(ctx, `SELECT `+cardColumns+` FROM cards c WHERE c.category_id = ? ORDER BY c.id ASC`, categoryID)
}

// ListCardsByBoard lists cards.
func (s *store) ListCardsByBoard(ctx context.Context, boardID int64) ([]domain.Card, error) {
	return s.selectCards(ctx, `
		SELECT `+cardColumns+`
		FROM cards c
		JOIN categories cat ON cat.id = c.category_id
		WHERE cat.board_id = ?
		ORDER BY c.id ASC
	`, boardID)
}

// DeleteCard deletes card.
func (s *store) DeleteCard(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM cards WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

func (s *store) selectCards(ctx context.Context, query string, args ...any) ([]domain.Card, error) {
	var rows []cardRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]domain.Card, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

type dependencyRow struct {
	BlockerID int64  `db:"blocker_id"`
	BlockedID int64  `db:"blocked_id"`
	CreatedAt string `db:"created_at"`
}

// CreateDependency creates dependency.
func (s *store) CreateDependency(ctx context.Context, d domain.Dependency) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO card_dependencies(blocker_id, blocked_id, created_at) VALUES (?, ?, ?)
	`, d.BlockerID, d.BlockedID, ts(d.CreatedAt))
	if isUniqueViolation(err) {
		return domain.ErrDependencyExists
	}
	return err
}

// DeleteDependency deletes the edge and reports how many rows it removed.
func (s *store) DeleteDependency(ctx context.Context, blockerID, blockedID int64) (int64, error) {
	res, err := s.q.ExecContext(ctx, `
		DELETE FROM card_dependencies WHERE blocker_id = ? AND blocked_id = ?
	`, blockerID, blockedID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListBlockers lists the cards that block cardID.
func (s *store) ListBlockers(ctx context.Context, cardID int64) ([]domain.Card, error) {
	return s.selectCards(ctx, `
		SELECT `+cardColumns+`
		FROM card_dependencies d
		JOIN cards c ON c.id = d.blocker_id
		WHERE d.blocked_id = ?
		ORDER BY c.id ASC
	`, cardID)
}

// ListBlocked lists the cards cardID blocks.
func (s *store) ListBlocked(ctx context.Context, cardID int64) ([]domain.Card, error) {
	return s.selectCards(ctx, `
		SELECT `+cardColumns+`
		FROM card_dependencies d
		JOIN cards c ON c.id = d.blocked_id
		WHERE d.blocker_id = ?
		ORDER BY c.id ASC
	`, cardID)
}

// ListBoardDependencies lists edges with at least one end on boardID.
func (s *store) ListBoardDependencies(ctx context.Context, boardID int64) ([]domain.Dependency, error) {
	var rows []dependencyRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT DISTINCT d.blocker_id, d.blocked_id, d.created_at
		FROM card_dependencies d
		JOIN cards c ON c.id = d.blocker_id OR c.id = d.blocked_id
		JOIN categories cat ON cat.id = c.category_id
		WHERE cat.board_id = ?
		ORDER BY d.blocker_id ASC, d.blocked_id ASC
	`, boardID); err != nil {
		return nil, err
	}
	out := make([]domain.Dependency, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Dependency{
			BlockerID: row.BlockerID,
			BlockedID: row.BlockedID,
			CreatedAt: parseTS(row.CreatedAt),
		})
	}
	return out, nil
}

// DeleteCardDependencies deletes every edge touching cardID.
func (s *store) DeleteCardDependencies(ctx context.Context, cardID int64) error {
	_, err := s.q.ExecContext(ctx, `
		DELETE FROM card_dependencies WHERE blocker_id = ? OR blocked_id = ?
	`, cardID, cardID)
	return err
}

type checklistItemRow struct {
	ID              int64          `db:"id"`
	CardID          int64          `db:"card_id"`
	Title           string         `db:"title"`
	IsComplete      bool           `db:"is_complete"`
	ConvertedCardID sql.NullInt64  `db:"converted_card_id"`
	DueAt           sql.NullString `db:"due_at"`
	Position        int            `db:"position"`
	CreatedAt       string         `db:"created_at"`
	UpdatedAt       string         `db:"updated_at"`
}

func (r checklistItemRow) toDomain() domain.ChecklistItem {
	item := domain.ChecklistItem{
		ID:         r.ID,
		CardID:     r.CardID,
		Title:      r.Title,
		IsComplete: r.IsComplete,
		DueAt:      parseNullTS(r.DueAt),
		Position:   r.Position,
		CreatedAt:  parseTS(r.CreatedAt),
		UpdatedAt:  parseTS(r.UpdatedAt),
	}
	if r.ConvertedCardID.Valid {
		id := r.ConvertedCardID.Int64
		item.ConvertedCardID = &id
	}
	return item
}

const checklistColumns = `id, card_id, title, is_complete, converted_card_id, due_at, position, created_at, updated_at`

// CreateChecklistItem creates checklist item.
func (s *store) CreateChecklistItem(ctx context.Context, item domain.ChecklistItem) (domain.ChecklistItem, error) {
	id, err := s.insert(ctx, `
		INSERT INTO checklist_items(card_id, title, is_complete, converted_card_id, due_at, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.CardID,
		item.Title,
		item.IsComplete,
		nullableID(item.ConvertedCardID),
		nullableTS(item.DueAt),
		item.Position,
		ts(item.CreatedAt),
		ts(item.UpdatedAt),
	)
	if err != nil {
		return domain.ChecklistItem{}, err
	}
	item.ID = id
	return item, nil
}

// UpdateChecklistItem updates state for the requested operation.
func (s *store) UpdateChecklistItem(ctx context.Context, item domain.ChecklistItem) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE checklist_items
		SET title = ?, is_complete = ?, converted_card_id = ?, due_at = ?, position = ?, updated_at = ?
		WHERE id = ?
	`,
		item.Title,
		item.IsComplete,
		nullableID(item.ConvertedCardID),
		nullableTS(item.DueAt),
		item.Position,
		ts(item.UpdatedAt),
		item.ID,
	)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetChecklistItem returns checklist item.
func (s *store) GetChecklistItem(ctx context.Context, id int64) (domain.ChecklistItem, error) {
	var row checklistItemRow
	if err := s.get(ctx, &row, `SELECT `+checklistColumns+` FROM checklist_items WHERE id = ?`, id); err != nil {
		return domain.ChecklistItem{}, fmt.Errorf("checklist item %d: %w", id, err)
	}
	return row.toDomain(), nil
}

// ListChecklistItems lists a card's items in position order.
func (s *store) ListChecklistItems(ctx context.Context, cardID int64) ([]domain.ChecklistItem, error) {
	var rows []checklistItemRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT `+checklistColumns+` FROM checklist_items WHERE card_id = ? ORDER BY position ASC, id ASC
	`, cardID); err != nil {
		return nil, err
	}
	out := make([]domain.ChecklistItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// FindChecklistItemByConvertedCard returns the item cardID was converted from.
func (s *store) FindChecklistItemByConvertedCard(ctx context.Context, cardID int64) (domain.ChecklistItem, error) {
	var row checklistItemRow
	if err := s.get(ctx, &row, `
		SELECT `+checklistColumns+` FROM checklist_items WHERE converted_card_id = ? LIMIT 1
	`, cardID); err != nil {
		return domain.ChecklistItem{}, err
	}
	return row.toDomain(), nil
}

// DeleteChecklistItem deletes checklist item.
func (s *store) DeleteChecklistItem(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM checklist_items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// DeleteChecklistItems deletes every item of a card.
func (s *store) DeleteChecklistItems(ctx context.Context, cardID int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM checklist_items WHERE card_id = ?`, cardID)
	return err
}

type activityRow struct {
	ID        string `db:"id"`
	CardID    int64  `db:"card_id"`
	Type      string `db:"type"`
	Details   string `db:"details"`
	Actor     string `db:"actor"`
	CreatedAt string `db:"created_at"`
}

// CreateActivity creates activity.
func (s *store) CreateActivity(ctx context.Context, a domain.Activity) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO activities(id, card_id, type, details, actor, created_at) VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.CardID, string(a.Type), a.Details, a.Actor, ts(a.CreatedAt))
	return err
}

// ListActivities lists a card's activities, oldest first.
func (s *store) ListActivities(ctx context.Context, cardID int64) ([]domain.Activity, error) {
	var rows []activityRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT id, card_id, type, details, actor, created_at
		FROM activities
		WHERE card_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, cardID); err != nil {
		return nil, err
	}
	out := make([]domain.Activity, 0, len(rows))
	for _, row := range rows {
		eventType, err := domain.ParseEventType(row.Type)
		if err != nil {
			return nil, fmt.Errorf("activity %s: %w", row.ID, err)
		}
		out = append(out, domain.Activity{
			ID:        row.ID,
			CardID:    row.CardID,
			Type:      eventType,
			Details:   row.Details,
			Actor:     row.Actor,
			CreatedAt: parseTS(row.CreatedAt),
		})
	}
	return out, nil
}

// DeleteActivities deletes a card's activities.
func (s *store) DeleteActivities(ctx context.Context, cardID int64) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM activities WHERE card_id = ?`, cardID)
	return err
}

type versionRow struct {
	ID         int64  `db:"id"`
	BoardID    int64  `db:"board_id"`
	Name       string `db:"name"`
	ReleasedAt string `db:"released_at"`
}

// CreateVersion creates version.
func (s *store) CreateVersion(ctx context.Context, v domain.Version) (domain.Version, error) {
	id, err := s.insert(ctx, `
		INSERT INTO versions(board_id, name, released_at) VALUES (?, ?, ?)
	`, v.BoardID, v.Name, ts(v.ReleasedAt))
	if err != nil {
		return domain.Version{}, err
	}
	v.ID = id
	return v, nil
}

// ListVersions lists a board's versions, newest first.
func (s *store) ListVersions(ctx context.Context, boardID int64) ([]domain.Version, error) {
	var rows []versionRow
	if err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT id, board_id, name, released_at FROM versions WHERE board_id = ? ORDER BY id DESC
	`, boardID); err != nil {
		return nil, err
	}
	out := make([]domain.Version, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Version{
			ID:         row.ID,
			BoardID:    row.BoardID,
			Name:       row.Name,
			ReleasedAt: parseTS(row.ReleasedAt),
		})
	}
	return out, nil
}

// UpsertBoardMember subscribes a user to a board.
func (s *store) UpsertBoardMember(ctx context.Context, m domain.BoardMember) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO board_members(board_id, email, name) VALUES (?, ?, ?)
		ON CONFLICT(board_id, email) DO UPDATE SET name = excluded.name
	`, m.BoardID, strings.ToLower(strings.TrimSpace(m.Email)), strings.TrimSpace(m.Name))
	return err
}

// ListBoardMembers lists the users subscribed to a board.
func (s *store) ListBoardMembers(ctx context.Context, boardID int64) ([]domain.BoardMember, error) {
	var rows []struct {
		BoardID int64  `db:"board_id"`
		Email   string `db:"email"`
		Name    string `db:"name"`
	}
	if err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT board_id, email, name FROM board_members WHERE board_id = ? ORDER BY email ASC
	`, boardID); err != nil {
		return nil, err
	}
	out := make([]domain.BoardMember, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.BoardMember{BoardID: row.BoardID, Email: row.Email, Name: row.Name})
	}
	return out, nil
}

// SetNotificationPreferences stores a user's notification flags, replacing earlier ones.
func (s *store) SetNotificationPreferences(ctx context.Context, email string, prefs map[string]bool) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO user_preferences(email, prefs_json) VALUES (?, ?)
		ON CONFLICT(email) DO UPDATE SET prefs_json = excluded.prefs_json
	`, strings.ToLower(strings.TrimSpace(email)), string(raw))
	return err
}

// NotificationPreferences returns a user's flags. A user without stored flags gets an empty map.
func (s *store) NotificationPreferences(ctx context.Context, email string) (map[string]bool, error) {
	var raw string
	err := s.get(ctx, &raw, `SELECT prefs_json FROM user_preferences WHERE email = ?`, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, domain.ErrNotFound) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}
	prefs := map[string]bool{}
	if strings.TrimSpace(raw) == "" {
		return prefs, nil
	}
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return nil, fmt.Errorf("decode preferences for %s: %w", email, err)
	}
	return prefs, nil
}

// SaveNotification stores a notification and returns it with its id.
func (s *store) SaveNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	id, err := s.insert(ctx, `
		INSERT INTO notifications(email, card_id, type, message, created_at) VALUES (?, ?, ?, ?, ?)
	`, n.Email, n.CardID, string(n.Type), n.Message, ts(n.CreatedAt))
	if err != nil {
		return domain.Notification{}, err
	}
	n.ID = id
	return n, nil
}

// ListNotifications returns a user's most recent notifications, newest first.
func (s *store) ListNotifications(ctx context.Context, email string, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []struct {
		ID        int64  `db:"id"`
		Email     string `db:"email"`
		CardID    int64  `db:"card_id"`
		Type      string `db:"type"`
		Message   string `db:"message"`
		CreatedAt string `db:"created_at"`
	}
	if err := sqlx.SelectContext(ctx, s.q, &rows, `
		SELECT id, email, card_id, type, message, created_at
		FROM notifications
		WHERE email = ?
		ORDER BY id DESC
		LIMIT ?
	`, strings.ToLower(strings.TrimSpace(email)), limit); err != nil {
		return nil, err
	}
	out := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Notification{
			ID:        row.ID,
			Email:     row.Email,
			CardID:    row.CardID,
			Type:      domain.EventType(row.Type),
			Message:   row.Message,
			CreatedAt: parseTS(row.CreatedAt),
		})
	}
	return out, nil
}

// get loads one row into dest and maps a miss to app.ErrNotFound.
func (s *store) get(ctx context.Context, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, s.q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return app.ErrNotFound
	}
	return err
}

// insert runs an INSERT and returns the new row id.
func (s *store) insert(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// translateNoRows maps an update or delete that touched nothing to app.ErrNotFound.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableTS(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func parseNullTS(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	ts := parseTS(v.String)
	return &ts
}
