package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deidaraiorek/docgraph/internal/textprocessor"
)

type Status string

const (
	StatusOK    Status = "ok"
	StatusEmpty Status = "empty"
	StatusError Status = "error"
)

type Page struct {
	ID         int64
	Locator    string
	StableID   string
	Title      string
	Body       string
	Depth      int
	ParentID   *int64
	Status     Status
	IngestedAt time.Time
}

// PageSummary is a page without its body, used by traversal queries.
type PageSummary struct {
	ID       int64
	Locator  string
	StableID string
	Title    string
	Depth    int
	ParentID *int64
	Status   Status
}

// PageInput is what the crawler commits for one visited node. Depth and
// ParentID only take effect when the page is first inserted.
type PageInput struct {
	Locator  string
	StableID string
	Title    string
	Body     string
	Depth    int
	ParentID *int64
	Status   Status
}

const summaryColumns = "id, locator, stable_id, title, depth, parent_id, status"

// UpsertPage commits a page and its index entry as one unit. A page already
// stored under the same stable id (or, without one, the same locator) keeps
// its id, depth and parent; only its content, status and ingestion time are
// replaced. Pending discovered links that point at the page become edges in
// the same transaction.
func (s *Store) UpsertPage(ctx context.Context, in PageInput) (int64, bool, error) {
	if in.Locator == "" {
		return 0, false, wrap("upsert page", fmt.Errorf("%w: empty locator", ErrInvalidPage))
	}
	if in.Status == "" {
		in.Status = StatusOK
	}

	terms := s.tp.IndexPage(in.Title, in.Body, textprocessor.DefaultWeights)

	var (
		id      int64
		created bool
	)

	err := s.runTx(ctx, func(tx *sql.Tx) error {
		id, created = 0, false
		now := time.Now().UTC()

		existing, err := lookupID(ctx, tx, in.StableID, in.Locator)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		if err == nil {
			id = existing
			_, err = tx.ExecContext(ctx, `
				UPDATE pages
				SET title = ?, body = ?, status = ?, ingested_at = ?,
				    stable_id = COALESCE(stable_id, ?)
				WHERE id = ?
			`, in.Title, in.Body, string(in.Status), now, nullString(in.StableID), id)
			if err != nil {
				return fmt.Errorf("update page: %w", err)
			}
		} else {
			if err := checkTreePosition(ctx, tx, in.Depth, in.ParentID); err != nil {
				return err
			}
			result, err := tx.ExecContext(ctx, `
				INSERT INTO pages (locator, stable_id, title, body, depth, parent_id, status, ingested_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, in.Locator, nullString(in.StableID), in.Title, in.Body, in.Depth, nullInt64(in.ParentID), string(in.Status), now)
			if err != nil {
				return fmt.Errorf("insert page: %w", err)
			}
			if id, err = result.LastInsertId(); err != nil {
				return err
			}
			created = true
		}

		if err := writePostings(ctx, tx, id, terms); err != nil {
			return err
		}
		return resolvePendingEdges(ctx, tx, id, in.Locator, in.StableID)
	})
	if err != nil {
		return 0, false, wrap("upsert page", err)
	}
	return id, created, nil
}

func lookupID(ctx context.Context, tx *sql.Tx, stableID, locator string) (int64, error) {
	var id int64
	if stableID != "" {
		err := tx.QueryRowContext(ctx, "SELECT id FROM pages WHERE stable_id = ?", stableID).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}
	}

	err := tx.QueryRowContext(ctx, "SELECT id FROM pages WHERE locator = ?", locator).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return id, err
}

func checkTreePosition(ctx context.Context, tx *sql.Tx, depth int, parentID *int64) error {
	if parentID == nil {
		if depth != 0 {
			return fmt.Errorf("%w: root page must have depth 0, got %d", ErrInvalidPage, depth)
		}
		return nil
	}

	var parentDepth int
	err := tx.QueryRowContext(ctx, "SELECT depth FROM pages WHERE id = ?", *parentID).Scan(&parentDepth)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: parent %d does not exist", ErrInvalidPage, *parentID)
	}
	if err != nil {
		return err
	}
	if depth != parentDepth+1 {
		return fmt.Errorf("%w: depth %d under parent at depth %d", ErrInvalidPage, depth, parentDepth)
	}
	return nil
}

func (s *Store) GetPage(ctx context.Context, id int64) (*Page, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, locator, stable_id, title, body, depth, parent_id, status, ingested_at
		FROM pages WHERE id = ?
	`, id)

	var (
		page     Page
		stableID sql.NullString
		parentID sql.NullInt64
		status   string
	)
	err := row.Scan(&page.ID, &page.Locator, &stableID, &page.Title, &page.Body,
		&page.Depth, &parentID, &status, &page.IngestedAt)
	if err == sql.ErrNoRows {
		return nil, wrap("get page", ErrNotFound)
	}
	if err != nil {
		return nil, wrap("get page", err)
	}

	page.StableID = stableID.String
	page.Status = Status(status)
	if parentID.Valid {
		page.ParentID = &parentID.Int64
	}
	return &page, nil
}

func (s *Store) PageByLocator(ctx context.Context, locator string) (*PageSummary, error) {
	return s.summaryWhere(ctx, "page by locator", "locator = ?", locator)
}

func (s *Store) PageByStableID(ctx context.Context, stableID string) (*PageSummary, error) {
	return s.summaryWhere(ctx, "page by stable id", "stable_id = ?", stableID)
}

// Lookup finds a committed page the way UpsertPage deduplicates: by stable
// id when one is given, otherwise by locator.
func (s *Store) Lookup(ctx context.Context, stableID, locator string) (*PageSummary, error) {
	if stableID != "" {
		page, err := s.PageByStableID(ctx, stableID)
		if !errors.Is(err, ErrNotFound) {
			return page, err
		}
	}
	return s.PageByLocator(ctx, locator)
}

// FindByTitle returns pages whose title contains phrase, ignoring case,
// shortest title first.
func (s *Store) FindByTitle(ctx context.Context, phrase string, limit int) ([]PageSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	pattern := "%" + escapeLike(strings.TrimSpace(phrase)) + "%"

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+summaryColumns+` FROM pages
		WHERE title LIKE ? ESCAPE '\'
		ORDER BY length(title), id
		LIMIT ?
	`, pattern, limit)
	if err != nil {
		return nil, wrap("find by title", err)
	}
	pages, err := scanSummaries(rows)
	return pages, wrap("find by title", err)
}

func (s *Store) summaryWhere(ctx context.Context, op, where string, args ...any) (*PageSummary, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+summaryColumns+" FROM pages WHERE "+where, args...)
	page, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, wrap(op, ErrNotFound)
	}
	if err != nil {
		return nil, wrap(op, err)
	}
	return page, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (*PageSummary, error) {
	var (
		page     PageSummary
		stableID sql.NullString
		parentID sql.NullInt64
		status   string
	)
	if err := row.Scan(&page.ID, &page.Locator, &stableID, &page.Title, &page.Depth, &parentID, &status); err != nil {
		return nil, err
	}
	page.StableID = stableID.String
	page.Status = Status(status)
	if parentID.Valid {
		page.ParentID = &parentID.Int64
	}
	return &page, nil
}

func scanSummaries(rows *sql.Rows) ([]PageSummary, error) {
	defer rows.Close()

	pages := make([]PageSummary, 0)
	for rows.Next() {
		page, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *page)
	}
	return pages, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
