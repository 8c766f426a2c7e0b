package storage

import (
	"context"
)

// maxAncestors bounds the ancestor walk so a corrupted parent chain cannot
// loop forever.
const maxAncestors = 1000

// ChildrenOf returns the direct children of a page in first-discovery order.
func (s *Store) ChildrenOf(ctx context.Context, id int64) ([]PageSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+summaryColumns+" FROM pages WHERE parent_id = ? ORDER BY id", id)
	if err != nil {
		return nil, wrap("children of", err)
	}
	pages, err := scanSummaries(rows)
	return pages, wrap("children of", err)
}

// ParentOf returns the parent of a page, or nil for the root.
func (s *Store) ParentOf(ctx context.Context, id int64) (*PageSummary, error) {
	page, err := s.summaryWhere(ctx, "parent of", "id = ?", id)
	if err != nil {
		return nil, err
	}
	if page.ParentID == nil {
		return nil, nil
	}
	return s.summaryWhere(ctx, "parent of", "id = ?", *page.ParentID)
}

// SiblingsOf returns the other children of the page's parent. The root has
// no siblings.
func (s *Store) SiblingsOf(ctx context.Context, id int64) ([]PageSummary, error) {
	if _, err := s.summaryWhere(ctx, "siblings of", "id = ?", id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+summaryColumns+` FROM pages
		WHERE parent_id = (SELECT parent_id FROM pages WHERE id = ?)
			AND id <> ?
		ORDER BY id
	`, id, id)
	if err != nil {
		return nil, wrap("siblings of", err)
	}
	pages, err := scanSummaries(rows)
	return pages, wrap("siblings of", err)
}

// AncestorPathToRoot returns the chain from the root down to the page itself.
func (s *Store) AncestorPathToRoot(ctx context.Context, id int64) ([]PageSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH RECURSIVE chain(id, parent_id, hops) AS (
			SELECT id, parent_id, 0 FROM pages WHERE id = ?
			UNION ALL
			SELECT p.id, p.parent_id, c.hops + 1
			FROM pages p
			JOIN chain c ON p.id = c.parent_id
			WHERE c.hops < ?
		)
		SELECT p.id, p.locator, p.stable_id, p.title, p.depth, p.parent_id, p.status
		FROM chain c
		JOIN pages p ON p.id = c.id
		ORDER BY c.hops DESC
	`, id, maxAncestors)
	if err != nil {
		return nil, wrap("ancestor path", err)
	}
	pages, err := scanSummaries(rows)
	if err != nil {
		return nil, wrap("ancestor path", err)
	}
	if len(pages) == 0 {
		return nil, wrap("ancestor path", ErrNotFound)
	}
	return pages, nil
}
