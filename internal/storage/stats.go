package storage

import (
	"context"
	"database/sql"
	"time"
)

type DepthCount struct {
	Depth int `json:"depth"`
	Count int `json:"count"`
}

type RecentPage struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Locator    string    `json:"locator"`
	Depth      int       `json:"depth"`
	Status     Status    `json:"status"`
	IngestedAt time.Time `json:"ingested_at"`
}

type Stats struct {
	Pages    int          `json:"pages"`
	Edges    int          `json:"edges"`
	MaxDepth int          `json:"max_depth"`
	Errors   int          `json:"errors"`
	Pending  int          `json:"pending_links"`
	ByDepth  []DepthCount `json:"by_depth"`
	Recent   []RecentPage `json:"recent"`
}

// TreeNode is one page in the nested hierarchy returned by Tree.
type TreeNode struct {
	ID       int64       `json:"id"`
	Title    string      `json:"title"`
	Locator  string      `json:"locator"`
	Depth    int         `json:"depth"`
	Children []*TreeNode `json:"children"`
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM pages),
			(SELECT COUNT(*) FROM edges),
			(SELECT COALESCE(MAX(depth), 0) FROM pages),
			(SELECT COUNT(*) FROM pages WHERE status = 'error'),
			(SELECT COUNT(*) FROM discovered_links d
				WHERE NOT EXISTS (
					SELECT 1 FROM pages p
					WHERE p.locator = d.to_locator
						OR (d.to_stable_id IS NOT NULL AND p.stable_id = d.to_stable_id)))
	`).Scan(&stats.Pages, &stats.Edges, &stats.MaxDepth, &stats.Errors, &stats.Pending)
	if err != nil {
		return nil, wrap("stats", err)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT depth, COUNT(*) FROM pages GROUP BY depth ORDER BY depth")
	if err != nil {
		return nil, wrap("stats", err)
	}
	stats.ByDepth = make([]DepthCount, 0)
	for rows.Next() {
		var dc DepthCount
		if err := rows.Scan(&dc.Depth, &dc.Count); err != nil {
			rows.Close()
			return nil, wrap("stats", err)
		}
		stats.ByDepth = append(stats.ByDepth, dc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrap("stats", err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT id, title, locator, depth, status, ingested_at
		FROM pages
		ORDER BY ingested_at DESC, id DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, wrap("stats", err)
	}
	defer rows.Close()

	stats.Recent = make([]RecentPage, 0)
	for rows.Next() {
		var (
			page   RecentPage
			status string
		)
		if err := rows.Scan(&page.ID, &page.Title, &page.Locator, &page.Depth, &status, &page.IngestedAt); err != nil {
			return nil, wrap("stats", err)
		}
		page.Status = Status(status)
		stats.Recent = append(stats.Recent, page)
	}
	return &stats, wrap("stats", rows.Err())
}

// Tree returns the hierarchy rooted at every parentless page, children in
// first-discovery order. A negative maxDepth means no limit.
func (s *Store) Tree(ctx context.Context, maxDepth int) ([]*TreeNode, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if maxDepth < 0 {
		rows, err = s.db.QueryContext(ctx, "SELECT id, title, locator, depth, parent_id FROM pages ORDER BY id")
	} else {
		rows, err = s.db.QueryContext(ctx,
			"SELECT id, title, locator, depth, parent_id FROM pages WHERE depth <= ? ORDER BY id", maxDepth)
	}
	if err != nil {
		return nil, wrap("tree", err)
	}
	defer rows.Close()

	nodes := make(map[int64]*TreeNode)
	roots := make([]*TreeNode, 0)
	for rows.Next() {
		var (
			node     TreeNode
			parentID sql.NullInt64
		)
		if err := rows.Scan(&node.ID, &node.Title, &node.Locator, &node.Depth, &parentID); err != nil {
			return nil, wrap("tree", err)
		}
		node.Children = make([]*TreeNode, 0)
		nodes[node.ID] = &node

		// ids grow in discovery order, so a parent row is always read first
		if parent, ok := nodes[parentID.Int64]; parentID.Valid && ok {
			parent.Children = append(parent.Children, &node)
		} else {
			roots = append(roots, &node)
		}
	}
	return roots, wrap("tree", rows.Err())
}
