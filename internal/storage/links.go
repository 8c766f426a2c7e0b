package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// DiscoveredLink is an outbound link found on a committed page. The target
// may never be visited (scope rejection, caps), in which case it never
// becomes an edge.
type DiscoveredLink struct {
	Locator  string
	StableID string
	Text     string
}

// Link is an edge joined to its target page.
type Link struct {
	ToID     int64
	Title    string
	Locator  string
	LinkText string
}

// AddEdge records a cross reference between two committed pages. Adding the
// same pair again replaces the link text.
func (s *Store) AddEdge(ctx context.Context, fromID, toID int64, linkText string) error {
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO edges (from_id, to_id, link_text) VALUES (?, ?, ?)
			ON CONFLICT(from_id, to_id) DO UPDATE SET link_text = excluded.link_text
		`, fromID, toID, linkText)
		return err
	})
	return wrap("add edge", err)
}

// RecordLinks replaces the discovered links of a page and turns every link
// whose target is already committed into an edge.
func (s *Store) RecordLinks(ctx context.Context, fromID int64, links []DiscoveredLink) error {
	err := s.runTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM discovered_links WHERE from_id = ?", fromID); err != nil {
			return fmt.Errorf("clear discovered links: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO discovered_links (from_id, to_locator, to_stable_id, link_text, position)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(from_id, to_locator) DO UPDATE SET
				to_stable_id = excluded.to_stable_id,
				link_text = excluded.link_text
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, link := range links {
			if link.Locator == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, fromID, link.Locator, nullString(link.StableID), link.Text, i); err != nil {
				return fmt.Errorf("insert discovered link %s: %w", link.Locator, err)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO edges (from_id, to_id, link_text)
			SELECT d.from_id, p.id, d.link_text
			FROM discovered_links d
			JOIN pages p ON p.locator = d.to_locator
				OR (d.to_stable_id IS NOT NULL AND p.stable_id = d.to_stable_id)
			WHERE d.from_id = ? AND p.id <> d.from_id
			ORDER BY d.position
			ON CONFLICT(from_id, to_id) DO UPDATE SET link_text = excluded.link_text
		`, fromID)
		if err != nil {
			return fmt.Errorf("resolve edges: %w", err)
		}
		return nil
	})
	return wrap("record links", err)
}

// resolvePendingEdges links every page that already discovered this one.
func resolvePendingEdges(ctx context.Context, tx *sql.Tx, id int64, locator, stableID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO edges (from_id, to_id, link_text)
		SELECT d.from_id, ?, d.link_text
		FROM discovered_links d
		WHERE (d.to_locator = ? OR (? <> '' AND d.to_stable_id = ?))
			AND d.from_id <> ?
		ORDER BY d.from_id, d.position
		ON CONFLICT(from_id, to_id) DO UPDATE SET link_text = excluded.link_text
	`, id, locator, stableID, stableID, id)
	if err != nil {
		return fmt.Errorf("resolve pending edges: %w", err)
	}
	return nil
}

// DiscoveredLinks returns the outbound links recorded for a page in the
// order they appeared on it.
func (s *Store) DiscoveredLinks(ctx context.Context, fromID int64) ([]DiscoveredLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT to_locator, to_stable_id, link_text
		FROM discovered_links
		WHERE from_id = ?
		ORDER BY position
	`, fromID)
	if err != nil {
		return nil, wrap("discovered links", err)
	}
	defer rows.Close()

	links := make([]DiscoveredLink, 0)
	for rows.Next() {
		var (
			link     DiscoveredLink
			stableID sql.NullString
		)
		if err := rows.Scan(&link.Locator, &stableID, &link.Text); err != nil {
			return nil, wrap("discovered links", err)
		}
		link.StableID = stableID.String
		links = append(links, link)
	}
	return links, wrap("discovered links", rows.Err())
}

// OutboundLinks returns the edges leaving a page, ordered by target id.
func (s *Store) OutboundLinks(ctx context.Context, fromID int64) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.to_id, p.title, p.locator, e.link_text
		FROM edges e
		JOIN pages p ON p.id = e.to_id
		WHERE e.from_id = ?
		ORDER BY e.to_id
	`, fromID)
	if err != nil {
		return nil, wrap("outbound links", err)
	}
	defer rows.Close()

	links := make([]Link, 0)
	for rows.Next() {
		var link Link
		if err := rows.Scan(&link.ToID, &link.Title, &link.Locator, &link.LinkText); err != nil {
			return nil, wrap("outbound links", err)
		}
		links = append(links, link)
	}
	return links, wrap("outbound links", rows.Err())
}
