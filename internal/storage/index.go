package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/deidaraiorek/docgraph/internal/textprocessor"
)

// writePostings replaces the index entry of a page. It must run in the same
// transaction as the page write.
func writePostings(ctx context.Context, tx *sql.Tx, pageID int64, terms textprocessor.PageTerms) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM postings WHERE page_id = ?", pageID); err != nil {
		return fmt.Errorf("clear postings: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO postings (term, page_id, tf) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for term, tf := range terms.Freq {
		if _, err := stmt.ExecContext(ctx, term, pageID, tf); err != nil {
			return fmt.Errorf("insert posting %q: %w", term, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO doc_stats (page_id, doc_length) VALUES (?, ?)
		ON CONFLICT(page_id) DO UPDATE SET doc_length = excluded.doc_length
	`, pageID, terms.Length)
	if err != nil {
		return fmt.Errorf("save doc stats: %w", err)
	}
	return nil
}
