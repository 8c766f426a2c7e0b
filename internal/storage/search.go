package storage

import (
	"context"
	"math"
	"sort"
	"strings"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// SearchHit is one ranked lexical match. Snippet holds up to three body
// fragments with matched words wrapped in <b></b> and truncation marked by
// "...".
type SearchHit struct {
	ID      int64   `json:"id"`
	Title   string  `json:"title"`
	Locator string  `json:"url"`
	Depth   int     `json:"depth"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

type scoredDoc struct {
	id    int64
	score float64
}

// LexicalSearch ranks pages against stemmed query terms with Okapi BM25.
// Terms are OR-ed: a page matching any term is a candidate. Equal scores
// are ordered by page id.
func (s *Store) LexicalSearch(ctx context.Context, terms []string, limit int) ([]SearchHit, error) {
	terms = uniqueTerms(terms)
	if len(terms) == 0 || limit <= 0 {
		return []SearchHit{}, nil
	}

	var (
		totalDocs int
		avgLength float64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(AVG(doc_length), 0) FROM doc_stats",
	).Scan(&totalDocs, &avgLength)
	if err != nil {
		return nil, wrap("lexical search", err)
	}
	if totalDocs == 0 {
		return []SearchHit{}, nil
	}
	if avgLength <= 0 {
		avgLength = 1
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(terms)), ",")
	args := make([]any, len(terms))
	for i, term := range terms {
		args[i] = term
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.term, p.page_id, p.tf, d.doc_length
		FROM postings p
		JOIN doc_stats d ON d.page_id = p.page_id
		WHERE p.term IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return nil, wrap("lexical search", err)
	}

	type posting struct {
		pageID    int64
		tf        int
		docLength int
	}
	byTerm := make(map[string][]posting)
	for rows.Next() {
		var (
			term string
			p    posting
		)
		if err := rows.Scan(&term, &p.pageID, &p.tf, &p.docLength); err != nil {
			rows.Close()
			return nil, wrap("lexical search", err)
		}
		byTerm[term] = append(byTerm[term], p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrap("lexical search", err)
	}

	scores := make(map[int64]float64)
	n := float64(totalDocs)
	for _, postings := range byTerm {
		df := float64(len(postings))
		idf := math.Log(1 + (n-df+0.5)/(df+0.5))
		for _, p := range postings {
			tf := float64(p.tf)
			norm := 1 - bm25B + bm25B*float64(p.docLength)/avgLength
			scores[p.pageID] += idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
		}
	}

	ranked := make([]scoredDoc, 0, len(scores))
	for id, score := range scores {
		ranked = append(ranked, scoredDoc{id: id, score: score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	termSet := make(map[string]bool, len(terms))
	for _, term := range terms {
		termSet[term] = true
	}

	hits := make([]SearchHit, 0, len(ranked))
	for _, doc := range ranked {
		page, err := s.GetPage(ctx, doc.id)
		if err != nil {
			return nil, wrap("lexical search", err)
		}
		hits = append(hits, SearchHit{
			ID:      page.ID,
			Title:   page.Title,
			Locator: page.Locator,
			Depth:   page.Depth,
			Score:   doc.score,
			Snippet: s.snippet(page.Body, termSet),
		})
	}
	return hits, nil
}

func uniqueTerms(terms []string) []string {
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		out = append(out, term)
	}
	return out
}
