package retrieval

import (
	"strings"
	"unicode/utf8"

	"github.com/deidaraiorek/docgraph/internal/storage"
)

// Anchor returns the longest ellipsis-delimited fragment of a search
// snippet, with the match markup removed. The first fragment wins a tie.
// A snippet with no marked match (a page that matched on its title only)
// has no anchor.
func Anchor(snippet string) string {
	if !strings.Contains(snippet, storage.MatchOpen) {
		return ""
	}
	var best string
	for _, part := range strings.Split(snippet, storage.Ellipsis) {
		part = strings.TrimSpace(storage.StripMarkup(part))
		if len(part) > len(best) {
			best = part
		}
	}
	return best
}

// Excerpt cuts a window of at most window bytes from body. When the snippet
// anchor occurs in body the window starts three quarters of a window before
// it, so the anchor lands in the last quarter and the text leading up to the
// match is kept. Without an anchor the window starts leadOffset bytes in.
func Excerpt(body, snippet string, window, leadOffset int) string {
	if window <= 0 || len(body) <= window {
		return body
	}

	start := -1
	if anchor := Anchor(snippet); anchor != "" {
		if p := strings.Index(body, anchor); p >= 0 {
			start = max(0, p-window*3/4)
		}
	}
	if start < 0 {
		start = max(0, leadOffset)
	}
	start = min(start, len(body)-window)

	end := start + window
	for start < end && !utf8.RuneStart(body[start]) {
		start++
	}
	for end > start && end < len(body) && !utf8.RuneStart(body[end]) {
		end--
	}
	return body[start:end]
}
