package storage

import (
	"sort"
	"strings"
)

const (
	snippetFragments = 3
	snippetTokens    = 32
	snippetLead      = 4

	Ellipsis  = "..."
	MatchOpen = "<b>"
	MatchEnd  = "</b>"
)

type fragment struct {
	start, end int
}

// snippet picks up to three non-overlapping runs of at most 32 words from
// body, preferring runs that cover the most distinct query terms. Fragment
// text is copied verbatim from body so that, with the markup removed, it can
// be located in the body again.
func (s *Store) snippet(body string, terms map[string]bool) string {
	spans := s.tp.Tokenizer().Spans(body)
	if len(spans) == 0 {
		return ""
	}

	matched := make([]string, len(spans))
	var positions []int
	for i, span := range spans {
		if !s.tp.Tokenizer().Keep(span.Word) {
			continue
		}
		if stem := s.tp.Stem(span.Word); terms[stem] {
			matched[i] = stem
			positions = append(positions, i)
		}
	}

	var chosen []fragment
	if len(positions) == 0 {
		chosen = []fragment{{start: 0, end: min(snippetTokens, len(spans))}}
	} else {
		chosen = pickFragments(positions, matched, len(spans))
	}

	var b strings.Builder
	for i, f := range chosen {
		if f.start > 0 || i > 0 {
			b.WriteString(Ellipsis)
		}
		for k := f.start; k < f.end; k++ {
			if k > f.start {
				b.WriteString(body[spans[k-1].End:spans[k].Start])
			}
			word := body[spans[k].Start:spans[k].End]
			if matched[k] != "" {
				b.WriteString(MatchOpen)
				b.WriteString(word)
				b.WriteString(MatchEnd)
			} else {
				b.WriteString(word)
			}
		}
	}
	if last := chosen[len(chosen)-1]; last.end < len(spans) {
		b.WriteString(Ellipsis)
	}
	return b.String()
}

func pickFragments(positions []int, matched []string, total int) []fragment {
	type candidate struct {
		fragment
		score int
	}

	candidates := make([]candidate, 0, len(positions))
	for _, pos := range positions {
		start := pos - snippetLead
		if start > total-snippetTokens {
			start = total - snippetTokens
		}
		if start < 0 {
			start = 0
		}
		end := min(start+snippetTokens, total)

		distinct := make(map[string]bool)
		hits := 0
		for k := start; k < end; k++ {
			if matched[k] != "" {
				distinct[matched[k]] = true
				hits++
			}
		}
		candidates = append(candidates, candidate{
			fragment: fragment{start: start, end: end},
			score:    len(distinct)*100 + hits,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].start < candidates[j].start
	})

	var chosen []fragment
	for _, c := range candidates {
		if len(chosen) == snippetFragments {
			break
		}
		overlaps := false
		for _, f := range chosen {
			if c.start < f.end && f.start < c.end {
				overlaps = true
				break
			}
		}
		if !overlaps {
			chosen = append(chosen, c.fragment)
		}
	}

	sort.Slice(chosen, func(i, j int) bool { return chosen[i].start < chosen[j].start })
	return chosen
}

// StripMarkup removes the match markers from a snippet fragment.
func StripMarkup(s string) string {
	return strings.NewReplacer(MatchOpen, "", MatchEnd, "").Replace(s)
}
