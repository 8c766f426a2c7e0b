package textprocessor

import (
	"strings"
)

// DefaultAcronyms expands regulatory shorthand into the wording used in the
// indexed documents.
var DefaultAcronyms = map[string]string{
	"ghg":  "greenhouse gas",
	"zev":  "zero emission vehicle",
	"lcfs": "low carbon fuel standard",
	"carb": "air resources board",
	"voc":  "volatile organic compound",
	"nox":  "oxides of nitrogen",
	"pm":   "particulate matter",
	"ccr":  "california code regulations",
}

// conversational filler that is not in the index stop list but never
// carries meaning in a question.
var queryFiller = map[string]bool{
	"say": true, "says": true, "said": true, "tell": true, "show": true,
	"explain": true, "describe": true, "please": true, "give": true, "list": true,
}

// PrepareQuery turns a natural-language question into stemmed search terms.
// Terms are deduplicated and keep the order in which they first appear.
// If every word is filtered out the raw words are returned unstemmed so the
// search still has something to match.
func (tp *TextProcessor) PrepareQuery(text string, acronyms map[string]string) []string {
	if acronyms == nil {
		acronyms = DefaultAcronyms
	}

	spans := tp.tokenizer.Spans(text)
	raw := make([]string, 0, len(spans))
	words := make([]string, 0, len(spans))

	for _, span := range spans {
		raw = append(raw, span.Word)

		if expansion, ok := acronyms[span.Word]; ok {
			words = append(words, span.Word)
			words = append(words, strings.Fields(strings.ToLower(expansion))...)
			continue
		}
		if len(span.Word) <= 2 || queryFiller[span.Word] {
			continue
		}
		words = append(words, span.Word)
	}

	seen := make(map[string]bool)
	terms := make([]string, 0, len(words))
	for _, word := range words {
		if tp.tokenizer.IsStopWord(word) || !tp.tokenizer.IsValidToken(word) {
			continue
		}
		term := tp.stemmer.Stem(word)
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
	}

	if len(terms) == 0 {
		for _, word := range raw {
			if !seen[word] {
				seen[word] = true
				terms = append(terms, word)
			}
		}
	}
	return terms
}
