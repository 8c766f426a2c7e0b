package tokenizer

import (
	"strings"
	"unicode"
)

// Span is one word of the source text. Start and End are byte offsets into
// the original string, so text[Start:End] is the word as written.
type Span struct {
	Start int
	End   int
	Word  string
}

type Tokenizer struct {
	StopWords map[string]bool
	minLength int
	maxLength int
}

func NewTokenizer() *Tokenizer {
	return &Tokenizer{
		StopWords: defaultStopWords(),
		minLength: 2,
		maxLength: 50,
	}
}

// Tokenize returns the lowercased index terms of text, with stop words and
// noise tokens removed.
func (t *Tokenizer) Tokenize(text string) []string {
	tokens := make([]string, 0)

	for _, span := range t.Spans(text) {
		if t.Keep(span.Word) {
			tokens = append(tokens, span.Word)
		}
	}
	return tokens
}

func (t *Tokenizer) TokenizeToFrequency(text string) map[string]int {
	tokens := t.Tokenize(text)
	result := make(map[string]int)

	for _, token := range tokens {
		result[token]++
	}
	return result
}

// Spans splits text into runs of ASCII letters and digits. Nothing is
// filtered; callers decide which words count.
func (t *Tokenizer) Spans(text string) []Span {
	var spans []Span
	start := -1

	for i := 0; i < len(text); i++ {
		if isWordByte(text[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			spans = append(spans, Span{Start: start, End: i, Word: strings.ToLower(text[start:i])})
			start = -1
		}
	}
	if start >= 0 {
		spans = append(spans, Span{Start: start, End: len(text), Word: strings.ToLower(text[start:])})
	}
	return spans
}

// Keep reports whether a lowercased word is an index term.
func (t *Tokenizer) Keep(word string) bool {
	if word == "" {
		return false
	}
	if t.StopWords[word] {
		return false
	}
	if len(word) < t.minLength || len(word) > t.maxLength {
		return false
	}
	return t.IsValidToken(word)
}

func (t *Tokenizer) IsStopWord(word string) bool {
	return t.StopWords[strings.ToLower(word)]
}

// IsValidToken accepts words and plain numbers (section numbers matter in
// regulation text) and rejects identifiers where digits outnumber letters.
func (t *Tokenizer) IsValidToken(word string) bool {
	alphaCount := 0
	digitCount := 0

	for _, r := range word {
		if unicode.IsLetter(r) {
			alphaCount++
		} else if unicode.IsDigit(r) {
			digitCount++
		}
	}
	if alphaCount == 0 {
		return digitCount > 0 && digitCount <= 6
	}
	if digitCount > alphaCount {
		return false
	}
	return true
}

func isWordByte(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func defaultStopWords() map[string]bool {
	words := []string{
		// Articles
		"a", "an", "the",

		// Pronouns
		"i", "me", "my", "myself", "we", "our", "ours", "ourselves",
		"you", "your", "yours", "yourself", "yourselves",
		"he", "him", "his", "himself", "she", "her", "hers", "herself",
		"it", "its", "itself", "they", "them", "their", "theirs", "themselves",

		// Prepositions
		"of", "at", "by", "for", "with", "about", "against", "between",
		"into", "through", "during", "before", "after", "above", "below",
		"to", "from", "up", "down", "in", "out", "on", "off", "over", "under",

		// Conjunctions
		"and", "or", "but", "if", "while", "because", "as", "until",
		"than", "so", "nor", "yet",

		// Common verbs
		"is", "am", "are", "was", "were", "be", "been", "being",
		"have", "has", "had", "having",
		"do", "does", "did", "doing",
		"will", "would", "should", "could", "can", "may", "might", "must",

		// Other common words
		"this", "that", "these", "those",
		"what", "which", "who", "whom", "whose", "when", "where", "why", "how",
		"all", "each", "every", "both", "few", "more", "most", "other", "some", "such",
		"no", "not", "only", "own", "same", "then", "there", "too", "very",
	}

	stopWords := make(map[string]bool, len(words))
	for _, word := range words {
		stopWords[word] = true
	}
	return stopWords
}
