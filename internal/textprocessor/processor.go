package textprocessor

import (
	"github.com/deidaraiorek/docgraph/internal/tokenizer"
)

// TextProcessor turns page and question text into stemmed index terms. The
// store uses one instance for postings and for snippet matching, so both
// sides always agree on a word's stem.
type TextProcessor struct {
	tokenizer *tokenizer.Tokenizer
	stemmer   *Stemmer
}

func NewTextProcessor() *TextProcessor {
	return &TextProcessor{
		tokenizer: tokenizer.NewTokenizer(),
		stemmer:   NewStemmer(),
	}
}

func (tp *TextProcessor) Tokenizer() *tokenizer.Tokenizer {
	return tp.tokenizer
}

func (tp *TextProcessor) Stem(word string) string {
	return tp.stemmer.Stem(word)
}

// Process returns the stems of the indexable words of text, in order.
func (tp *TextProcessor) Process(text string) []string {
	return tp.stemmer.StemAll(tp.tokenizer.Tokenize(text))
}

func (tp *TextProcessor) TermCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, term := range tp.Process(text) {
		counts[term]++
	}
	return counts
}

// Weights scale how much one occurrence counts in each page field.
type Weights struct {
	Title int
	Body  int
}

// DefaultWeights counts a title word twice.
var DefaultWeights = Weights{Title: 2, Body: 1}

// PageTerms is the posting projection of one page. Length is the weighted
// term count that BM25 normalises by.
type PageTerms struct {
	Freq   map[string]int
	Length int
}

// IndexPage builds the postings of a page from its title and body. A field
// with a non-positive weight is left out.
func (tp *TextProcessor) IndexPage(title, body string, w Weights) PageTerms {
	pt := PageTerms{Freq: make(map[string]int)}
	add := func(text string, weight int) {
		if text == "" || weight <= 0 {
			return
		}
		for _, term := range tp.Process(text) {
			pt.Freq[term] += weight
			pt.Length += weight
		}
	}
	add(title, w.Title)
	add(body, w.Body)
	return pt
}
