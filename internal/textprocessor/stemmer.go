package textprocessor

import (
	"sync"

	"github.com/kljensen/snowball"
)

// stemCacheLimit bounds the memo table. Regulation text has a small
// vocabulary, so the table rarely fills; when it does it is reset.
const stemCacheLimit = 50000

// Stemmer reduces words to their English snowball stem. Results are
// memoised because snippet building stems every body word on each search.
// Safe for concurrent use.
type Stemmer struct {
	mu    sync.RWMutex
	stems map[string]string
}

func NewStemmer() *Stemmer {
	return &Stemmer{stems: make(map[string]string)}
}

func (s *Stemmer) Stem(word string) string {
	s.mu.RLock()
	stem, ok := s.stems[word]
	s.mu.RUnlock()
	if ok {
		return stem
	}

	stem, err := snowball.Stem(word, "english", true)
	if err != nil {
		stem = word
	}

	s.mu.Lock()
	if len(s.stems) >= stemCacheLimit {
		s.stems = make(map[string]string)
	}
	s.stems[word] = stem
	s.mu.Unlock()
	return stem
}

func (s *Stemmer) StemAll(words []string) []string {
	stemmed := make([]string, len(words))
	for i, word := range words {
		stemmed[i] = s.Stem(word)
	}
	return stemmed
}
