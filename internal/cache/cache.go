package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/deidaraiorek/docgraph/internal/storage"
)

// Cache memoises lexical search results per prepared query.
type Cache interface {
	Get(ctx context.Context, key string) ([]storage.SearchHit, bool, error)
	Set(ctx context.Context, key string, hits []storage.SearchHit) error
}

// Key identifies a search by its prepared terms and result limit.
func Key(terms []string, limit int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s", limit, strings.Join(terms, " "))))
	return hex.EncodeToString(sum[:16])
}

type entry struct {
	hits    []storage.SearchHit
	expires time.Time
}

// Memory is a process-local cache. Expired entries are dropped on read.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]storage.SearchHit, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if m.ttl > 0 && !m.now().Before(e.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]storage.SearchHit(nil), e.hits...), true, nil
}

func (m *Memory) Set(ctx context.Context, key string, hits []storage.SearchHit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry{
		hits:    append([]storage.SearchHit(nil), hits...),
		expires: m.now().Add(m.ttl),
	}
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
