package frontier

import (
	"sync"
)

// Item is one location waiting to be visited.
type Item struct {
	Locator  string
	StableID string
	LinkText string
	Depth    int
	ParentID *int64
}

// Key is the dedup key: the stable id when the source provides one,
// otherwise the normalized locator.
func (it Item) Key() string {
	if it.StableID != "" {
		return "sid:" + it.StableID
	}
	return "loc:" + it.Locator
}

// Frontier is a FIFO queue with a visited set. An item is marked seen when
// it is pushed, so a location already visited or still queued is refused.
// Each crawl run owns its own Frontier.
type Frontier struct {
	queue []Item
	head  int
	seen  map[string]bool
	mu    sync.Mutex
}

func New() *Frontier {
	return &Frontier{
		seen: make(map[string]bool),
	}
}

// Push enqueues item unless its key was seen before. It reports whether the
// item was added.
func (f *Frontier) Push(item Item) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := item.Key()
	if f.seen[key] {
		return false
	}
	f.seen[key] = true
	f.queue = append(f.queue, item)
	return true
}

// MarkSeen records a key without enqueueing anything. Used when a page turns
// out to have a stable id that was not known when it was queued.
func (f *Frontier) MarkSeen(item Item) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := item.Key()
	if f.seen[key] {
		return false
	}
	f.seen[key] = true
	return true
}

// Pop removes the oldest item.
func (f *Frontier) Pop() (Item, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.head == len(f.queue) {
		return Item{}, false
	}

	item := f.queue[f.head]
	f.queue[f.head] = Item{}
	f.head++

	// compact once the consumed prefix dominates
	if f.head > 1024 && f.head*2 > len(f.queue) {
		f.queue = append([]Item(nil), f.queue[f.head:]...)
		f.head = 0
	}
	return item, true
}

func (f *Frontier) Size() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue) - f.head
}

func (f *Frontier) IsEmpty() bool {
	return f.Size() == 0
}

func (f *Frontier) HasSeen(item Item) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[item.Key()]
}
