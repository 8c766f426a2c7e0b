package graph

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryTree is an in-memory Tree. Children and links keep insertion order.
type MemoryTree struct {
	mu       sync.RWMutex
	nodes    map[int64]Node
	children map[int64][]int64
	links    map[int64][]Link
}

func NewMemoryTree() *MemoryTree {
	return &MemoryTree{
		nodes:    make(map[int64]Node),
		children: make(map[int64][]int64),
		links:    make(map[int64][]Link),
	}
}

// Add inserts a node under parentID (nil for a root). Depth is derived from
// the parent when it is known.
func (t *MemoryTree) Add(id int64, title, locator string, parentID *int64) Node {
	t.mu.Lock()
	defer t.mu.Unlock()

	node := Node{ID: id, Title: title, Locator: locator, ParentID: parentID}
	if parentID != nil {
		if parent, ok := t.nodes[*parentID]; ok {
			node.Depth = parent.Depth + 1
		}
		t.children[*parentID] = append(t.children[*parentID], id)
	}
	t.nodes[id] = node
	return node
}

// Link records a cross reference from one node to another. Unknown targets
// are ignored.
func (t *MemoryTree) Link(fromID, toID int64, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	target, ok := t.nodes[toID]
	if !ok {
		return
	}
	t.links[fromID] = append(t.links[fromID], Link{
		ToID:     toID,
		Title:    target.Title,
		Locator:  target.Locator,
		LinkText: text,
	})
}

func (t *MemoryTree) FindByTitle(ctx context.Context, phrase string, limit int) ([]Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(phrase))
	var matches []Node
	for _, n := range t.nodes {
		if strings.Contains(strings.ToLower(n.Title), needle) {
			matches = append(matches, n)
		}
	}
	sortCandidates(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (t *MemoryTree) Page(ctx context.Context, id int64) (Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[id]
	if !ok {
		return Node{}, ErrNodeNotFound
	}
	return n, nil
}

func (t *MemoryTree) ParentOf(ctx context.Context, id int64) (*Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}
	if n.ParentID == nil {
		return nil, nil
	}
	parent, ok := t.nodes[*n.ParentID]
	if !ok {
		return nil, nil
	}
	return &parent, nil
}

func (t *MemoryTree) ChildrenOf(ctx context.Context, id int64) ([]Node, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := t.children[id]
	out := make([]Node, 0, len(ids))
	for _, cid := range ids {
		out = append(out, t.nodes[cid])
	}
	return out, nil
}

func (t *MemoryTree) OutboundLinks(ctx context.Context, id int64) ([]Link, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Link, len(t.links[id]))
	copy(out, t.links[id])
	return out, nil
}

// sortCandidates orders title matches the way the resolver picks among them:
// shortest title, then lowest id.
func sortCandidates(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if len(nodes[i].Title) != len(nodes[j].Title) {
			return len(nodes[i].Title) < len(nodes[j].Title)
		}
		return nodes[i].ID < nodes[j].ID
	})
}
