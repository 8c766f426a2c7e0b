package graph

import (
	"context"
	"errors"

	"github.com/deidaraiorek/docgraph/internal/storage"
)

var ErrNodeNotFound = errors.New("node not found")

type Node struct {
	ID       int64
	Title    string
	Locator  string
	Depth    int
	ParentID *int64
}

type Link struct {
	ToID     int64
	Title    string
	Locator  string
	LinkText string
}

// Label is the text shown for a link: its anchor text, else the target title,
// else the locator.
func (l Link) Label() string {
	switch {
	case l.LinkText != "":
		return l.LinkText
	case l.Title != "":
		return l.Title
	default:
		return l.Locator
	}
}

// Tree is the traversal surface the resolver needs. FindByTitle returns
// candidates ordered shortest title first, then by id.
type Tree interface {
	FindByTitle(ctx context.Context, phrase string, limit int) ([]Node, error)
	Page(ctx context.Context, id int64) (Node, error)
	ParentOf(ctx context.Context, id int64) (*Node, error)
	ChildrenOf(ctx context.Context, id int64) ([]Node, error)
	OutboundLinks(ctx context.Context, id int64) ([]Link, error)
}

// StoreTree serves a Tree from the page store.
type StoreTree struct {
	store *storage.Store
}

func NewStoreTree(store *storage.Store) *StoreTree {
	return &StoreTree{store: store}
}

func (t *StoreTree) FindByTitle(ctx context.Context, phrase string, limit int) ([]Node, error) {
	pages, err := t.store.FindByTitle(ctx, phrase, limit)
	if err != nil {
		return nil, err
	}
	return fromSummaries(pages), nil
}

func (t *StoreTree) Page(ctx context.Context, id int64) (Node, error) {
	page, err := t.store.GetPage(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return Node{}, ErrNodeNotFound
	}
	if err != nil {
		return Node{}, err
	}
	return Node{
		ID:       page.ID,
		Title:    page.Title,
		Locator:  page.Locator,
		Depth:    page.Depth,
		ParentID: page.ParentID,
	}, nil
}

func (t *StoreTree) ParentOf(ctx context.Context, id int64) (*Node, error) {
	parent, err := t.store.ParentOf(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNodeNotFound
	}
	if err != nil || parent == nil {
		return nil, err
	}
	node := fromSummary(*parent)
	return &node, nil
}

func (t *StoreTree) ChildrenOf(ctx context.Context, id int64) ([]Node, error) {
	children, err := t.store.ChildrenOf(ctx, id)
	if err != nil {
		return nil, err
	}
	return fromSummaries(children), nil
}

func (t *StoreTree) OutboundLinks(ctx context.Context, id int64) ([]Link, error) {
	links, err := t.store.OutboundLinks(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]Link, len(links))
	for i, l := range links {
		out[i] = Link{ToID: l.ToID, Title: l.Title, Locator: l.Locator, LinkText: l.LinkText}
	}
	return out, nil
}

func fromSummary(p storage.PageSummary) Node {
	return Node{
		ID:       p.ID,
		Title:    p.Title,
		Locator:  p.Locator,
		Depth:    p.Depth,
		ParentID: p.ParentID,
	}
}

func fromSummaries(pages []storage.PageSummary) []Node {
	nodes := make([]Node, len(pages))
	for i, p := range pages {
		nodes[i] = fromSummary(p)
	}
	return nodes
}
