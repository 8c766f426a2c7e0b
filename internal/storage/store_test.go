package storage_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deidaraiorek/docgraph/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	store, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func upsert(t *testing.T, store *storage.Store, in storage.PageInput) int64 {
	t.Helper()

	id, _, err := store.UpsertPage(context.Background(), in)
	require.NoError(t, err)
	return id
}

func TestUpsertPageInsertAndUpdate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rootID, created, err := store.UpsertPage(ctx, storage.PageInput{
		Locator:  "https://example.com/Document/ROOT",
		StableID: "ROOT",
		Title:    "Division 3",
		Body:     "Air resources",
	})
	require.NoError(t, err)
	assert.True(t, created)

	childID, created, err := store.UpsertPage(ctx, storage.PageInput{
		Locator:  "https://example.com/Document/C1",
		StableID: "C1",
		Title:    "Chapter 1",
		Body:     "General provisions",
		Depth:    1,
		ParentID: &rootID,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Greater(t, childID, rootID)

	// Same stable id under a different locator is the same page; depth and
	// parent from the second visit are ignored.
	otherParent := childID
	againID, created, err := store.UpsertPage(ctx, storage.PageInput{
		Locator:  "https://example.com/Document/C1?view=full",
		StableID: "C1",
		Title:    "Chapter 1. General",
		Body:     "Updated provisions",
		Depth:    2,
		ParentID: &otherParent,
		Status:   storage.StatusOK,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, childID, againID)

	page, err := store.GetPage(ctx, childID)
	require.NoError(t, err)
	assert.Equal(t, "Chapter 1. General", page.Title)
	assert.Equal(t, "Updated provisions", page.Body)
	assert.Equal(t, "https://example.com/Document/C1", page.Locator)
	assert.Equal(t, 1, page.Depth)
	require.NotNil(t, page.ParentID)
	assert.Equal(t, rootID, *page.ParentID)
	assert.False(t, page.IngestedAt.IsZero())
}

func TestUpsertPageDedupByLocatorWithoutStableID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first := upsert(t, store, storage.PageInput{Locator: "https://example.com/a", Title: "A"})
	second := upsert(t, store, storage.PageInput{Locator: "https://example.com/a", Title: "A again"})

	assert.Equal(t, first, second)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pages)
}

func TestUpsertPageRejectsBrokenTree(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rootID := upsert(t, store, storage.PageInput{Locator: "https://example.com/root", Title: "Root"})

	tests := []struct {
		name string
		in   storage.PageInput
	}{
		{"empty locator", storage.PageInput{Title: "x"}},
		{"root with depth", storage.PageInput{Locator: "https://example.com/x", Depth: 3}},
		{"wrong child depth", storage.PageInput{Locator: "https://example.com/y", Depth: 2, ParentID: &rootID}},
		{"unknown parent", storage.PageInput{Locator: "https://example.com/z", Depth: 1, ParentID: ptr(int64(999))}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := store.UpsertPage(ctx, tt.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, storage.ErrInvalidPage)

			var storageErr *storage.Error
			assert.True(t, errors.As(err, &storageErr))
			assert.Equal(t, "upsert page", storageErr.Op)
		})
	}

	// nothing partial was written
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pages)
}

func TestGetPageNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetPage(context.Background(), 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.Lookup(context.Background(), "missing", "https://example.com/missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLookupPrefersStableID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id := upsert(t, store, storage.PageInput{Locator: "https://example.com/Document/S1", StableID: "S1", Title: "One"})

	page, err := store.Lookup(ctx, "S1", "https://example.com/elsewhere")
	require.NoError(t, err)
	assert.Equal(t, id, page.ID)

	page, err = store.Lookup(ctx, "", "https://example.com/Document/S1")
	require.NoError(t, err)
	assert.Equal(t, id, page.ID)
}

func TestRecordLinksCreatesEdgesForCommittedTargets(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rootID := upsert(t, store, storage.PageInput{Locator: "https://example.com/root", Title: "Root"})
	aID := upsert(t, store, storage.PageInput{Locator: "https://example.com/a", StableID: "A", Title: "A", Depth: 1, ParentID: &rootID})

	err := store.RecordLinks(ctx, rootID, []storage.DiscoveredLink{
		{Locator: "https://example.com/a", StableID: "A", Text: "Section A"},
		{Locator: "https://example.com/b", StableID: "B", Text: "Section B"},
		{Locator: "https://example.com/root", Text: "self"},
	})
	require.NoError(t, err)

	links, err := store.OutboundLinks(ctx, rootID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, aID, links[0].ToID)
	assert.Equal(t, "Section A", links[0].LinkText)

	discovered, err := store.DiscoveredLinks(ctx, rootID)
	require.NoError(t, err)
	require.Len(t, discovered, 3)
	assert.Equal(t, "https://example.com/b", discovered[1].Locator)
	assert.Equal(t, "B", discovered[1].StableID)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)

	// committing the pending target resolves the edge in the same write
	bID := upsert(t, store, storage.PageInput{Locator: "https://example.com/b", StableID: "B", Title: "B", Depth: 1, ParentID: &rootID})

	links, err = store.OutboundLinks(ctx, rootID)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, bID, links[1].ToID)
	assert.Equal(t, "Section B", links[1].LinkText)
}

func TestAddEdgeLastWriteWins(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rootID := upsert(t, store, storage.PageInput{Locator: "https://example.com/root", Title: "Root"})
	aID := upsert(t, store, storage.PageInput{Locator: "https://example.com/a", Title: "A", Depth: 1, ParentID: &rootID})

	require.NoError(t, store.AddEdge(ctx, rootID, aID, "first"))
	require.NoError(t, store.AddEdge(ctx, rootID, aID, "second"))

	links, err := store.OutboundLinks(ctx, rootID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "second", links[0].LinkText)

	err = store.AddEdge(ctx, rootID, 999, "dangling")
	var storageErr *storage.Error
	assert.True(t, errors.As(err, &storageErr))
}

func TestTraversal(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rootID := upsert(t, store, storage.PageInput{Locator: "https://example.com/division", Title: "Division 3"})

	chapterIDs := make([]int64, 0, 24)
	for i := 1; i <= 24; i++ {
		id := upsert(t, store, storage.PageInput{
			Locator:  fmt.Sprintf("https://example.com/chapter/%d", i),
			Title:    fmt.Sprintf("Chapter %d", i),
			Depth:    1,
			ParentID: &rootID,
		})
		chapterIDs = append(chapterIDs, id)
	}
	articleID := upsert(t, store, storage.PageInput{
		Locator:  "https://example.com/article/1",
		Title:    "Article 1",
		Depth:    2,
		ParentID: &chapterIDs[0],
	})

	children, err := store.ChildrenOf(ctx, rootID)
	require.NoError(t, err)
	require.Len(t, children, 24)
	for i, child := range children {
		assert.Equal(t, fmt.Sprintf("Chapter %d", i+1), child.Title)
	}

	siblings, err := store.SiblingsOf(ctx, chapterIDs[0])
	require.NoError(t, err)
	assert.Len(t, siblings, 23)
	for _, sibling := range siblings {
		assert.NotEqual(t, chapterIDs[0], sibling.ID)
	}

	rootSiblings, err := store.SiblingsOf(ctx, rootID)
	require.NoError(t, err)
	assert.Empty(t, rootSiblings)

	parent, err := store.ParentOf(ctx, articleID)
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, "Chapter 1", parent.Title)

	rootParent, err := store.ParentOf(ctx, rootID)
	require.NoError(t, err)
	assert.Nil(t, rootParent)

	path, err := store.AncestorPathToRoot(ctx, articleID)
	require.NoError(t, err)
	require.Len(t, path, 3)
	assert.Equal(t, []string{"Division 3", "Chapter 1", "Article 1"}, []string{path[0].Title, path[1].Title, path[2].Title})

	_, err = store.AncestorPathToRoot(ctx, 12345)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFindByTitle(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rootID := upsert(t, store, storage.PageInput{Locator: "https://example.com/r", Title: "Division 3. Air Resources Board"})
	upsert(t, store, storage.PageInput{Locator: "https://example.com/c10", Title: "Chapter 10. Mobile Source Operational Controls", Depth: 1, ParentID: &rootID})
	upsert(t, store, storage.PageInput{Locator: "https://example.com/c1", Title: "Chapter 1. Administration", Depth: 1, ParentID: &rootID})
	upsert(t, store, storage.PageInput{Locator: "https://example.com/pct", Title: "Rates of 100% compliance", Depth: 1, ParentID: &rootID})

	pages, err := store.FindByTitle(ctx, "chapter 1", 10)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "Chapter 1. Administration", pages[0].Title)

	pages, err = store.FindByTitle(ctx, "100%", 10)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	pages, err = store.FindByTitle(ctx, "0_%", 10)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestStatsAndTree(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rootID := upsert(t, store, storage.PageInput{Locator: "https://example.com/r", Title: "Root"})
	c1 := upsert(t, store, storage.PageInput{Locator: "https://example.com/c1", Title: "Chapter 9", Depth: 1, ParentID: &rootID})
	upsert(t, store, storage.PageInput{Locator: "https://example.com/c2", Title: "Chapter 10", Depth: 1, ParentID: &rootID})
	upsert(t, store, storage.PageInput{Locator: "https://example.com/a1", Title: "Article 1", Depth: 2, ParentID: &c1, Status: storage.StatusError})

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Pages)
	assert.Equal(t, 2, stats.MaxDepth)
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, []storage.DepthCount{{Depth: 0, Count: 1}, {Depth: 1, Count: 2}, {Depth: 2, Count: 1}}, stats.ByDepth)
	assert.Len(t, stats.Recent, 4)

	tree, err := store.Tree(ctx, -1)
	require.NoError(t, err)
	require.Len(t, tree, 1)
	require.Len(t, tree[0].Children, 2)
	assert.Equal(t, "Chapter 9", tree[0].Children[0].Title)
	assert.Equal(t, "Chapter 10", tree[0].Children[1].Title)
	require.Len(t, tree[0].Children[0].Children, 1)

	shallow, err := store.Tree(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, shallow[0].Children[0].Children)
}

func ptr[T any](v T) *T {
	return &v
}
