package retrieval_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deidaraiorek/docgraph/internal/cache"
	"github.com/deidaraiorek/docgraph/internal/llm"
	"github.com/deidaraiorek/docgraph/internal/metrics"
	"github.com/deidaraiorek/docgraph/internal/retrieval"
	"github.com/deidaraiorek/docgraph/internal/storage"
)

type fakeGenerator struct {
	requests []llm.Request
	tokens   []string
	err      error
	failMid  bool
}

func (g *fakeGenerator) Generate(ctx context.Context, req llm.Request) (llm.Stream, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	if g.failMid {
		return &failingStream{}, nil
	}
	return llm.NewTextStream(g.tokens...), nil
}

type failingStream struct{ n int }

func (s *failingStream) Recv() (string, error) {
	s.n++
	if s.n == 1 {
		return "The limit", nil
	}
	return "", &llm.GenerationError{Err: io.ErrUnexpectedEOF}
}

func (s *failingStream) Close() error { return nil }

func seedStore(t *testing.T) *storage.Store {
	t.Helper()
	ctx := context.Background()

	store, err := storage.Open(filepath.Join(t.TempDir(), "retrieval.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rootID, _, err := store.UpsertPage(ctx, storage.PageInput{
		Locator: "https://example.com/Document/D3", StableID: "D3",
		Title: "Division 3", Body: "Air resources board regulations.", Status: storage.StatusOK,
	})
	require.NoError(t, err)

	pages := []storage.PageInput{
		{
			Locator: "https://example.com/Document/S2485", StableID: "S2485",
			Title: "Section 2485. Idling Limits",
			Body: strings.Repeat("General definitions apply. ", 40) +
				"A diesel vehicle shall not idle for more than five minutes at any location. " +
				strings.Repeat("Penalties are assessed per day. ", 40),
		},
		{
			Locator: "https://example.com/Document/S95100", StableID: "S95100",
			Title: "Section 95100. Greenhouse Gas Reporting",
			Body:  "Operators report greenhouse gas emissions annually.",
		},
	}
	for _, in := range pages {
		in.Depth = 1
		in.ParentID = &rootID
		in.Status = storage.StatusOK
		_, _, err := store.UpsertPage(ctx, in)
		require.NoError(t, err)
	}
	return store
}

func TestContextTitleOnlyMatchStartsAtLeadOffset(t *testing.T) {
	store, err := storage.Open(filepath.Join(t.TempDir(), "title.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	body := strings.Repeat("Carriers keep records. ", 100)
	_, _, err = store.UpsertPage(context.Background(), storage.PageInput{
		Locator: "https://example.com/Document/T1", StableID: "T1",
		Title: "Tachograph Rules", Body: body, Status: storage.StatusOK,
	})
	require.NoError(t, err)

	tests := []struct {
		name       string
		leadOffset int
		start      int
	}{
		{"explicit", 46, 46},
		{"zero", 0, 0},
		{"default", -1, retrieval.DefaultLeadOffset},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := retrieval.NewResolver(store, &fakeGenerator{}, retrieval.Config{Window: 400, LeadOffset: tt.leadOffset})

			excerpts, _, err := r.Context(context.Background(), "tachograph")

			require.NoError(t, err)
			require.Len(t, excerpts, 1)
			assert.Equal(t, body[tt.start:tt.start+400], excerpts[0].Text)
		})
	}
}

func TestContextBuildsExcerptsInRankOrder(t *testing.T) {
	store := seedStore(t)
	r := retrieval.NewResolver(store, &fakeGenerator{}, retrieval.Config{Window: 400})

	excerpts, sources, err := r.Context(context.Background(), "How long may a diesel vehicle idle?")

	require.NoError(t, err)
	require.NotEmpty(t, sources)
	require.Len(t, excerpts, len(sources))
	assert.Equal(t, "Section 2485. Idling Limits", sources[0].Title)
	assert.LessOrEqual(t, len(excerpts[0].Text), 400)
	assert.Contains(t, excerpts[0].Text, "shall not idle")
	assert.Contains(t, excerpts[0].Text, "General definitions apply.")
}

func TestAnswerUsesGenerator(t *testing.T) {
	store := seedStore(t)
	gen := &fakeGenerator{tokens: []string{"Five ", "minutes."}}
	r := retrieval.NewResolver(store, gen, retrieval.Config{}, retrieval.WithLogger(zap.NewNop()))

	answer, sources, err := r.Answer(context.Background(), "What does CARB say about GHG reporting?")

	require.NoError(t, err)
	assert.Equal(t, "Five minutes.", answer)
	require.NotEmpty(t, sources)
	assert.Equal(t, "Section 95100. Greenhouse Gas Reporting", sources[0].Title)

	require.Len(t, gen.requests, 1)
	assert.Equal(t, "What does CARB say about GHG reporting?", gen.requests[0].Query)
	assert.Equal(t, "Operators report greenhouse gas emissions annually.", gen.requests[0].Excerpts[0].Text)
}

func TestAnswerReturnsNoPartialTextOnFailure(t *testing.T) {
	store := seedStore(t)
	m := metrics.New()
	r := retrieval.NewResolver(store, &fakeGenerator{failMid: true}, retrieval.Config{}, retrieval.WithMetrics(m))

	answer, _, err := r.Answer(context.Background(), "diesel idle")

	var genErr *llm.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Empty(t, answer)
}

func TestStreamSurfacesGenerationError(t *testing.T) {
	store := seedStore(t)
	gen := &fakeGenerator{err: &llm.GenerationError{Err: errors.New("unavailable")}}
	r := retrieval.NewResolver(store, gen, retrieval.Config{})

	stream, sources, err := r.Stream(context.Background(), "diesel idle")

	assert.Nil(t, stream)
	assert.NotEmpty(t, sources)
	var genErr *llm.GenerationError
	assert.ErrorAs(t, err, &genErr)
}

type countingStore struct {
	retrieval.Store
	searches int
}

func (c *countingStore) LexicalSearch(ctx context.Context, terms []string, limit int) ([]storage.SearchHit, error) {
	c.searches++
	return c.Store.LexicalSearch(ctx, terms, limit)
}

func TestSearchUsesCache(t *testing.T) {
	store := &countingStore{Store: seedStore(t)}
	r := retrieval.NewResolver(store, &fakeGenerator{}, retrieval.Config{},
		retrieval.WithCache(cache.NewMemory(time.Minute)))
	ctx := context.Background()

	first, err := r.Search(ctx, "greenhouse gas reporting")
	require.NoError(t, err)
	second, err := r.Search(ctx, "Greenhouse gas reporting?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.searches)
}

func TestSearchWithNoTermsIsEmpty(t *testing.T) {
	r := retrieval.NewResolver(seedStore(t), &fakeGenerator{}, retrieval.Config{})

	hits, err := r.Search(context.Background(), "?!")

	require.NoError(t, err)
	assert.Empty(t, hits)
}
