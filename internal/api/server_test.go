package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deidaraiorek/docgraph/internal/answer"
	"github.com/deidaraiorek/docgraph/internal/classifier"
	"github.com/deidaraiorek/docgraph/internal/llm"
	"github.com/deidaraiorek/docgraph/internal/metrics"
	"github.com/deidaraiorek/docgraph/internal/retrieval"
	"github.com/deidaraiorek/docgraph/internal/scheduler"
	"github.com/deidaraiorek/docgraph/internal/storage"
)

type fakeEngine struct {
	resp *answer.Response
	err  error
}

func (f *fakeEngine) Ask(ctx context.Context, text string) (*answer.Response, error) {
	return f.resp, f.err
}

type fakeSearch struct {
	hits []storage.SearchHit
	got  string
}

func (f *fakeSearch) Search(ctx context.Context, text string) ([]storage.SearchHit, error) {
	f.got = text
	return f.hits, nil
}

type fakeStore struct {
	pingErr   error
	treeDepth int
}

func (f *fakeStore) Stats(ctx context.Context) (*storage.Stats, error) {
	return &storage.Stats{Pages: 25, Edges: 3, MaxDepth: 1, Errors: 1, Pending: 4}, nil
}

func (f *fakeStore) Tree(ctx context.Context, maxDepth int) ([]*storage.TreeNode, error) {
	f.treeDepth = maxDepth
	return []*storage.TreeNode{{ID: 1, Title: "Division 3", Children: []*storage.TreeNode{}}}, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return f.pingErr }

type fakeCrawl struct{}

func (fakeCrawl) Running() bool { return true }

func (fakeCrawl) Progress() scheduler.Report {
	return scheduler.Report{Committed: 12, Queued: 30}
}

// brokenStream yields ok chunks and then fails.
type brokenStream struct {
	ok    int
	calls int
}

func (b *brokenStream) Recv() (string, error) {
	b.calls++
	if b.calls <= b.ok {
		return "Partial", nil
	}
	return "", &llm.GenerationError{Err: errors.New("reset")}
}

func (b *brokenStream) Close() error { return nil }

func newTestServer(engine Asker, search Searcher, store GraphStore, crawl CrawlStatus) *httptest.Server {
	s := NewServer("0", engine, search, store, crawl, metrics.New(), zap.NewNop())
	return httptest.NewServer(s.Handler())
}

func readEvents(t *testing.T, resp *http.Response) []map[string]any {
	t.Helper()

	var events []map[string]any
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event))
		events = append(events, event)
	}
	require.NoError(t, scanner.Err())
	return events
}

func postChat(t *testing.T, srv *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/chat", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestChatStreamsLexicalAnswer(t *testing.T) {
	engine := &fakeEngine{resp: &answer.Response{
		Path:    answer.PathLexical,
		Query:   classifier.Query{Kind: classifier.Lexical, Text: "idling"},
		Stream:  llm.NewTextStream("Five ", "minutes."),
		Sources: []retrieval.Source{{ID: 7, Title: "Section 2485", Locator: "https://example.com/Document/S2485"}},
	}}
	srv := newTestServer(engine, &fakeSearch{}, &fakeStore{}, nil)
	defer srv.Close()

	resp := postChat(t, srv, `{"query":"How long may a truck idle?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readEvents(t, resp)
	require.Len(t, events, 4)
	assert.Equal(t, "Five ", events[0]["text"])
	assert.Equal(t, "minutes.", events[1]["text"])
	assert.Contains(t, events[2]["text"], "[1] [Section 2485](https://example.com/Document/S2485)")
	assert.Equal(t, true, events[3]["done"])
	assert.Equal(t, "lexical", events[3]["path"])
}

func TestChatGraphAnswerHasNoSourceFooter(t *testing.T) {
	engine := &fakeEngine{resp: &answer.Response{
		Path:    answer.PathGraph,
		Text:    "**Parent of 'Chapter 1':**",
		Stream:  llm.NewTextStream("**Parent of 'Chapter 1':**"),
		Sources: []retrieval.Source{{ID: 2, Title: "Chapter 1"}},
	}}
	srv := newTestServer(engine, &fakeSearch{}, &fakeStore{}, nil)
	defer srv.Close()

	events := readEvents(t, postChat(t, srv, `{"query":"parent of Chapter 1"}`))

	require.Len(t, events, 2)
	assert.Equal(t, "**Parent of 'Chapter 1':**", events[0]["text"])
	assert.Equal(t, "graph", events[1]["path"])
}

func TestChatGenerationFailureSendsSingleErrorEvent(t *testing.T) {
	engine := &fakeEngine{err: &llm.GenerationError{Err: errors.New("unavailable")}}
	srv := newTestServer(engine, &fakeSearch{}, &fakeStore{}, nil)
	defer srv.Close()

	events := readEvents(t, postChat(t, srv, `{"query":"emission limits"}`))

	require.Len(t, events, 1)
	assert.Equal(t, map[string]any{"error": "could not generate an answer", "done": true}, events[0])
}

func TestChatStreamFailureEndsWithErrorEvent(t *testing.T) {
	engine := &fakeEngine{resp: &answer.Response{Path: answer.PathLexical, Stream: &brokenStream{ok: 1}}}
	srv := newTestServer(engine, &fakeSearch{}, &fakeStore{}, nil)
	defer srv.Close()

	events := readEvents(t, postChat(t, srv, `{"query":"emission limits"}`))

	require.Len(t, events, 2)
	assert.Equal(t, "Partial", events[0]["text"])
	assert.Equal(t, "could not generate an answer", events[1]["error"])
	assert.Equal(t, true, events[1]["done"])
	assert.Equal(t, true, events[1]["discard"], "partial text must be flagged for the client to drop")
}

func TestChatStreamFailureBeforeFirstChunkSendsNoText(t *testing.T) {
	engine := &fakeEngine{resp: &answer.Response{Path: answer.PathLexical, Stream: &brokenStream{}}}
	srv := newTestServer(engine, &fakeSearch{}, &fakeStore{}, nil)
	defer srv.Close()

	events := readEvents(t, postChat(t, srv, `{"query":"emission limits"}`))

	require.Len(t, events, 1)
	assert.Equal(t, map[string]any{"error": "could not generate an answer", "done": true}, events[0])
}

func TestChatRejectsEmptyQuery(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeSearch{}, &fakeStore{}, nil)
	defer srv.Close()

	resp := postChat(t, srv, `{"query":"   "}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearch(t *testing.T) {
	search := &fakeSearch{hits: []storage.SearchHit{{ID: 7, Title: "Section 2485", Score: 2.5, Snippet: "<b>idle</b>"}}}
	srv := newTestServer(&fakeEngine{}, search, &fakeStore{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/search?q=idle")
	require.NoError(t, err)
	defer resp.Body.Close()

	var hits []storage.SearchHit
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hits))
	assert.Equal(t, search.hits, hits)
	assert.Equal(t, "idle", search.got)
}

func TestSearchWithoutQueryIsEmpty(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeSearch{}, &fakeStore{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/search")
	require.NoError(t, err)
	defer resp.Body.Close()

	var hits []storage.SearchHit
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hits))
	assert.Empty(t, hits)
}

func TestCrawlStatus(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeSearch{}, &fakeStore{}, fakeCrawl{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/crawl-status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Running  bool `json:"running"`
		Pages    int  `json:"pages"`
		Progress struct {
			Committed int `json:"committed"`
		} `json:"progress"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Running)
	assert.Equal(t, 25, body.Pages)
	assert.Equal(t, 12, body.Progress.Committed)
}

func TestTreeDepthParameter(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(&fakeEngine{}, &fakeSearch{}, store, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/tree")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 4, store.treeDepth)

	resp, err = http.Get(srv.URL + "/api/tree?depth=2")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 2, store.treeDepth)

	resp, err = http.Get(srv.URL + "/api/tree?depth=deep")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealth(t *testing.T) {
	store := &fakeStore{}
	srv := newTestServer(&fakeEngine{}, &fakeSearch{}, store, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	store.pingErr = errors.New("database is locked")
	resp, err = http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpointRecordsRoutes(t *testing.T) {
	srv := newTestServer(&fakeEngine{}, &fakeSearch{}, &fakeStore{}, nil)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/stats")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	var b strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	assert.Contains(t, b.String(), `docgraph_http_requests_total{method="GET",route="/api/stats",status="200"} 1`)
}
