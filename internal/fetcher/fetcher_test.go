package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/deidaraiorek/docgraph/internal/fetcher"
	"github.com/deidaraiorek/docgraph/internal/parser"
	"github.com/deidaraiorek/docgraph/internal/scope"
)

var longText = strings.Repeat("The board shall adopt emission standards. ", 5)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private\n"))
	})
	mux.HandleFunc("/calregs/Document/IOK", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><h1>Section 1</h1><main>` + longText + `</main></body></html>`))
	})
	mux.HandleFunc("/calregs/Document/ITHIN", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><div id="app">Loading...</div></body></html>`))
	})
	mux.HandleFunc("/private/doc", func(w http.ResponseWriter, r *http.Request) {
		t.Error("disallowed path was fetched")
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/file.bin", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0, 1, 2})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestFetchSuccess(t *testing.T) {
	server := newTestServer(t)
	f := fetcher.New("docgraph-test/1.0", zap.NewNop())

	resp, err := f.Fetch(context.Background(), server.URL+"/calregs/Document/IOK")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFetchErrors(t *testing.T) {
	server := newTestServer(t)
	f := fetcher.New("docgraph-test/1.0", zap.NewNop())

	tests := []struct {
		name      string
		path      string
		retryable bool
		target    error
	}{
		{name: "robots disallow", path: "/private/doc", retryable: false, target: fetcher.ErrDisallowed},
		{name: "server error", path: "/broken", retryable: true},
		{name: "not found", path: "/gone", retryable: false},
		{name: "binary", path: "/file.bin", retryable: false, target: fetcher.ErrNotHTML},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), server.URL+tt.path)
			require.Error(t, err)

			var fe *fetcher.FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tt.retryable, fe.Retryable)
			assert.Equal(t, tt.retryable, fetcher.IsRetryable(err))
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestFetchTimeoutIsRetryable(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer slow.Close()

	f := fetcher.New("docgraph-test/1.0", zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, slow.URL+"/page")
	require.Error(t, err)
	assert.True(t, fetcher.IsRetryable(err))
}

type fakeBrowser struct {
	html  string
	err   error
	calls int
}

func (b *fakeBrowser) FetchHTML(ctx context.Context, urlStr string) (string, error) {
	b.calls++
	return b.html, b.err
}

func TestRendererTwoPhase(t *testing.T) {
	server := newTestServer(t)
	f := fetcher.New("docgraph-test/1.0", zap.NewNop())
	p := parser.New(scope.DefaultIdentity())

	t.Run("static content is enough", func(t *testing.T) {
		browser := &fakeBrowser{}
		r := fetcher.NewRenderer(f, browser, p, zap.NewNop(), nil)

		doc, err := r.Render(context.Background(), server.URL+"/calregs/Document/IOK")
		require.NoError(t, err)
		assert.Equal(t, "Section 1", doc.Title)
		assert.Equal(t, "IOK", doc.StableID)
		assert.Equal(t, 0, browser.calls)
	})

	t.Run("thin page goes to browser", func(t *testing.T) {
		browser := &fakeBrowser{html: `<html><body><h1>Rendered</h1><main>` + longText + `</main></body></html>`}
		r := fetcher.NewRenderer(f, browser, p, zap.NewNop(), nil)

		doc, err := r.Render(context.Background(), server.URL+"/calregs/Document/ITHIN")
		require.NoError(t, err)
		assert.Equal(t, 1, browser.calls)
		assert.Equal(t, "Rendered", doc.Title)
		assert.Equal(t, "ITHIN", doc.StableID)
	})

	t.Run("browser failure keeps http result", func(t *testing.T) {
		browser := &fakeBrowser{err: errors.New("chrome not installed")}
		r := fetcher.NewRenderer(f, browser, p, zap.NewNop(), nil)

		doc, err := r.Render(context.Background(), server.URL+"/calregs/Document/ITHIN")
		require.NoError(t, err)
		assert.Equal(t, "Loading...", doc.Body)
	})

	t.Run("fetch failure surfaces", func(t *testing.T) {
		r := fetcher.NewRenderer(f, nil, p, zap.NewNop(), nil)

		_, err := r.Render(context.Background(), server.URL+"/broken")
		var fe *fetcher.FetchError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, http.StatusBadGateway, fe.StatusCode)
	})
}
