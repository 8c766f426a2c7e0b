package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/deidaraiorek/docgraph/internal/answer"
	"github.com/deidaraiorek/docgraph/internal/metrics"
	"github.com/deidaraiorek/docgraph/internal/scheduler"
	"github.com/deidaraiorek/docgraph/internal/storage"
)

type Asker interface {
	Ask(ctx context.Context, text string) (*answer.Response, error)
}

type Searcher interface {
	Search(ctx context.Context, text string) ([]storage.SearchHit, error)
}

type GraphStore interface {
	Stats(ctx context.Context) (*storage.Stats, error)
	Tree(ctx context.Context, maxDepth int) ([]*storage.TreeNode, error)
	Ping(ctx context.Context) error
}

// CrawlStatus reports on a crawl running in the same process.
type CrawlStatus interface {
	Running() bool
	Progress() scheduler.Report
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	port       string
	router     http.Handler
	httpServer *http.Server
	engine     Asker
	search     Searcher
	store      GraphStore
	crawl      CrawlStatus
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewServer wires the HTTP surface. crawl may be nil when no crawl runs
// alongside the server.
func NewServer(port string, engine Asker, search Searcher, store GraphStore, crawl CrawlStatus, m *metrics.Metrics, l *zap.Logger) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	s := &Server{
		port:    port,
		engine:  engine,
		search:  search,
		store:   store,
		crawl:   crawl,
		metrics: m,
		logger:  l,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%s", s.port),
		Handler:     s.router,
		ReadTimeout: 10 * time.Second,
		// Answers stream for as long as generation takes.
		WriteTimeout: 5 * time.Minute,
	}
	s.logger.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
