package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deidaraiorek/docgraph/internal/answer"
	"github.com/deidaraiorek/docgraph/internal/retrieval"
	"github.com/deidaraiorek/docgraph/internal/scheduler"
	"github.com/deidaraiorek/docgraph/internal/storage"
)

const (
	defaultTreeDepth   = 4
	generationFailure  = "could not generate an answer"
	maxSearchQueryRune = 500
)

type chatRequest struct {
	Query string `json:"query"`
}

type chatEvent struct {
	Text    string             `json:"text"`
	Done    bool               `json:"done"`
	Path    string             `json:"path,omitempty"`
	Sources []retrieval.Source `json:"sources,omitempty"`
}

// errorEvent ends a failed stream. Discard is set when answer text was
// already sent; clients drop everything received for the question.
type errorEvent struct {
	Error   string `json:"error"`
	Done    bool   `json:"done"`
	Discard bool   `json:"discard,omitempty"`
}

type crawlStatusResponse struct {
	Running  bool              `json:"running"`
	Progress *scheduler.Report `json:"progress,omitempty"`
	Pages    int               `json:"pages"`
	Errors   int               `json:"errors"`
	Pending  int               `json:"pending_links"`
	MaxDepth int               `json:"max_depth"`
}

// handleChat answers a question as a stream of server-sent events. Each
// event carries a chunk of answer text; the last one has done set and
// lists the sources. Nothing is written until the first chunk is in hand,
// so a generation failure that happens up front yields one error event.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		s.respondWithError(w, http.StatusBadRequest, "Empty query")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondWithError(w, http.StatusInternalServerError, "Streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	resp, err := s.engine.Ask(r.Context(), query)
	if err != nil {
		s.logger.Error("Failed to answer question", zap.String("query", query), zap.Error(err))
		s.writeEvent(w, flusher, errorEvent{Error: generationFailure, Done: true})
		return
	}
	defer resp.Stream.Close()

	sent := false
	for {
		token, err := resp.Stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Error("Answer stream failed",
				zap.String("query", query),
				zap.Bool("partial", sent),
				zap.Error(err),
			)
			s.writeEvent(w, flusher, errorEvent{Error: generationFailure, Done: true, Discard: sent})
			return
		}
		s.writeEvent(w, flusher, chatEvent{Text: token})
		sent = true
	}

	if resp.Path == answer.PathLexical && len(resp.Sources) > 0 {
		s.writeEvent(w, flusher, chatEvent{Text: formatSources(resp.Sources)})
	}
	s.writeEvent(w, flusher, chatEvent{Done: true, Path: string(resp.Path), Sources: resp.Sources})
}

func (s *Server) writeEvent(w http.ResponseWriter, flusher http.Flusher, event any) {
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to encode event", zap.Error(err))
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func formatSources(sources []retrieval.Source) string {
	var b strings.Builder
	b.WriteString("\n\n---\n**Sources:**\n")
	for i, src := range sources {
		title := src.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "[%d] [%s](%s)\n", i+1, title, src.Locator)
	}
	return b.String()
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondWithJSON(w, http.StatusOK, []storage.SearchHit{})
		return
	}
	if len([]rune(q)) > maxSearchQueryRune {
		s.respondWithError(w, http.StatusBadRequest, "Query too long")
		return
	}

	hits, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.logger.Error("Search failed", zap.String("query", q), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Search failed")
		return
	}
	s.respondWithJSON(w, http.StatusOK, hits)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("Failed to load stats", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not load stats")
		return
	}
	s.respondWithJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCrawlStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("Failed to load crawl status", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve status")
		return
	}

	status := crawlStatusResponse{
		Pages:    stats.Pages,
		Errors:   stats.Errors,
		Pending:  stats.Pending,
		MaxDepth: stats.MaxDepth,
	}
	if s.crawl != nil {
		progress := s.crawl.Progress()
		status.Running = s.crawl.Running()
		status.Progress = &progress
	}
	s.respondWithJSON(w, http.StatusOK, status)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	depth := defaultTreeDepth
	if raw := r.URL.Query().Get("depth"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, "depth must be an integer")
			return
		}
		depth = n
	}

	tree, err := s.store.Tree(r.Context(), depth)
	if err != nil {
		s.logger.Error("Failed to load tree", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not load tree")
		return
	}
	s.respondWithJSON(w, http.StatusOK, tree)
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := map[string]string{"database": "healthy"}
	if err := s.store.Ping(ctx); err != nil {
		healthStatus["database"] = "unhealthy"
		s.logger.Error("Health check failed for database", zap.Error(err))
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
