package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/deidaraiorek/docgraph/internal/fetcher"
	"github.com/deidaraiorek/docgraph/internal/frontier"
	"github.com/deidaraiorek/docgraph/internal/metrics"
	"github.com/deidaraiorek/docgraph/internal/parser"
	"github.com/deidaraiorek/docgraph/internal/scope"
	"github.com/deidaraiorek/docgraph/internal/storage"
)

// Renderer is the render/extract collaborator: it turns a locator into a
// structured document or fails.
type Renderer interface {
	Render(ctx context.Context, locator string) (*parser.Document, error)
}

// Store is the part of the storage layer the crawl writes through.
type Store interface {
	UpsertPage(ctx context.Context, in storage.PageInput) (int64, bool, error)
	RecordLinks(ctx context.Context, fromID int64, links []storage.DiscoveredLink) error
	Lookup(ctx context.Context, stableID, locator string) (*storage.PageSummary, error)
	DiscoveredLinks(ctx context.Context, fromID int64) ([]storage.DiscoveredLink, error)
}

type Config struct {
	SeedURL string
	// MaxPages <= 0 means no page cap.
	MaxPages int
	// MaxDepth < 0 means no depth cap.
	MaxDepth int
	// MaxDuration <= 0 means no wall-clock cap.
	MaxDuration  time.Duration
	FetchTimeout time.Duration
	// Delay between fetches; zero disables throttling.
	Delay        time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	// Recrawl fetches pages that are already committed instead of replaying
	// them from the store.
	Recrawl bool
	// RefetchErrors fetches committed error stubs again on resume.
	RefetchErrors bool
}

type StopReason string

const (
	StopFrontierExhausted StopReason = "frontier exhausted"
	StopMaxPages          StopReason = "max pages"
	StopMaxDepth          StopReason = "max depth"
	StopMaxDuration       StopReason = "max duration"
	StopCanceled          StopReason = "canceled"
)

// Report summarizes one crawl run.
type Report struct {
	Committed     int           `json:"committed"`
	Fetched       int           `json:"fetched"`
	Replayed      int           `json:"replayed"`
	Failed        int           `json:"failed"`
	Skipped       int           `json:"skipped"`
	ScopeRejected int           `json:"scope_rejected"`
	Queued        int           `json:"queued"`
	StopReason    StopReason    `json:"stop_reason,omitempty"`
	Duration      time.Duration `json:"duration"`
}

var ErrAlreadyRunning = errors.New("crawl already running")

type Scheduler struct {
	config   Config
	store    Store
	renderer Renderer
	filter   *scope.Filter
	identity scope.Identity
	logger   *zap.Logger
	metrics  *metrics.Metrics
	observer Observer
	now      func() time.Time

	mu       sync.Mutex
	running  bool
	progress Report
}

type Option func(*Scheduler)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// WithClock replaces time.Now for the duration cap.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(store Store, renderer Renderer, filter *scope.Filter, identity scope.Identity, config Config, opts ...Option) *Scheduler {
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	s := &Scheduler{
		config:   config,
		store:    store,
		renderer: renderer,
		filter:   filter,
		identity: identity,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Running reports whether a crawl is in progress.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Progress returns a snapshot of the current or last run.
func (s *Scheduler) Progress() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// run holds the mutable state of one crawl. Each Run gets its own frontier.
type run struct {
	frontier *frontier.Frontier
	limiter  *rate.Limiter
	start    time.Time
	report   Report
}

// Run crawls breadth-first from the seed until the frontier is exhausted or
// a cap is hit. Caps and cancellation end the run cleanly with everything
// committed so far retained; only storage failures are returned as errors.
func (s *Scheduler) Run(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	s.running = true
	s.progress = Report{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	seed, err := scope.Normalize(s.config.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}

	r := &run{
		frontier: frontier.New(),
		start:    s.now(),
	}
	if s.config.Delay > 0 {
		r.limiter = rate.NewLimiter(rate.Every(s.config.Delay), 1)
	}

	seedItem := frontier.Item{Locator: seed, StableID: s.identity.StableID(seed)}
	r.frontier.Push(seedItem)
	r.report.Queued++
	s.emit(Event{Locator: seed, Depth: 0, State: StateQueued})

	s.logger.Info("crawl started",
		zap.String("seed", seed),
		zap.Int("max_pages", s.config.MaxPages),
		zap.Int("max_depth", s.config.MaxDepth),
		zap.Duration("max_duration", s.config.MaxDuration))

	err = s.loop(ctx, r)
	r.report.Duration = s.now().Sub(r.start)
	s.publish(r)

	if err != nil {
		s.logger.Error("crawl aborted", zap.Error(err), zap.Int("committed", r.report.Committed))
		return &r.report, err
	}

	s.logger.Info("crawl finished",
		zap.String("stop_reason", string(r.report.StopReason)),
		zap.Int("committed", r.report.Committed),
		zap.Int("fetched", r.report.Fetched),
		zap.Int("replayed", r.report.Replayed),
		zap.Int("failed", r.report.Failed),
		zap.Int("scope_rejected", r.report.ScopeRejected),
		zap.Duration("duration", r.report.Duration))
	return &r.report, nil
}

func (s *Scheduler) loop(ctx context.Context, r *run) error {
	for {
		if ctx.Err() != nil {
			r.report.StopReason = StopCanceled
			return nil
		}

		item, ok := r.frontier.Pop()
		if !ok {
			r.report.StopReason = StopFrontierExhausted
			return nil
		}
		s.metrics.SetFrontierSize(r.frontier.Size())

		if reason, stop := s.capReached(r, item); stop {
			r.report.StopReason = reason
			s.logger.Info("crawl cap reached", zap.String("cap", string(reason)),
				zap.String("next_locator", item.Locator), zap.Int("next_depth", item.Depth))
			return nil
		}

		if err := s.visit(ctx, r, item); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					r.report.StopReason = StopCanceled
					return nil
				}
			}
			return err
		}
		s.publish(r)
	}
}

func (s *Scheduler) capReached(r *run, item frontier.Item) (StopReason, bool) {
	if s.config.MaxPages > 0 && r.report.Committed >= s.config.MaxPages {
		return StopMaxPages, true
	}
	if s.config.MaxDepth >= 0 && item.Depth > s.config.MaxDepth {
		return StopMaxDepth, true
	}
	if s.config.MaxDuration > 0 && s.now().Sub(r.start) >= s.config.MaxDuration {
		return StopMaxDuration, true
	}
	return "", false
}

// visit handles one popped location: replay from the store when it is
// already committed, otherwise fetch, commit and expand.
func (s *Scheduler) visit(ctx context.Context, r *run, item frontier.Item) error {
	existing, err := s.store.Lookup(ctx, item.StableID, item.Locator)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if err == nil && s.shouldReplay(existing) {
		return s.replay(ctx, r, item, existing)
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	doc, err := s.fetchWithRetry(ctx, item)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return s.commitStub(ctx, r, item, err)
	}

	r.report.Fetched++
	s.emit(Event{Locator: item.Locator, Depth: item.Depth, State: StateFetched})

	stableID := item.StableID
	if stableID == "" && doc.StableID != "" {
		stableID = doc.StableID
		r.frontier.MarkSeen(frontier.Item{StableID: stableID})
	}

	status := storage.StatusOK
	if strings.TrimSpace(doc.Body) == "" {
		status = storage.StatusEmpty
	}
	title := doc.Title
	if title == "" || title == "Untitled" {
		if item.LinkText != "" {
			title = item.LinkText
		}
	}
	s.emit(Event{Locator: item.Locator, Depth: item.Depth, State: StateExtracted})

	id, created, err := s.store.UpsertPage(ctx, storage.PageInput{
		Locator:  item.Locator,
		StableID: stableID,
		Title:    title,
		Body:     doc.Body,
		Depth:    item.Depth,
		ParentID: item.ParentID,
		Status:   status,
	})
	if err != nil {
		return err
	}

	// an update keeps the depth set at first discovery
	depth := item.Depth
	if !created {
		stored, err := s.store.Lookup(ctx, stableID, item.Locator)
		if err != nil {
			return err
		}
		depth = stored.Depth
	}

	links := make([]storage.DiscoveredLink, 0, len(doc.Links))
	for _, link := range doc.Links {
		links = append(links, storage.DiscoveredLink{Locator: link.Locator, StableID: link.StableID, Text: link.Text})
	}
	if err := s.store.RecordLinks(ctx, id, links); err != nil {
		return err
	}

	r.report.Committed++
	s.metrics.IncPagesCommitted(string(status))
	s.emit(Event{Locator: item.Locator, Depth: item.Depth, State: StateCommitted, PageID: id})
	s.logger.Info("page committed",
		zap.String("locator", item.Locator),
		zap.Int64("id", id),
		zap.Int("depth", item.Depth),
		zap.String("status", string(status)),
		zap.Int("links", len(links)))

	s.enqueue(r, links, id, depth+1)
	return nil
}

func (s *Scheduler) shouldReplay(existing *storage.PageSummary) bool {
	if s.config.Recrawl {
		return false
	}
	if existing.Status == storage.StatusError && s.config.RefetchErrors {
		return false
	}
	return true
}

// replay expands an already committed page from its stored links without
// fetching it again.
func (s *Scheduler) replay(ctx context.Context, r *run, item frontier.Item, existing *storage.PageSummary) error {
	links, err := s.store.DiscoveredLinks(ctx, existing.ID)
	if err != nil {
		return err
	}

	r.report.Replayed++
	r.report.Committed++
	s.emit(Event{Locator: item.Locator, Depth: existing.Depth, State: StateCommitted, PageID: existing.ID, Replayed: true})
	s.logger.Debug("page replayed from store",
		zap.String("locator", item.Locator),
		zap.Int64("id", existing.ID),
		zap.Int("links", len(links)))

	s.enqueue(r, links, existing.ID, existing.Depth+1)
	return nil
}

// commitStub records a page that could not be fetched so the tree keeps the
// node and its position.
func (s *Scheduler) commitStub(ctx context.Context, r *run, item frontier.Item, fetchErr error) error {
	id, _, err := s.store.UpsertPage(ctx, storage.PageInput{
		Locator:  item.Locator,
		StableID: item.StableID,
		Title:    item.LinkText,
		Depth:    item.Depth,
		ParentID: item.ParentID,
		Status:   storage.StatusError,
	})
	if err != nil {
		return err
	}

	r.report.Failed++
	r.report.Committed++
	s.metrics.IncPagesCommitted(string(storage.StatusError))
	s.emit(Event{Locator: item.Locator, Depth: item.Depth, State: StateFailed, PageID: id, Err: fetchErr})
	s.logger.Warn("page failed, committed as error stub",
		zap.String("locator", item.Locator),
		zap.Int64("id", id),
		zap.Error(fetchErr))
	return nil
}

func (s *Scheduler) enqueue(r *run, links []storage.DiscoveredLink, parentID int64, depth int) {
	for _, link := range links {
		decision := s.filter.Check(link.Locator, link.StableID, link.Text)
		if !decision.Allowed {
			r.report.ScopeRejected++
			s.metrics.IncScopeRejected(string(decision.Reason))
			s.logger.Debug("link out of scope",
				zap.String("locator", link.Locator),
				zap.String("text", link.Text),
				zap.String("reason", string(decision.Reason)))
			continue
		}

		parent := parentID
		child := frontier.Item{
			Locator:  link.Locator,
			StableID: link.StableID,
			LinkText: link.Text,
			Depth:    depth,
			ParentID: &parent,
		}
		if !r.frontier.Push(child) {
			r.report.Skipped++
			s.emit(Event{Locator: child.Locator, Depth: depth, State: StateSkipped})
			continue
		}
		r.report.Queued++
		s.emit(Event{Locator: child.Locator, Depth: depth, State: StateQueued})
	}
	s.metrics.SetFrontierSize(r.frontier.Size())
}

func (s *Scheduler) fetchWithRetry(ctx context.Context, item frontier.Item) (*parser.Document, error) {
	var lastErr error

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := s.config.RetryBackoff * time.Duration(attempt)
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
		}

		started := time.Now()
		fetchCtx, cancel := context.WithTimeout(ctx, s.config.FetchTimeout)
		doc, err := s.renderer.Render(fetchCtx, item.Locator)
		cancel()

		if err == nil {
			s.metrics.ObserveFetch("ok", time.Since(started))
			return doc, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !fetcher.IsRetryable(err) || attempt == s.config.MaxRetries {
			s.metrics.ObserveFetch("failed", time.Since(started))
			break
		}

		s.metrics.ObserveFetch("retry", time.Since(started))
		s.logger.Debug("retrying fetch",
			zap.String("locator", item.Locator),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, lastErr
}

func (s *Scheduler) publish(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = r.report
	s.progress.Duration = s.now().Sub(r.start)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
