package retrieval

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/deidaraiorek/docgraph/internal/cache"
	"github.com/deidaraiorek/docgraph/internal/llm"
	"github.com/deidaraiorek/docgraph/internal/metrics"
	"github.com/deidaraiorek/docgraph/internal/storage"
	"github.com/deidaraiorek/docgraph/internal/textprocessor"
)

const (
	DefaultTopN       = 6
	DefaultWindow     = 8000
	DefaultLeadOffset = 200
)

type Config struct {
	TopN   int
	Window int
	// LeadOffset is where an excerpt without an anchor starts. Zero is a
	// valid offset; a negative value selects DefaultLeadOffset.
	LeadOffset int
	// Acronyms are added to the built-in expansions; an entry here replaces
	// a built-in one with the same key.
	Acronyms map[string]string
}

func (c Config) withDefaults() Config {
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.LeadOffset < 0 {
		c.LeadOffset = DefaultLeadOffset
	}

	merged := make(map[string]string, len(textprocessor.DefaultAcronyms)+len(c.Acronyms))
	for k, v := range textprocessor.DefaultAcronyms {
		merged[k] = v
	}
	for k, v := range c.Acronyms {
		merged[k] = v
	}
	c.Acronyms = merged
	return c
}

// Store is the read-only slice of the page store retrieval needs.
type Store interface {
	LexicalSearch(ctx context.Context, terms []string, limit int) ([]storage.SearchHit, error)
	GetPage(ctx context.Context, id int64) (*storage.Page, error)
}

// Source is a page an answer drew on.
type Source struct {
	ID      int64   `json:"id"`
	Title   string  `json:"title"`
	Locator string  `json:"url"`
	Score   float64 `json:"score"`
}

type Resolver struct {
	store   Store
	tp      *textprocessor.TextProcessor
	gen     llm.Generator
	cache   cache.Cache
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
}

type Option func(*Resolver)

func WithCache(c cache.Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

func NewResolver(store Store, gen llm.Generator, cfg Config, opts ...Option) *Resolver {
	r := &Resolver{
		store:  store,
		tp:     textprocessor.NewTextProcessor(),
		gen:    gen,
		cfg:    cfg.withDefaults(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search runs the ranked lexical search for a question.
func (r *Resolver) Search(ctx context.Context, text string) ([]storage.SearchHit, error) {
	terms := r.tp.PrepareQuery(text, r.cfg.Acronyms)
	if len(terms) == 0 {
		return []storage.SearchHit{}, nil
	}

	key := cache.Key(terms, r.cfg.TopN)
	if r.cache != nil {
		hits, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.logger.Warn("Search cache read failed", zap.Error(err))
		}
		r.metrics.IncCacheLookup(ok)
		if ok {
			return hits, nil
		}
	}

	start := time.Now()
	hits, err := r.store.LexicalSearch(ctx, terms, r.cfg.TopN)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Lexical search",
		zap.Strings("terms", terms),
		zap.Int("hits", len(hits)),
		zap.Duration("duration", time.Since(start)),
	)

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, hits); err != nil {
			r.logger.Warn("Search cache write failed", zap.Error(err))
		}
	}
	return hits, nil
}

// Context builds one excerpt per search hit, in rank order. Hits whose page
// has since disappeared are skipped.
func (r *Resolver) Context(ctx context.Context, text string) ([]llm.Excerpt, []Source, error) {
	hits, err := r.Search(ctx, text)
	if err != nil {
		return nil, nil, err
	}

	excerpts := make([]llm.Excerpt, 0, len(hits))
	sources := make([]Source, 0, len(hits))
	for _, hit := range hits {
		page, err := r.store.GetPage(ctx, hit.ID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		excerpts = append(excerpts, llm.Excerpt{
			Title:   page.Title,
			Locator: page.Locator,
			Text:    Excerpt(page.Body, hit.Snippet, r.cfg.Window, r.cfg.LeadOffset),
		})
		sources = append(sources, Source{
			ID:      page.ID,
			Title:   page.Title,
			Locator: page.Locator,
			Score:   hit.Score,
		})
	}
	return excerpts, sources, nil
}

// Stream retrieves context for a question and opens a generation stream
// over it. The caller owns the stream and must close it.
func (r *Resolver) Stream(ctx context.Context, text string) (llm.Stream, []Source, error) {
	excerpts, sources, err := r.Context(ctx, text)
	if err != nil {
		return nil, nil, err
	}

	stream, err := r.gen.Generate(ctx, llm.Request{Query: text, Excerpts: excerpts})
	if err != nil {
		r.metrics.IncGenerationErrors()
		r.logger.Error("Generation failed", zap.String("query", text), zap.Error(err))
		return nil, sources, err
	}
	return stream, sources, nil
}

// Answer is Stream buffered into one string. No partial text is returned
// when generation fails midway.
func (r *Resolver) Answer(ctx context.Context, text string) (string, []Source, error) {
	stream, sources, err := r.Stream(ctx, text)
	if err != nil {
		return "", sources, err
	}

	answer, err := llm.Collect(stream)
	if err != nil {
		r.metrics.IncGenerationErrors()
		r.logger.Error("Generation stream failed", zap.String("query", text), zap.Error(err))
		return "", sources, err
	}
	return answer, sources, nil
}
