package answer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/deidaraiorek/docgraph/internal/classifier"
	"github.com/deidaraiorek/docgraph/internal/graph"
	"github.com/deidaraiorek/docgraph/internal/llm"
	"github.com/deidaraiorek/docgraph/internal/metrics"
	"github.com/deidaraiorek/docgraph/internal/retrieval"
)

type Path string

const (
	PathGraph   Path = "graph"
	PathLexical Path = "lexical"
)

type GraphResolver interface {
	Resolve(ctx context.Context, q classifier.Query) (graph.Resolution, error)
}

type Retriever interface {
	Stream(ctx context.Context, text string) (llm.Stream, []retrieval.Source, error)
}

// Response is the routed answer to one question. Stream always yields the
// answer text; for graph answers it replays Text.
type Response struct {
	Path    Path
	Query   classifier.Query
	Text    string
	Stream  llm.Stream
	Sources []retrieval.Source
}

// Engine classifies a question, tries the graph, and falls back to lexical
// retrieval when the question is not structural, names no known page, or
// the graph lookup fails. Only a lexical failure is returned to the caller.
type Engine struct {
	graph     GraphResolver
	retriever Retriever
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

func NewEngine(g GraphResolver, r Retriever, logger *zap.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{graph: g, retriever: r, logger: logger, metrics: m}
}

func (e *Engine) Ask(ctx context.Context, text string) (*Response, error) {
	start := time.Now()
	q := classifier.Classify(text)

	if q.Kind == classifier.Graph {
		res, err := e.graph.Resolve(ctx, q)
		switch {
		case err != nil:
			e.metrics.IncGraphFallback("error")
			e.logger.Warn("Graph resolution failed, falling back to lexical retrieval",
				zap.String("relation", q.Relation.String()),
				zap.String("subject", q.Subject),
				zap.Error(err),
			)
		case res.Matched:
			out := res.Format()
			e.observe(PathGraph, q, start)
			return &Response{
				Path:    PathGraph,
				Query:   q,
				Text:    out,
				Stream:  llm.NewTextStream(out),
				Sources: graphSources(res),
			}, nil
		default:
			e.metrics.IncGraphFallback("no_match")
			e.logger.Info("No graph match, falling back to lexical retrieval",
				zap.String("relation", q.Relation.String()),
				zap.String("subject", res.Phrase),
			)
		}
	}

	stream, sources, err := e.retriever.Stream(ctx, q.Text)
	if err != nil {
		return nil, err
	}
	e.observe(PathLexical, q, start)
	return &Response{
		Path:    PathLexical,
		Query:   q,
		Stream:  stream,
		Sources: sources,
	}, nil
}

// Answer is Ask with the stream drained into Response.Text.
func (e *Engine) Answer(ctx context.Context, text string) (*Response, error) {
	resp, err := e.Ask(ctx, text)
	if err != nil {
		return nil, err
	}
	if resp.Path == PathGraph {
		resp.Stream.Close()
		return resp, nil
	}

	out, err := llm.Collect(resp.Stream)
	if err != nil {
		e.metrics.IncGenerationErrors()
		return nil, err
	}
	resp.Text = out
	return resp, nil
}

func (e *Engine) observe(path Path, q classifier.Query, start time.Time) {
	elapsed := time.Since(start)
	e.metrics.ObserveQuery(string(path), elapsed)
	e.logger.Info("Query routed",
		zap.String("path", string(path)),
		zap.String("kind", q.Kind.String()),
		zap.Duration("latency", elapsed),
	)
}

func graphSources(res graph.Resolution) []retrieval.Source {
	nodes := res.Sources()
	out := make([]retrieval.Source, len(nodes))
	for i, n := range nodes {
		out[i] = retrieval.Source{ID: n.ID, Title: n.Title, Locator: n.Locator}
	}
	return out
}
