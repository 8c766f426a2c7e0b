package graph

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/deidaraiorek/docgraph/internal/classifier"
)

const candidateLimit = 10

// Resolution is the answer to a structural question. Matched is false when
// the subject named no known page; callers then fall back to lexical
// retrieval.
type Resolution struct {
	Matched    bool
	Relation   classifier.Relation
	Phrase     string
	Subject    Node
	Candidates int
	Nodes      []Node
	Links      []Link
}

// Sources lists the pages the answer was built from, subject first.
func (r Resolution) Sources() []Node {
	if !r.Matched {
		return nil
	}
	out := []Node{r.Subject}
	for _, n := range r.Nodes {
		if n.ID != r.Subject.ID {
			out = append(out, n)
		}
	}
	return out
}

type Resolver struct {
	tree   Tree
	logger *zap.Logger
}

func NewResolver(tree Tree, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{tree: tree, logger: logger}
}

// Resolve answers a graph query. An error is returned only when the tree
// itself fails; an unknown subject yields an unmatched resolution.
func (r *Resolver) Resolve(ctx context.Context, q classifier.Query) (Resolution, error) {
	res := Resolution{Relation: q.Relation}
	if q.Kind != classifier.Graph {
		return res, nil
	}

	res.Phrase = NormalizeSubject(q.Subject)
	if res.Phrase == "" {
		return res, nil
	}

	candidates, err := r.tree.FindByTitle(ctx, res.Phrase, candidateLimit)
	if err != nil {
		return res, err
	}
	if len(candidates) == 0 {
		r.logger.Debug("No page matches subject", zap.String("subject", res.Phrase))
		return res, nil
	}
	sortCandidates(candidates)

	res.Matched = true
	res.Subject = candidates[0]
	res.Candidates = len(candidates)
	if res.Candidates > 1 {
		r.logger.Debug("Ambiguous subject",
			zap.String("subject", res.Phrase),
			zap.Int("candidates", res.Candidates),
			zap.Int64("chosen", res.Subject.ID),
		)
	}

	switch q.Relation {
	case classifier.Parent:
		parent, err := r.tree.ParentOf(ctx, res.Subject.ID)
		if err != nil {
			return res, err
		}
		if parent != nil {
			res.Nodes = []Node{*parent}
		}
	case classifier.Children:
		res.Nodes, err = r.tree.ChildrenOf(ctx, res.Subject.ID)
	case classifier.Siblings:
		res.Nodes, err = r.siblings(ctx, res.Subject.ID)
	case classifier.PathToRoot:
		res.Nodes, err = r.pathToRoot(ctx, res.Subject)
	case classifier.OutboundLinks:
		res.Links, err = r.tree.OutboundLinks(ctx, res.Subject.ID)
	}
	return res, err
}

func (r *Resolver) siblings(ctx context.Context, id int64) ([]Node, error) {
	parent, err := r.tree.ParentOf(ctx, id)
	if err != nil || parent == nil {
		return nil, err
	}

	children, err := r.tree.ChildrenOf(ctx, parent.ID)
	if err != nil {
		return nil, err
	}
	siblings := make([]Node, 0, len(children))
	for _, c := range children {
		if c.ID != id {
			siblings = append(siblings, c)
		}
	}
	return siblings, nil
}

// pathToRoot walks parent links upward and returns the chain root first,
// ending at node. A repeated id stops the walk.
func (r *Resolver) pathToRoot(ctx context.Context, node Node) ([]Node, error) {
	path := []Node{node}
	seen := map[int64]bool{node.ID: true}

	current := node
	for {
		parent, err := r.tree.ParentOf(ctx, current.ID)
		if err != nil {
			return nil, err
		}
		if parent == nil || seen[parent.ID] {
			break
		}
		seen[parent.ID] = true
		path = append(path, *parent)
		current = *parent
	}

	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}

var (
	leadingDeterminer = regexp.MustCompile(`(?i)^(?:the|a|an)\s+`)
	trailingInThe     = regexp.MustCompile(`(?i)\s+in\s+the\b.*$`)
)

// NormalizeSubject reduces a captured subject phrase to something worth
// matching against titles.
func NormalizeSubject(s string) string {
	s = strings.TrimSpace(s)
	for {
		before := s
		s = strings.Trim(s, " \t\"'`?.!,;:")
		s = trailingInThe.ReplaceAllString(s, "")
		s = leadingDeterminer.ReplaceAllString(s, "")
		if s == before {
			return s
		}
	}
}
