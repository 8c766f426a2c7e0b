package classifier

import (
	"regexp"
	"strings"
)

type Kind int

const (
	Lexical Kind = iota
	Graph
)

func (k Kind) String() string {
	if k == Graph {
		return "graph"
	}
	return "lexical"
}

type Relation int

const (
	NoRelation Relation = iota
	Parent
	Children
	Siblings
	PathToRoot
	OutboundLinks
)

func (r Relation) String() string {
	switch r {
	case Parent:
		return "parent"
	case Children:
		return "children"
	case Siblings:
		return "siblings"
	case PathToRoot:
		return "path_to_root"
	case OutboundLinks:
		return "outbound_links"
	default:
		return "none"
	}
}

// Query is the routing decision for one question. Graph queries carry the
// relation asked about and the raw subject phrase; lexical queries carry
// only the text.
type Query struct {
	Kind     Kind
	Relation Relation
	Subject  string
	Text     string
}

type pattern struct {
	relation Relation
	re       *regexp.Regexp
}

const (
	// lead is an optional question opener. The structural phrase has to
	// follow it directly, so "the compliance path for ..." never matches.
	lead = `^(?:(?:what\s+is|what's|which\s+is|what\s+are|show(?:\s+me)?|give\s+me|list|find)\s+)?(?:the\s+)?`
	// designator is a document label such as "Section 2485" or a quoted title.
	designator = `((?:title|division|chapter|subchapter|article|section|subsection|part|subpart|appendix)\s+\d[\w.\-]*|'[^']+'|"[^"]+")`
	tail       = `[\s?.!]*$`
)

// Each pattern captures the subject phrase in group 1. Order matters: the
// first match wins. A phrasing belongs here only if it cannot also be a
// content question; "related to", "structure of", "links to", "path for"
// and "parent for" are absent for that reason. Phrasings that are
// structural only for document labels require a designator subject.
var patterns = []pattern{
	{PathToRoot, regexp.MustCompile(`(?i)` + lead + `path\s+from\s+(?:the\s+)?(?:root|top)\s+to\s+(.+)$`)},
	{PathToRoot, regexp.MustCompile(`(?i)` + lead + `path\s+(?:from\s+.+?\s+)?to\s+` + designator + tail)},
	{PathToRoot, regexp.MustCompile(`(?i)` + lead + `path\s+to\s+(.+?)\s+in\s+the\s+(?:hierarchy|tree)` + tail)},
	{PathToRoot, regexp.MustCompile(`(?i)\bancestors?\s+of\s+(.+)$`)},
	{PathToRoot, regexp.MustCompile(`(?i)^where\s+(?:does|do|is)\s+(.+?)\s+(?:sit|fit|belong|fall|located)s?\s+in\s+the\s+(?:hierarchy|tree)\b`)},
	{PathToRoot, regexp.MustCompile(`(?i)^where\s+(?:does|do|is)\s+` + designator + `\s+(?:sit|fit|belong|fall)s?\b`)},
	{PathToRoot, regexp.MustCompile(`(?i)^where\s+is\s+(.+?)\s+in\s+the\s+(?:hierarchy|tree)\b`)},
	{Parent, regexp.MustCompile(`(?i)` + lead + `parent\s+(?:page\s+|document\s+)?of\s+(.+)$`)},
	{Parent, regexp.MustCompile(`(?i)^what\s+(?:is|sits?)\s+(?:directly\s+)?above\s+(.+)$`)},
	{Children, regexp.MustCompile(`(?i)\bchild(?:ren)?\s+of\s+(.+)$`)},
	{Children, regexp.MustCompile(`(?i)^what\s+(?:is|sits?)\s+(?:directly\s+)?below\s+(.+)$`)},
	{Siblings, regexp.MustCompile(`(?i)\bsiblings?\s+of\s+(.+)$`)},
	{OutboundLinks, regexp.MustCompile(`(?i)\boutgoing\s+links?\s+(?:of|from|in)\s+(.+)$`)},
	{OutboundLinks, regexp.MustCompile(`(?i)` + lead + `(?:all\s+)?links?\s+from\s+(.+)$`)},
	{OutboundLinks, regexp.MustCompile(`(?i)^what\s+links?\s+does\s+(.+?)\s+have` + tail)},
}

// Classify routes a question. Anything not matching a structural phrasing
// is lexical.
func Classify(text string) Query {
	trimmed := strings.TrimSpace(text)

	for _, p := range patterns {
		m := p.re.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		subject := strings.TrimSpace(m[1])
		if subject == "" {
			continue
		}
		return Query{
			Kind:     Graph,
			Relation: p.relation,
			Subject:  subject,
			Text:     trimmed,
		}
	}

	return Query{Kind: Lexical, Text: trimmed}
}
