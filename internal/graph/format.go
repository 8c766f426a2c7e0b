package graph

import (
	"fmt"
	"strings"

	"github.com/deidaraiorek/docgraph/internal/classifier"
)

const maxListed = 20

// Format renders the resolution as a short markdown answer.
func (r Resolution) Format() string {
	if !r.Matched {
		return fmt.Sprintf("No document matching '%s' was found.", r.Phrase)
	}

	title := displayTitle(r.Subject.Title)
	var b strings.Builder

	switch r.Relation {
	case classifier.Parent:
		if len(r.Nodes) == 0 {
			fmt.Fprintf(&b, "**'%s'** has no parent. It is a root node.", title)
			break
		}
		fmt.Fprintf(&b, "**Parent of '%s':**\n", title)
		writeNode(&b, r.Nodes[0], "")
	case classifier.Children:
		if len(r.Nodes) == 0 {
			fmt.Fprintf(&b, "**'%s'** has no children indexed yet.", title)
			break
		}
		fmt.Fprintf(&b, "**Children of '%s' (%d total):**\n", title, len(r.Nodes))
		writeNodes(&b, r.Nodes)
	case classifier.Siblings:
		if len(r.Nodes) == 0 {
			fmt.Fprintf(&b, "No siblings found for **'%s'**.", title)
			break
		}
		fmt.Fprintf(&b, "**Siblings of '%s' (%d total):**\n", title, len(r.Nodes))
		writeNodes(&b, r.Nodes)
	case classifier.PathToRoot:
		fmt.Fprintf(&b, "**Path from root to '%s':**\n", title)
		for i, n := range r.Nodes {
			prefix := ""
			if i > 0 {
				prefix = strings.Repeat("  ", i) + "└─ "
			}
			fmt.Fprintf(&b, "%s**%s**\n", prefix, displayTitle(n.Title))
		}
	case classifier.OutboundLinks:
		if len(r.Links) == 0 {
			fmt.Fprintf(&b, "No outgoing links indexed for **'%s'**.", title)
			break
		}
		fmt.Fprintf(&b, "**Links from '%s' (%d total):**\n", title, len(r.Links))
		for i, l := range r.Links {
			if i == maxListed {
				fmt.Fprintf(&b, "  _(and %d more)_\n", len(r.Links)-maxListed)
				break
			}
			fmt.Fprintf(&b, "  • %s\n", l.Label())
		}
	}

	out := strings.TrimRight(b.String(), "\n")
	if r.Candidates > 1 {
		out += fmt.Sprintf("\n\n_Note: found %d documents matching '%s'. Showing results for the closest match: '%s'._",
			r.Candidates, r.Phrase, title)
	}
	return out
}

func writeNodes(b *strings.Builder, nodes []Node) {
	for i, n := range nodes {
		if i == maxListed {
			fmt.Fprintf(b, "  _(and %d more)_\n", len(nodes)-maxListed)
			return
		}
		writeNode(b, n, "  ")
	}
}

func writeNode(b *strings.Builder, n Node, indent string) {
	fmt.Fprintf(b, "%s• **%s**\n%s  %s\n", indent, displayTitle(n.Title), indent, n.Locator)
}

func displayTitle(title string) string {
	if title == "" {
		return "Untitled"
	}
	return title
}
