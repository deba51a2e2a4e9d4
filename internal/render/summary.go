package render

import (
	"strings"

	nethtml "golang.org/x/net/html"
)

// SummaryText reduces an HTML item summary to plain text: tags are
// dropped, entities decoded and whitespace collapsed. Script and style
// subtrees are skipped entirely.
func SummaryText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}

	root, err := nethtml.Parse(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}

	var b strings.Builder
	collectText(root, &b)
	return strings.Join(strings.Fields(b.String()), " ")
}

func collectText(n *nethtml.Node, b *strings.Builder) {
	if n.Type == nethtml.ElementNode {
		switch n.Data {
		case "script", "style":
			return
		case "br", "p", "div", "li", "tr":
			b.WriteByte(' ')
		}
	}
	if n.Type == nethtml.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
