package epub

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"brc/bionic"
)

// Elements whose text is never prose: reformatting it would change the
// document behavior rather than its reading flow.
var nonProseTags = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Title:    true,
	atom.Noscript: true,
	atom.Textarea: true,
	atom.Pre:      true,
	atom.Code:     true,
	atom.Svg:      true,
}

func isNonProse(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if n.DataAtom != 0 {
		return nonProseTags[n.DataAtom]
	}
	switch strings.ToLower(n.Data) {
	case "script", "style", "title", "noscript", "textarea", "pre", "code", "svg":
		return true
	}
	return false
}

// Inject rewrites every prose text node of an already parsed document
// with inline emphasis: each word's bold prefix is wrapped in a <b>
// element, punctuation stays outside the wrapper, and words are rejoined
// with single spaces. Whitespace-only nodes are left alone so document
// formatting survives.
func Inject(doc *html.Node, ratio float64) {
	for _, n := range collectProseText(doc) {
		injectTextNode(n, ratio)
	}
}

// collectProseText gathers the text nodes up front: injection replaces
// nodes in place and walking a tree while rewriting it skips siblings.
func collectProseText(n *html.Node) []*html.Node {
	var nodes []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if isNonProse(n) {
			return
		}
		if n.Type == html.TextNode && strings.TrimSpace(n.Data) != "" {
			nodes = append(nodes, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return nodes
}

// injectTextNode replaces a single text node with a sequence of text and
// <b> nodes carrying the emphasis split of every word.
func injectTextNode(n *html.Node, ratio float64) {

	tokens := strings.Fields(n.Data)
	if len(tokens) == 0 {
		return
	}

	parent := n.Parent
	var pending strings.Builder
	flush := func() {
		if pending.Len() > 0 {
			parent.InsertBefore(&html.Node{Type: html.TextNode, Data: pending.String()}, n)
			pending.Reset()
		}
	}

	for i, tok := range tokens {
		if i > 0 {
			pending.WriteByte(' ')
		}

		lead, core, trail := bionic.Decompose(tok)
		if core == "" {
			// Nothing to emphasize, the token passes through whole.
			pending.WriteString(tok)
			continue
		}
		bold, regular := bionic.Split(tok, ratio)

		pending.WriteString(lead)
		flush()

		b := &html.Node{Type: html.ElementNode, DataAtom: atom.B, Data: "b"}
		b.AppendChild(&html.Node{Type: html.TextNode, Data: strings.TrimPrefix(bold, lead)})
		parent.InsertBefore(b, n)

		pending.WriteString(strings.TrimSuffix(regular, trail))
		pending.WriteString(trail)
	}
	flush()
	parent.RemoveChild(n)
}

// documentTitle extracts a listing title from chapter markup: the first
// heading wins, the <title> element is the fallback.
func documentTitle(markup []byte) string {

	doc, err := html.Parse(bytes.NewReader(markup))
	if err != nil {
		return ""
	}

	var heading, title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if heading != "" {
			return
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.H1, atom.H2, atom.H3:
				if t := strings.TrimSpace(nodeText(n)); t != "" {
					heading = t
					return
				}
			case atom.Title:
				if title == "" {
					title = strings.TrimSpace(nodeText(n))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if heading != "" {
		return heading
	}
	return title
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func findBody(doc *html.Node) *html.Node {
	var body *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Body {
			body = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return body
}
