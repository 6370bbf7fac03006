package listing

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const descriptionLimit = 200

// Block-level elements end a line in the flattened text so that the line
// sensitive patterns (addresses, labelled localities) stop where the page does.
var lineBreaking = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Li: true, atom.Tr: true,
	atom.Td: true, atom.Th: true, atom.Dt: true, atom.Dd: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true, atom.Ul: true, atom.Ol: true,
}

// Text flattens the selection into plain text with one line per block element.
func Text(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeText(&b, n)
	}
	return b.String()
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if n.DataAtom == atom.Script || n.DataAtom == atom.Style || n.DataAtom == atom.Noscript {
			return
		}
	}

	breaks := n.Type == html.ElementNode && lineBreaking[n.DataAtom]
	if breaks {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if breaks {
		b.WriteByte('\n')
	}
}

// Collapse joins all whitespace runs into single spaces.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Describe returns the collapsed text cut to the description limit on a rune boundary.
func Describe(text string) string {
	s := Collapse(text)
	if utf8.RuneCountInString(s) <= descriptionLimit {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:descriptionLimit]))
}
