package extract

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Elements whose content is never readable page text.
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Header:   true,
	atom.Form:     true,
	atom.Aside:    true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Button:   true,
	atom.Select:   true,
	atom.Textarea: true,
	atom.Template: true,
}

// Preferred content containers, checked before falling back to <body>.
var contentElements = []atom.Atom{atom.Article, atom.Main}

// minContentLength is the shortest main-content text preferred over the body.
const minContentLength = 100

// HTMLText returns the readable text of an HTML document, preferring the
// longest <article> or <main> element over the whole body.
func HTMLText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", err
	}

	best := ""
	for _, a := range contentElements {
		for _, n := range findAll(doc, a) {
			if text := nodeText(n); len(text) > len(best) {
				best = text
			}
		}
	}
	if len(best) >= minContentLength {
		return best, nil
	}

	if bodies := findAll(doc, atom.Body); len(bodies) > 0 {
		if text := nodeText(bodies[0]); text != "" {
			return text, nil
		}
	}
	if best != "" {
		return best, nil
	}
	return nodeText(doc), nil
}

func findAll(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skippedElements[n.DataAtom] {
				return
			}
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(s)
			}
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
