package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/postchunk/internal/doctree"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Document is a parsed HTML page.
type Document struct {
	root  *html.Node
	title string
}

// ParseHTML parses a full HTML page.
func ParseHTML(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{root: root, title: findTitle(root)}, nil
}

// Title returns the text of the <title> element, if any.
func (d *Document) Title() string {
	return d.title
}

// Article returns the first <article> element of the page.
func (d *Document) Article() (doctree.Element, error) {
	n := findElement(d.root, "article")
	if n == nil {
		return nil, doctree.ErrNoArticle
	}
	return &element{n: n}, nil
}

// element adapts *html.Node to doctree.Element.
type element struct {
	n *html.Node
}

func (e *element) Tag() string {
	return e.n.Data
}

func (e *element) Attr(name string) (string, bool) {
	for _, a := range e.n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func (e *element) Children() []doctree.Element {
	var out []doctree.Element
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, &element{n: c})
		}
	}
	return out
}

func (e *element) Text() string {
	var buf strings.Builder
	collectText(e.n, &buf)
	return buf.String()
}

func (e *element) SetAttr(name, value string) {
	for i, a := range e.n.Attr {
		if a.Namespace == "" && a.Key == name {
			e.n.Attr[i].Val = value
			return
		}
	}
	e.n.Attr = append(e.n.Attr, html.Attribute{Key: name, Val: value})
}

func (e *element) Clone() doctree.Element {
	return &element{n: cloneNode(e.n)}
}

func (e *element) Render(w io.Writer) error {
	return html.Render(w, e.n)
}

// Builder creates detached x/net/html elements.
type Builder struct{}

func (Builder) NewElement(tag string, attrs []doctree.Attr, text string, children ...doctree.Element) doctree.Element {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
	}
	for _, a := range attrs {
		n.Attr = append(n.Attr, html.Attribute{Key: a.Key, Val: a.Val})
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
	for _, c := range children {
		ce, ok := c.(*element)
		if !ok {
			// Elements from another backend cannot be attached to this tree.
			continue
		}
		child := ce.n
		if child.Parent != nil {
			child = cloneNode(child)
		}
		n.AppendChild(child)
	}
	return &element{n: n}
}

// cloneNode deep-copies n into a detached subtree.
func cloneNode(n *html.Node) *html.Node {
	out := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
	}
	if len(n.Attr) > 0 {
		out.Attr = make([]html.Attribute, len(n.Attr))
		copy(out.Attr, n.Attr)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		out.AppendChild(cloneNode(c))
	}
	return out
}

func collectText(n *html.Node, buf *strings.Builder) {
	if n.Type == html.TextNode {
		buf.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, buf)
	}
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	collectText(n, &buf)
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
