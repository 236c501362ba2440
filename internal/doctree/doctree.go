package doctree

import (
	"errors"
	"io"
	"strings"
)

// ErrNoArticle is returned when a page has no <article> root to section.
var ErrNoArticle = errors.New("document has no article element")

// Element is the view of a parsed HTML element that the filter, sectioner
// and chunker work against. It is implemented once per parser backend.
type Element interface {
	Tag() string
	Attr(name string) (string, bool)
	Children() []Element // Element children only, in document order.
	Text() string        // All descendant text, in document order.

	SetAttr(name, value string)
	Clone() Element // Detached deep copy.
	Render(w io.Writer) error
}

// Attr is a single attribute for a synthesized element.
type Attr struct {
	Key string
	Val string
}

// Builder creates detached elements in the same backend as a parsed document.
type Builder interface {
	NewElement(tag string, attrs []Attr, text string, children ...Element) Element
}

// Find returns the first descendant of el (depth-first, el excluded) with the given tag.
func Find(el Element, tag string) (Element, bool) {
	for _, c := range el.Children() {
		if c.Tag() == tag {
			return c, true
		}
		if found, ok := Find(c, tag); ok {
			return found, true
		}
	}
	return nil, false
}

// Walk visits el and every descendant element in pre-order.
func Walk(el Element, fn func(Element)) {
	fn(el)
	for _, c := range el.Children() {
		Walk(c, fn)
	}
}

// HasText reports whether any of the elements carries non-whitespace text.
func HasText(els ...Element) bool {
	for _, el := range els {
		if strings.TrimSpace(el.Text()) != "" {
			return true
		}
	}
	return false
}

// Render serializes the elements back to back.
func Render(els ...Element) (string, error) {
	var sb strings.Builder
	for _, el := range els {
		if err := el.Render(&sb); err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}

// HeadingLevel returns 1-6 for h1-h6 and 0 for anything else.
func HeadingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}
