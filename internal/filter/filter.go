// Package filter decides which article elements belong in a section and
// rewrites same-page links so fragments keep working outside their page.
package filter

import (
	"strings"

	"github.com/dgallion1/postchunk/internal/doctree"
)

const (
	footnotesClass = "footnotes"
	termsClass     = "terms"
	timeTag        = "time"
)

// Exclude reports whether el is page furniture rather than section content.
// Only the element itself is inspected; the caller drops its whole subtree.
func Exclude(el doctree.Element) bool {
	if el.Tag() == timeTag {
		return true
	}
	class, _ := el.Attr("class")
	return class == footnotesClass || class == termsClass
}

// RewriteLinks returns a copy of el in which every same-page anchor
// (href="#frag") points at /<relPath>#frag. el itself is left untouched.
func RewriteLinks(el doctree.Element, relPath string) doctree.Element {
	out := el.Clone()
	doctree.Walk(out, func(e doctree.Element) {
		if e.Tag() != "a" {
			return
		}
		href, ok := e.Attr("href")
		if !ok || !strings.HasPrefix(href, "#") {
			return
		}
		e.SetAttr("href", "/"+relPath+href)
	})
	return out
}

// Admit applies Exclude and, for admitted elements, RewriteLinks.
func Admit(el doctree.Element, relPath string) (doctree.Element, bool) {
	if Exclude(el) {
		return nil, false
	}
	return RewriteLinks(el, relPath), true
}
