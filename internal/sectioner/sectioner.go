// Package sectioner splits an article into heading-delimited sections.
package sectioner

import (
	"fmt"
	"strings"

	"github.com/dgallion1/postchunk/internal/chunker"
	"github.com/dgallion1/postchunk/internal/doctree"
	"github.com/dgallion1/postchunk/internal/filter"
)

// ErrNoArticle is returned when a document has no article root.
var ErrNoArticle = doctree.ErrNoArticle

const fragmentClass = "article-fragment"

// ArticleSource is a parsed document that can expose its article root.
type ArticleSource interface {
	Article() (doctree.Element, error)
}

// Sectioner walks the direct children of an article root. It keeps no state
// between calls and may be shared across goroutines.
type Sectioner struct {
	builder doctree.Builder
	chunker *chunker.Chunker
}

func New(b doctree.Builder, c *chunker.Chunker) *Sectioner {
	if c == nil {
		c = chunker.New(chunker.DefaultConfig())
	}
	return &Sectioner{builder: b, chunker: c}
}

// open is the accumulator for the section currently being read.
type open struct {
	path     doctree.HeadingPath
	id       string
	href     string
	heading  doctree.Element
	admitted []doctree.Element
}

// SectionsFromDocument resolves the article root of src and sections it.
func (s *Sectioner) SectionsFromDocument(src ArticleSource, relPath string) ([]doctree.Section, error) {
	root, err := src.Article()
	if err != nil {
		return nil, err
	}
	return s.Sections(root, relPath)
}

// Sections returns the sections of root in document order. Content before the
// first heading is dropped, as is any section without non-whitespace text.
func (s *Sectioner) Sections(root doctree.Element, relPath string) ([]doctree.Section, error) {
	if root == nil {
		return nil, ErrNoArticle
	}

	var (
		out  []doctree.Section
		cur  *open
		path doctree.HeadingPath
	)
	for _, child := range root.Children() {
		if level := doctree.HeadingLevel(child.Tag()); level > 0 {
			if cur != nil {
				sec, ok, err := s.finalize(cur)
				if err != nil {
					return nil, err
				}
				if ok {
					out = append(out, sec)
				}
			}
			path = path.Push(level, strings.TrimSpace(child.Text()))
			cur = s.openSection(child, path, relPath)
			continue
		}
		if cur == nil {
			continue
		}
		if el, ok := filter.Admit(child, relPath); ok {
			cur.admitted = append(cur.admitted, el)
		}
	}

	if cur != nil {
		sec, ok, err := s.finalize(cur)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, sec)
		}
	}
	return out, nil
}

// openSection builds the breadcrumb heading link for a new section.
func (s *Sectioner) openSection(heading doctree.Element, path doctree.HeadingPath, relPath string) *open {
	id, _ := heading.Attr("id")
	href := "/" + relPath
	if id != "" {
		href += "#" + id
	}
	anchor := s.builder.NewElement("a", []doctree.Attr{{Key: "href", Val: href}}, path.String())
	return &open{
		path:    path,
		id:      id,
		href:    href,
		heading: s.builder.NewElement("h2", nil, "", anchor),
	}
}

func (s *Sectioner) finalize(cur *open) (doctree.Section, bool, error) {
	if !doctree.HasText(cur.admitted...) {
		return doctree.Section{}, false, nil
	}

	fragment := s.builder.NewElement("div", []doctree.Attr{{Key: "class", Val: fragmentClass}}, "", cur.admitted...)
	fragmentHTML, err := doctree.Render(fragment)
	if err != nil {
		return doctree.Section{}, false, fmt.Errorf("render fragment %q: %w", cur.path.String(), err)
	}
	headingHTML, err := doctree.Render(cur.heading)
	if err != nil {
		return doctree.Section{}, false, fmt.Errorf("render heading %q: %w", cur.path.String(), err)
	}
	chunks, err := s.chunker.Chunk(fragment.Children(), cur.path)
	if err != nil {
		return doctree.Section{}, false, fmt.Errorf("chunk section %q: %w", cur.path.String(), err)
	}
	if chunks == nil {
		chunks = []string{}
	}

	return doctree.Section{
		HeadingsPath:     cur.path,
		HeadingID:        cur.id,
		HeadingHref:      cur.href,
		RenderedHeading:  headingHTML,
		RenderedFragment: fragmentHTML,
		TextChunks:       chunks,
	}, true, nil
}
