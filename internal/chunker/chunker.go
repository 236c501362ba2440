package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/postchunk/internal/doctree"
)

// ErrMissingCode is returned when a highlight block has no nested <code>.
var ErrMissingCode = errors.New("highlight block has no code element")

// DefaultBudget is the approximate word budget of one chunk, heading prefix included.
const DefaultBudget = 256

const highlightClass = "highlight"

// Config controls chunking behavior.
type Config struct {
	Budget int // Word budget per chunk; the prefix length is subtracted from it.

	// KeepEmptyChunk emits a bare heading-prefix chunk for sections that
	// yield no entries.
	KeepEmptyChunk bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Budget: DefaultBudget}
}

// Chunker turns a section's admitted elements into embeddable text chunks.
// It holds no per-call state and is safe for concurrent use.
type Chunker struct {
	cfg Config
}

func New(cfg Config) *Chunker {
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	return &Chunker{cfg: cfg}
}

// Chunk extracts the entries of children and packs them under path.
func (c *Chunker) Chunk(children []doctree.Element, path doctree.HeadingPath) ([]string, error) {
	entries, err := Extract(children)
	if err != nil {
		return nil, err
	}
	return c.Pack(entries, path), nil
}

// Extract walks the direct children of a section in order and returns its
// paragraph and code entries. A code block absorbs a paragraph that
// immediately precedes it in the entry list.
func Extract(children []doctree.Element) ([]doctree.ContentEntry, error) {
	var entries []doctree.ContentEntry
	for i, el := range children {
		switch {
		case el.Tag() == "p":
			entries = append(entries, doctree.ContentEntry{
				Kind: doctree.EntryParagraph,
				Text: joinLines(el.Text()),
			})
		case isHighlight(el):
			code, err := codeText(el)
			if err != nil {
				return nil, fmt.Errorf("section child %d: %w", i, err)
			}
			if n := len(entries); n > 0 && entries[n-1].Kind == doctree.EntryParagraph {
				entries[n-1] = doctree.ContentEntry{
					Kind: doctree.EntryCode,
					Text: entries[n-1].Text + "\n" + code,
				}
				continue
			}
			entries = append(entries, doctree.ContentEntry{Kind: doctree.EntryCode, Text: code})
		}
	}
	return entries, nil
}

// Prefix is the heading context written in front of every chunk.
func Prefix(path doctree.HeadingPath) string {
	return path.String() + ": "
}

// packState is the running fold over a section's entries.
type packState struct {
	words  int
	buffer string
	chunks []string
}

// Pack groups entries into chunks under the word budget. Code entries always
// close the current chunk and open a new one.
func (c *Chunker) Pack(entries []doctree.ContentEntry, path doctree.HeadingPath) []string {
	prefix := Prefix(path)
	threshold := c.cfg.Budget - utf8.RuneCountInString(prefix)

	var st packState
	for _, e := range entries {
		st = st.add(e, prefix, threshold)
	}
	return st.finish(prefix, c.cfg.KeepEmptyChunk)
}

func (s packState) add(e doctree.ContentEntry, prefix string, threshold int) packState {
	s.words += WordCount(e.Text)
	if s.words < threshold && e.Kind != doctree.EntryCode {
		if s.buffer != "" {
			s.buffer += "\n" + e.Text
		} else {
			s.buffer = e.Text
		}
		return s
	}
	if s.buffer != "" {
		s.chunks = append(s.chunks, prefix+s.buffer)
	}
	s.buffer = e.Text
	s.words = 0
	return s
}

func (s packState) finish(prefix string, keepEmpty bool) []string {
	if s.buffer == "" && !keepEmpty {
		return s.chunks
	}
	return append(s.chunks, prefix+s.buffer)
}

func isHighlight(el doctree.Element) bool {
	class, _ := el.Attr("class")
	return class == highlightClass
}

// codeText renders a highlight block as "(<language>):\n" followed by its
// source lines. Lines carry their own newlines, so none are added.
func codeText(el doctree.Element) (string, error) {
	code, ok := doctree.Find(el, "code")
	if !ok {
		return "", ErrMissingCode
	}
	lang, _ := code.Attr("class")

	var sb strings.Builder
	sb.WriteString("(")
	sb.WriteString(lang)
	sb.WriteString("):\n")
	lines := code.Children()
	if len(lines) == 0 {
		sb.WriteString(code.Text())
	}
	for _, line := range lines {
		sb.WriteString(line.Text())
	}
	return sb.String(), nil
}

// joinLines replaces each line break with a single space.
func joinLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSuffix(s, "\n")
	return strings.ReplaceAll(s, "\n", " ")
}
