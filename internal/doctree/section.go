package doctree

import "strings"

// PathSeparator joins heading path entries in breadcrumbs and chunk prefixes.
const PathSeparator = " > "

// HeadingPath is the breadcrumb of enclosing heading texts, index 0 being level 1.
type HeadingPath []string

// Push returns the path for a heading at level: entries at or below level are
// dropped and text is appended. The receiver is never modified.
func (p HeadingPath) Push(level int, text string) HeadingPath {
	keep := level - 1
	if keep < 0 {
		keep = 0
	}
	if keep > len(p) {
		keep = len(p)
	}
	out := make(HeadingPath, keep, keep+1)
	copy(out, p[:keep])
	return append(out, text)
}

// String joins the path with PathSeparator.
func (p HeadingPath) String() string {
	return strings.Join(p, PathSeparator)
}

// First returns the page-level heading, or "" for an empty path.
func (p HeadingPath) First() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// Last returns the innermost heading, or "" for an empty path.
func (p HeadingPath) Last() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

// Section is one heading-delimited span of a document plus its text chunks.
type Section struct {
	HeadingsPath     HeadingPath `json:"headings_path"`
	HeadingID        string      `json:"heading_id"`
	HeadingHref      string      `json:"heading_href"`
	RenderedHeading  string      `json:"html_heading"`
	RenderedFragment string      `json:"html_fragment"`
	TextChunks       []string    `json:"text_chunks"`
}

// EntryKind tags a ContentEntry.
type EntryKind int

const (
	EntryParagraph EntryKind = iota
	EntryCode
)

func (k EntryKind) String() string {
	if k == EntryCode {
		return "code"
	}
	return "p"
}

// ContentEntry is one paragraph or code unit extracted from a section before packing.
type ContentEntry struct {
	Kind EntryKind
	Text string
}
