// Package frontmatter splits Hugo-style front matter from a Markdown source.
package frontmatter

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Meta holds the front matter fields the indexer relies on.
type Meta struct {
	Title string
	ID    string
	Draft bool
}

type rawMeta struct {
	Title string `yaml:"title" toml:"title"`
	ID    any    `yaml:"id" toml:"id"`
	Draft bool   `yaml:"draft" toml:"draft"`
}

const (
	yamlFence = "---"
	tomlFence = "+++"
)

// Parse returns the front matter metadata and the remaining body. Sources
// without front matter yield a zero Meta and the full source as body.
func Parse(src []byte) (Meta, []byte, error) {
	if head, body, ok := split(src, yamlFence); ok {
		var raw rawMeta
		if err := yaml.Unmarshal(head, &raw); err != nil {
			return Meta{}, nil, fmt.Errorf("parse yaml front matter: %w", err)
		}
		return raw.meta(), body, nil
	}
	if head, body, ok := split(src, tomlFence); ok {
		var raw rawMeta
		if _, err := toml.Decode(string(head), &raw); err != nil {
			return Meta{}, nil, fmt.Errorf("parse toml front matter: %w", err)
		}
		return raw.meta(), body, nil
	}
	return Meta{}, src, nil
}

func (r rawMeta) meta() Meta {
	return Meta{
		Title: r.Title,
		ID:    idString(r.ID),
		Draft: r.Draft,
	}
}

// idString accepts string and numeric ids.
func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}

// split cuts src into the block between an opening fence on the first line
// and the next line consisting of the same fence.
func split(src []byte, fence string) (head, body []byte, ok bool) {
	first, rest, found := cutLine(src)
	if !found || string(bytes.TrimRight(first, "\r")) != fence {
		return nil, nil, false
	}
	start := len(src) - len(rest)
	offset := start
	for len(rest) > 0 {
		line, next, _ := cutLine(rest)
		if string(bytes.TrimRight(line, "\r")) == fence {
			return src[start:offset], next, true
		}
		offset += len(rest) - len(next)
		rest = next
	}
	return nil, nil, false
}

// cutLine splits off the first line of b without its newline.
func cutLine(b []byte) (line, rest []byte, found bool) {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i], b[i+1:], true
	}
	return b, nil, false
}
