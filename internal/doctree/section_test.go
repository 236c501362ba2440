package doctree

import (
	"reflect"
	"testing"
)

func TestHeadingPath_PushTruncates(t *testing.T) {
	tests := []struct {
		name  string
		path  HeadingPath
		level int
		text  string
		want  HeadingPath
	}{
		{"first heading", nil, 1, "A", HeadingPath{"A"}},
		{"descend", HeadingPath{"A"}, 2, "B", HeadingPath{"A", "B"}},
		{"sibling", HeadingPath{"A", "B"}, 2, "C", HeadingPath{"A", "C"}},
		{"pop back to level 2", HeadingPath{"A", "B", "C", "D"}, 2, "X", HeadingPath{"A", "X"}},
		{"new h1 resets", HeadingPath{"A", "B", "C"}, 1, "Z", HeadingPath{"Z"}},
		{"skipped level keeps what exists", HeadingPath{"A"}, 3, "C", HeadingPath{"A", "C"}},
		{"first heading below h1", nil, 2, "B", HeadingPath{"B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.path.Push(tt.level, tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Push(%d, %q) on %v: expected %v, got %v", tt.level, tt.text, tt.path, tt.want, got)
			}
		})
	}
}

func TestHeadingPath_PushDoesNotAlias(t *testing.T) {
	base := HeadingPath{"A", "B", "C"}
	first := base.Push(2, "X")
	second := base.Push(2, "Y")

	if first[1] != "X" {
		t.Errorf("expected first path to keep %q, got %q", "X", first[1])
	}
	if second[1] != "Y" {
		t.Errorf("expected second path %q, got %q", "Y", second[1])
	}
	if !reflect.DeepEqual(base, HeadingPath{"A", "B", "C"}) {
		t.Errorf("expected base path unchanged, got %v", base)
	}
}

func TestHeadingPath_Accessors(t *testing.T) {
	p := HeadingPath{"Post", "Setup", "Install"}
	if p.String() != "Post > Setup > Install" {
		t.Errorf("unexpected String(): %q", p.String())
	}
	if p.First() != "Post" || p.Last() != "Install" {
		t.Errorf("unexpected First/Last: %q %q", p.First(), p.Last())
	}

	var empty HeadingPath
	if empty.First() != "" || empty.Last() != "" || empty.String() != "" {
		t.Error("expected empty accessors for an empty path")
	}
}

func TestHeadingLevel(t *testing.T) {
	for i, tag := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		if got := HeadingLevel(tag); got != i+1 {
			t.Errorf("HeadingLevel(%q): expected %d, got %d", tag, i+1, got)
		}
	}
	for _, tag := range []string{"p", "h7", "header", ""} {
		if got := HeadingLevel(tag); got != 0 {
			t.Errorf("HeadingLevel(%q): expected 0, got %d", tag, got)
		}
	}
}
