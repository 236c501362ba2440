package frontmatter

import (
	"strings"
	"testing"
)

func TestParse_YAML(t *testing.T) {
	src := "---\ntitle: \"Roger Bacon as Magician\"\nid: 42\ndraft: false\n---\n\n# Body\n"
	meta, body, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Title != "Roger Bacon as Magician" {
		t.Errorf("expected title, got %q", meta.Title)
	}
	if meta.ID != "42" {
		t.Errorf("expected id %q, got %q", "42", meta.ID)
	}
	if meta.Draft {
		t.Error("expected draft=false")
	}
	if string(body) != "\n# Body\n" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestParse_TOML(t *testing.T) {
	src := "+++\ntitle = \"Notes\"\nid = \"abc-123\"\ndraft = true\n+++\nBody text.\n"
	meta, body, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Title != "Notes" || meta.ID != "abc-123" || !meta.Draft {
		t.Errorf("unexpected meta %+v", meta)
	}
	if string(body) != "Body text.\n" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestParse_CRLF(t *testing.T) {
	src := "---\r\ntitle: Windows\r\nid: w1\r\n---\r\nbody"
	meta, body, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.ID != "w1" {
		t.Errorf("expected id %q, got %q", "w1", meta.ID)
	}
	if string(body) != "body" {
		t.Errorf("unexpected body %q", body)
	}
}

func TestParse_NoFrontMatter(t *testing.T) {
	src := "# Just markdown\n\nText."
	meta, body, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta != (Meta{}) {
		t.Errorf("expected zero meta, got %+v", meta)
	}
	if string(body) != src {
		t.Errorf("expected body unchanged, got %q", body)
	}
}

func TestParse_UnterminatedFence(t *testing.T) {
	src := "---\ntitle: never closed\n"
	meta, body, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta != (Meta{}) || string(body) != src {
		t.Errorf("expected source treated as body, got meta=%+v body=%q", meta, body)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	src := "---\ntitle: [unclosed\n---\nbody"
	_, _, err := Parse([]byte(src))
	if err == nil {
		t.Fatal("expected error for invalid yaml")
	}
	if !strings.Contains(err.Error(), "yaml") {
		t.Errorf("expected yaml context in error, got %v", err)
	}
}
