package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/postchunk/internal/doctree"
)

const samplePage = `<!DOCTYPE html>
<html><head><title>Sample Page</title></head>
<body><nav>menu</nav>
<article>
<h1 id="top">Sample</h1>
<p>Intro with <a href="#later">a link</a>.</p>
<div class="highlight"><pre><code class="language-go"><span>fmt.Println()</span></code></pre></div>
</article>
</body></html>`

func mustArticle(t *testing.T, page string) doctree.Element {
	t.Helper()
	doc, err := ParseHTML(strings.NewReader(page))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	article, err := doc.Article()
	if err != nil {
		t.Fatalf("unexpected article error: %v", err)
	}
	return article
}

func TestParseHTML_TitleAndArticle(t *testing.T) {
	doc, err := ParseHTML(strings.NewReader(samplePage))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title() != "Sample Page" {
		t.Errorf("expected title %q, got %q", "Sample Page", doc.Title())
	}

	article, err := doc.Article()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if article.Tag() != "article" {
		t.Errorf("expected article tag, got %q", article.Tag())
	}

	// Whitespace text nodes between blocks are not element children.
	children := article.Children()
	tags := make([]string, 0, len(children))
	for _, c := range children {
		tags = append(tags, c.Tag())
	}
	if strings.Join(tags, ",") != "h1,p,div" {
		t.Errorf("unexpected children %v", tags)
	}
}

func TestParseHTML_NoArticle(t *testing.T) {
	doc, err := ParseHTML(strings.NewReader("<html><body><p>loose</p></body></html>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := doc.Article(); !errors.Is(err, doctree.ErrNoArticle) {
		t.Errorf("expected ErrNoArticle, got %v", err)
	}
}

func TestElement_AttrAndText(t *testing.T) {
	article := mustArticle(t, samplePage)
	h1 := article.Children()[0]

	id, ok := h1.Attr("id")
	if !ok || id != "top" {
		t.Errorf("expected id=top, got %q (present=%v)", id, ok)
	}
	if _, ok := h1.Attr("class"); ok {
		t.Error("expected missing class attribute")
	}

	p := article.Children()[1]
	if p.Text() != "Intro with a link." {
		t.Errorf("unexpected paragraph text %q", p.Text())
	}
}

func TestElement_CloneIsDetached(t *testing.T) {
	article := mustArticle(t, samplePage)
	p := article.Children()[1]
	link, ok := doctree.Find(p, "a")
	if !ok {
		t.Fatal("expected to find anchor")
	}

	clone := p.Clone()
	cloneLink, _ := doctree.Find(clone, "a")
	cloneLink.SetAttr("href", "/changed")

	if href, _ := link.Attr("href"); href != "#later" {
		t.Errorf("expected original href untouched, got %q", href)
	}
	if href, _ := cloneLink.Attr("href"); href != "/changed" {
		t.Errorf("expected clone href updated, got %q", href)
	}
}

func TestElement_SetAttrAppends(t *testing.T) {
	article := mustArticle(t, samplePage)
	p := article.Children()[1].Clone()
	p.SetAttr("class", "lead")
	if v, ok := p.Attr("class"); !ok || v != "lead" {
		t.Errorf("expected class=lead, got %q", v)
	}
}

func TestBuilder_NewElementRender(t *testing.T) {
	var b Builder
	anchor := b.NewElement("a", []doctree.Attr{{Key: "href", Val: "/notes/x#top"}}, "Notes > X")
	heading := b.NewElement("h2", nil, "", anchor)

	out, err := doctree.Render(heading)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `<h2><a href="/notes/x#top">Notes &gt; X</a></h2>`
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestBuilder_AttachedChildIsCloned(t *testing.T) {
	article := mustArticle(t, samplePage)
	p := article.Children()[1]

	var b Builder
	wrapper := b.NewElement("div", []doctree.Attr{{Key: "class", Val: "article-fragment"}}, "", p)

	if len(article.Children()) != 3 {
		t.Errorf("expected source article to keep 3 children, got %d", len(article.Children()))
	}
	if len(wrapper.Children()) != 1 || wrapper.Children()[0].Text() != p.Text() {
		t.Error("expected wrapper to hold a copy of the paragraph")
	}
}

func TestFind_DepthFirst(t *testing.T) {
	article := mustArticle(t, samplePage)
	code, ok := doctree.Find(article, "code")
	if !ok {
		t.Fatal("expected to find code element")
	}
	if cls, _ := code.Attr("class"); cls != "language-go" {
		t.Errorf("unexpected class %q", cls)
	}
	if _, ok := doctree.Find(article, "table"); ok {
		t.Error("expected no table")
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"index.html", false},
		{"page.HTM", false},
		{"post.md", false},
		{"post.markdown", false},
		{"report.pdf", true},
		{"noext", true},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.filename)
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupported) {
				t.Errorf("%s: expected ErrUnsupported, got %v", tt.filename, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.filename, err)
		}
		if !IsSupportedExtension(tt.filename) {
			t.Errorf("%s: expected supported", tt.filename)
		}
	}
}
