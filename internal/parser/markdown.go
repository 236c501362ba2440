package parser

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/postchunk/internal/frontmatter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmparser "github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
	"golang.org/x/net/html"
)

// MarkdownParser renders Markdown to the same article markup a Hugo site
// produces and parses the result.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	meta, body, err := frontmatter.Parse(src)
	if err != nil {
		return nil, err
	}
	title := meta.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	page, err := RenderArticle(title, body)
	if err != nil {
		return nil, err
	}
	doc, err := ParseHTML(bytes.NewReader(page))
	if err != nil {
		return nil, err
	}
	doc.title = title
	return doc, nil
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(gmparser.WithAutoHeadingID()),
	goldmark.WithRendererOptions(
		renderer.WithNodeRenderers(util.Prioritized(&highlightRenderer{}, 100)),
	),
)

// RenderArticle renders a Markdown body into a full page whose <article>
// starts with the title as <h1>, the way the site templates lay pages out.
func RenderArticle(title string, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html><head><title>")
	buf.WriteString(html.EscapeString(title))
	buf.WriteString("</title></head><body><article>\n")
	if title != "" {
		buf.WriteString("<h1>")
		buf.WriteString(html.EscapeString(title))
		buf.WriteString("</h1>\n")
	}
	if err := markdown.Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}
	buf.WriteString("</article></body></html>\n")
	return buf.Bytes(), nil
}

// highlightRenderer writes code blocks in Hugo's highlight markup: one
// span.line per source line inside div.highlight > pre > code.
type highlightRenderer struct{}

func (r *highlightRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCodeBlock)
	reg.Register(ast.KindCodeBlock, r.renderCodeBlock)
}

func (r *highlightRenderer) renderFencedCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)
	writeHighlight(w, source, n.Lines(), string(n.Language(source)))
	return ast.WalkContinue, nil
}

func (r *highlightRenderer) renderCodeBlock(w util.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	writeHighlight(w, source, node.Lines(), "")
	return ast.WalkContinue, nil
}

func writeHighlight(w util.BufWriter, source []byte, lines *text.Segments, lang string) {
	if lang == "" {
		lang = "text"
	}
	escLang := util.EscapeHTML([]byte(lang))
	_, _ = w.WriteString(`<div class="highlight"><pre tabindex="0"><code class="language-`)
	_, _ = w.Write(escLang)
	_, _ = w.WriteString(`" data-lang="`)
	_, _ = w.Write(escLang)
	_, _ = w.WriteString(`">`)
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		_, _ = w.WriteString(`<span class="line"><span class="cl">`)
		_, _ = w.Write(util.EscapeHTML(line.Value(source)))
		_, _ = w.WriteString(`</span></span>`)
	}
	_, _ = w.WriteString("</code></pre></div>\n")
}
