package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/postchunk/internal/doctree"
	"github.com/dgallion1/postchunk/internal/frontmatter"
	"github.com/dgallion1/postchunk/internal/parser"
	"github.com/dgallion1/postchunk/internal/scan"
	"github.com/dgallion1/postchunk/internal/sectioner"
	"github.com/dgallion1/postchunk/internal/store"
)

// Outcome is what happened to one source file.
type Outcome string

const (
	OutcomeIndexed  Outcome = "indexed"
	OutcomeUpToDate Outcome = "up_to_date"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeFailed   Outcome = "failed"
)

// Result describes the processing of one source file.
type Result struct {
	RelPath  string        `json:"rel_path"`
	PostID   string        `json:"post_id,omitempty"`
	Outcome  Outcome       `json:"outcome"`
	Reason   string        `json:"reason,omitempty"`
	Sections int           `json:"sections"`
	Chunks   int           `json:"chunks"`
	Pruned   int           `json:"pruned"`
	Duration time.Duration `json:"duration_ns"`
}

// Store is the persistence the processor writes to.
type Store interface {
	IsUpToDate(ctx context.Context, postID string, mtime time.Time) (bool, error)
	UpsertDocument(ctx context.Context, doc store.Document, sections []doctree.Section) (store.UpsertResult, error)
}

// Options controls per-file policy.
type Options struct {
	// RenderMissing renders the Markdown body when the site has no page for it.
	RenderMissing bool
}

// Processor turns one Markdown source and its rendered page into stored
// sections. It is safe for concurrent use.
type Processor struct {
	store     Store
	sectioner *sectioner.Sectioner
	log       *slog.Logger
	opts      Options
	latency   *LatencyStats
}

func NewProcessor(st Store, sec *sectioner.Sectioner, log *slog.Logger, opts Options) *Processor {
	return &Processor{
		store:     st,
		sectioner: sec,
		log:       log,
		opts:      opts,
		latency:   NewLatencyStats(time.Hour),
	}
}

// Latency returns the rolling per-document processing latency.
func (p *Processor) Latency() *LatencyStats {
	return p.latency
}

// ProcessFile indexes f unless it is skipped by policy or already up to date.
// A non-nil error always comes with OutcomeFailed.
func (p *Processor) ProcessFile(ctx context.Context, f scan.File, force bool) (Result, error) {
	start := time.Now()
	res := Result{RelPath: f.RelPath}
	log := p.log.With("rel_path", f.RelPath)

	fail := func(err error) (Result, error) {
		res.Outcome = OutcomeFailed
		res.Reason = err.Error()
		res.Duration = time.Since(start)
		log.Error("processing failed", "error", err)
		return res, err
	}
	skip := func(outcome Outcome, reason string) (Result, error) {
		res.Outcome = outcome
		res.Reason = reason
		res.Duration = time.Since(start)
		log.Info("skipped", "outcome", outcome, "reason", reason)
		return res, nil
	}

	src, err := os.ReadFile(f.Path)
	if err != nil {
		return fail(fmt.Errorf("read source: %w", err))
	}
	meta, body, err := frontmatter.Parse(src)
	if err != nil {
		return fail(err)
	}
	res.PostID = meta.ID
	log = log.With("post_id", meta.ID)

	if meta.ID == "" {
		return skip(OutcomeSkipped, "missing id")
	}
	if meta.Draft {
		return skip(OutcomeSkipped, "draft")
	}
	if !force {
		ok, err := p.store.IsUpToDate(ctx, meta.ID, f.Mtime)
		if err != nil {
			return fail(err)
		}
		if ok {
			return skip(OutcomeUpToDate, "")
		}
	}

	title := meta.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(f.Path), filepath.Ext(f.Path))
	}

	var doc *parser.Document
	switch {
	case f.HasHTML:
		doc, err = loadHTML(f.HTMLPath)
	case p.opts.RenderMissing:
		doc, err = renderMarkdown(title, body)
	default:
		return skip(OutcomeSkipped, "no rendered page at "+f.HTMLPath)
	}
	if err != nil {
		return fail(err)
	}

	sections, err := p.sectioner.SectionsFromDocument(doc, f.RelPath)
	if err != nil {
		return fail(fmt.Errorf("section %s: %w", f.RelPath, err))
	}

	record := store.Document{
		PostID:     meta.ID,
		RelPath:    f.RelPath,
		Title:      title,
		SourcePath: f.Path,
		UpdatedAt:  f.Mtime,
	}
	up, err := withRetry(ctx, log, func() (store.UpsertResult, error) {
		return p.store.UpsertDocument(ctx, record, sections)
	})
	if err != nil {
		return fail(err)
	}

	res.Outcome = OutcomeIndexed
	res.Sections = up.Sections
	res.Chunks = up.Chunks
	res.Pruned = up.Pruned
	res.Duration = time.Since(start)
	p.latency.Record(res.Duration)
	log.Info("indexed", "sections", up.Sections, "chunks", up.Chunks, "pruned", up.Pruned, "duration_ms", res.Duration.Milliseconds())
	return res, nil
}

// Sections parses a single uploaded document and sections it without
// touching the store. The parser is chosen by the file extension.
func (p *Processor) Sections(r io.Reader, filename, relPath string) ([]doctree.Section, string, error) {
	pr, err := parser.ForFile(filename)
	if err != nil {
		return nil, "", err
	}
	doc, err := pr.Parse(r, filename)
	if err != nil {
		return nil, "", fmt.Errorf("parse %s: %w", filename, err)
	}
	sections, err := p.sectioner.SectionsFromDocument(doc, relPath)
	if err != nil {
		return nil, "", err
	}
	return sections, doc.Title(), nil
}

func loadHTML(path string) (*parser.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rendered page: %w", err)
	}
	defer f.Close()
	return parser.ParseHTML(f)
}

func renderMarkdown(title string, body []byte) (*parser.Document, error) {
	page, err := parser.RenderArticle(title, body)
	if err != nil {
		return nil, err
	}
	return parser.ParseHTML(bytes.NewReader(page))
}
