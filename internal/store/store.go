// Package store persists sections and chunks in SQLite and searches the
// chunks with FTS5.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dgallion1/postchunk/internal/doctree"
	"github.com/dgallion1/postchunk/internal/slug"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrIDConflict is returned when a document derives a section or chunk id
// that another document already owns.
var ErrIDConflict = errors.New("id owned by another document")

// ErrBusy is returned when the database is locked by another connection.
var ErrBusy = errors.New("database busy")

const driverName = "sqlite"

// Store is a SQLite-backed section and chunk index.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
// Use ":memory:" for a throwaway database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}

	db, err := sql.Open(driverName, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// connPragmas run on every new connection the driver opens.
var connPragmas = []string{
	"busy_timeout(5000)",
	"foreign_keys(1)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
}

// dsn appends connPragmas to path as _pragma parameters. The driver strips
// the query from plain paths and ":memory:" before opening the file.
func dsn(path string) string {
	q := make(url.Values)
	q["_pragma"] = connPragmas
	return path + "?" + q.Encode()
}

// isBusy reports whether err is SQLITE_BUSY or SQLITE_LOCKED, extended codes included.
func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return true
	}
	return false
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Document is the bookkeeping row for one source page.
type Document struct {
	PostID     string    `json:"post_id"`
	RelPath    string    `json:"rel_path"`
	Title      string    `json:"title"`
	SourcePath string    `json:"source_path,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Section is a stored section with its chunks.
type Section struct {
	ID           string    `json:"section_id"`
	PostID       string    `json:"post_id"`
	Position     int       `json:"position"`
	HeadingID    string    `json:"heading_id"`
	HeadingHref  string    `json:"heading_href"`
	HeadingsPath []string  `json:"headings_path"`
	HTMLHeading  string    `json:"html_heading"`
	HTMLFragment string    `json:"html_fragment"`
	UpdatedAt    time.Time `json:"updated_at"`
	Chunks       []Chunk   `json:"chunks,omitempty"`
}

// Chunk is one stored text chunk and its metadata.
type Chunk struct {
	ID             string    `json:"chunk_id"`
	SectionID      string    `json:"section_id"`
	PostID         string    `json:"post_id"`
	Index          int       `json:"chunk_index"`
	Text           string    `json:"text"`
	PageTitle      string    `json:"page_title"`
	SectionHeading string    `json:"section_heading"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Counts summarizes the contents of the store.
type Counts struct {
	Documents int `json:"documents"`
	Sections  int `json:"sections"`
	Chunks    int `json:"chunks"`
}

// Anchor is the stable per-document key of a section: its heading id, or the
// slug of its innermost heading when the heading has no id.
func Anchor(sec doctree.Section) string {
	if sec.HeadingID != "" {
		return sec.HeadingID
	}
	return slug.Make(sec.HeadingsPath.Last())
}

// SectionID is "<post_id>-<anchor>".
func SectionID(postID, anchor string) string {
	return postID + "-" + anchor
}

// ChunkID is "<post_id>-<chunk index>-<anchor>".
func ChunkID(postID string, index int, anchor string) string {
	return postID + "-" + strconv.Itoa(index) + "-" + anchor
}

// uniqueAnchors returns one anchor per section, suffixing repeats with -1,
// -2 and so on so that duplicate headings do not overwrite each other.
func uniqueAnchors(sections []doctree.Section) []string {
	used := make(map[string]bool, len(sections))
	out := make([]string, len(sections))
	for i, sec := range sections {
		base := Anchor(sec)
		a := base
		for n := 1; used[a]; n++ {
			a = base + "-" + strconv.Itoa(n)
		}
		used[a] = true
		out[i] = a
	}
	return out
}

func toSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / 1e9
}

func fromSeconds(f float64) time.Time {
	if f == 0 {
		return time.Time{}
	}
	return time.Unix(0, int64(f*1e9)).UTC()
}
