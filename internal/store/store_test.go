package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/postchunk/internal/doctree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testSections() []doctree.Section {
	return []doctree.Section{
		{
			HeadingsPath:     doctree.HeadingPath{"Git Notes"},
			HeadingID:        "",
			HeadingHref:      "/notes/git",
			RenderedHeading:  `<h2><a href="/notes/git">Git Notes</a></h2>`,
			RenderedFragment: `<div class="article-fragment"><p>Version control basics.</p></div>`,
			TextChunks:       []string{"Git Notes: Version control basics."},
		},
		{
			HeadingsPath:     doctree.HeadingPath{"Git Notes", "Stop Tracking"},
			HeadingID:        "stop-tracking",
			HeadingHref:      "/notes/git#stop-tracking",
			RenderedHeading:  `<h2><a href="/notes/git#stop-tracking">Git Notes &gt; Stop Tracking</a></h2>`,
			RenderedFragment: `<div class="article-fragment"><p>Use rm with cached.</p></div>`,
			TextChunks: []string{
				"Git Notes > Stop Tracking: Use rm with cached.",
				"Git Notes > Stop Tracking: (language-sh):\ngit rm --cached file\n",
			},
		},
	}
}

func testDoc(mtime time.Time) Document {
	return Document{PostID: "42", RelPath: "notes/git", Title: "Git Notes", UpdatedAt: mtime}
}

func TestOpen_AppliesMigrations(t *testing.T) {
	s := setupTestStore(t)

	v, err := schemaVersion(context.Background(), s.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion(), v.Original())
}

func TestOpen_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Ping(context.Background()))
}

func TestOpen_PragmasApplyToEveryConnection(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	s.db.SetMaxOpenConns(2)
	c1, err := s.db.Conn(ctx)
	require.NoError(t, err)
	defer c1.Close()
	c2, err := s.db.Conn(ctx)
	require.NoError(t, err)
	defer c2.Close()

	for i, c := range []*sql.Conn{c1, c2} {
		var fk, timeout int
		var mode string
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk))
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		require.NoError(t, c.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, 1, fk, "conn %d", i)
		assert.Equal(t, 5000, timeout, "conn %d", i)
		assert.Equal(t, "wal", strings.ToLower(mode), "conn %d", i)
	}
}

func TestOpen_MemoryGetsPragmas(t *testing.T) {
	s := setupTestStore(t)

	var fk int
	require.NoError(t, s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestIDs(t *testing.T) {
	secs := testSections()
	assert.Equal(t, "git-notes", Anchor(secs[0]))
	assert.Equal(t, "stop-tracking", Anchor(secs[1]))
	assert.Equal(t, "42-stop-tracking", SectionID("42", "stop-tracking"))
	assert.Equal(t, "42-1-stop-tracking", ChunkID("42", 1, "stop-tracking"))
}

func TestUniqueAnchors(t *testing.T) {
	secs := []doctree.Section{
		{HeadingsPath: doctree.HeadingPath{"A", "Usage"}},
		{HeadingsPath: doctree.HeadingPath{"B", "Usage"}},
		{HeadingID: "usage-1"},
		{HeadingsPath: doctree.HeadingPath{"C", "Usage"}},
	}
	assert.Equal(t, []string{"usage", "usage-1", "usage-1-1", "usage-2"}, uniqueAnchors(secs))
}

func TestUpsertDocument_AndGetSection(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	mtime := time.Unix(1700000000, 0)

	res, err := s.UpsertDocument(ctx, testDoc(mtime), testSections())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sections)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 0, res.Pruned)

	sec, err := s.GetSection(ctx, "42-stop-tracking")
	require.NoError(t, err)
	assert.Equal(t, "42", sec.PostID)
	assert.Equal(t, 1, sec.Position)
	assert.Equal(t, []string{"Git Notes", "Stop Tracking"}, sec.HeadingsPath)
	assert.Equal(t, "/notes/git#stop-tracking", sec.HeadingHref)
	require.Len(t, sec.Chunks, 2)
	assert.Equal(t, "42-0-stop-tracking", sec.Chunks[0].ID)
	assert.Equal(t, "Git Notes", sec.Chunks[0].PageTitle)
	assert.Equal(t, "Stop Tracking", sec.Chunks[0].SectionHeading)
	assert.True(t, sec.UpdatedAt.Equal(mtime))

	doc, err := s.GetDocument(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "notes/git", doc.RelPath)
}

func TestUpsertDocument_ReindexUpdatesAndPrunes(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertDocument(ctx, testDoc(time.Unix(1, 0)), testSections())
	require.NoError(t, err)

	secs := testSections()[:1]
	secs[0].TextChunks = []string{"Git Notes: Rewritten intro."}
	res, err := s.UpsertDocument(ctx, testDoc(time.Unix(2, 0)), secs)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Pruned) // one section and its two chunks

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{Documents: 1, Sections: 1, Chunks: 1}, counts)

	_, err = s.GetSection(ctx, "42-stop-tracking")
	assert.ErrorIs(t, err, ErrNotFound)

	hits, err := s.Search(ctx, "rewritten", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	hits, err = s.Search(ctx, "basics", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, s.CheckIndex(ctx))
}

func TestUpsertDocument_EmptyPostID(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.UpsertDocument(context.Background(), Document{}, nil)
	assert.Error(t, err)
}

func TestIsUpToDate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	stored := time.Unix(1000, 0)

	ok, err := s.IsUpToDate(ctx, "42", stored)
	require.NoError(t, err)
	assert.False(t, ok, "unknown document is never up to date")

	_, err = s.UpsertDocument(ctx, testDoc(stored), testSections())
	require.NoError(t, err)

	for _, tc := range []struct {
		mtime time.Time
		want  bool
	}{
		{stored, true},
		{stored.Add(500 * time.Millisecond), true},
		{stored.Add(time.Second), true},
		{stored.Add(2 * time.Second), false},
	} {
		ok, err := s.IsUpToDate(ctx, "42", tc.mtime)
		require.NoError(t, err)
		assert.Equal(t, tc.want, ok, "mtime %v", tc.mtime)
	}
}

func TestDeleteDocument(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertDocument(ctx, testDoc(time.Unix(1, 0)), testSections())
	require.NoError(t, err)
	require.NoError(t, s.DeleteDocument(ctx, "42"))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)

	_, err = s.GetDocument(ctx, "42")
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.CheckIndex(ctx))
}

func TestUpsertDocument_RejectsIDOwnedByAnotherPost(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first := []doctree.Section{{HeadingID: "2-intro", HeadingsPath: doctree.HeadingPath{"One"}, TextChunks: []string{"One: first post"}}}
	_, err := s.UpsertDocument(ctx, Document{PostID: "1", RelPath: "one"}, first)
	require.NoError(t, err)

	second := []doctree.Section{{HeadingID: "intro", HeadingsPath: doctree.HeadingPath{"Two"}, TextChunks: []string{"Two: second post"}}}
	require.Equal(t, SectionID("1", "2-intro"), SectionID("1-2", "intro"))
	_, err = s.UpsertDocument(ctx, Document{PostID: "1-2", RelPath: "two"}, second)
	assert.ErrorIs(t, err, ErrIDConflict)

	sec, err := s.GetSection(ctx, "1-2-intro")
	require.NoError(t, err)
	assert.Equal(t, "1", sec.PostID)
	require.Len(t, sec.Chunks, 1)
	assert.Equal(t, "One: first post", sec.Chunks[0].Text)

	_, err = s.GetDocument(ctx, "1-2")
	assert.ErrorIs(t, err, ErrNotFound, "the rejected document is rolled back")

	_, err = s.UpsertDocument(ctx, Document{PostID: "1", RelPath: "one"}, first)
	require.NoError(t, err, "the owner can still reindex")
}

func TestSearch(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertDocument(ctx, testDoc(time.Unix(1, 0)), testSections())
	require.NoError(t, err)

	hits, err := s.Search(ctx, "cached", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1, "both chunks match but belong to one section")
	assert.Equal(t, "42-stop-tracking", hits[0].SectionID)
	assert.Equal(t, "/notes/git#stop-tracking", hits[0].HeadingHref)
	assert.Contains(t, hits[0].Snippet, "**")

	hits, err = s.Search(ctx, `git "notes`, 5)
	require.NoError(t, err, "quotes in user input must not break the query")
	assert.Len(t, hits, 2)

	hits, err = s.Search(ctx, "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_HanFallsBackToLike(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	secs := []doctree.Section{{
		HeadingsPath: doctree.HeadingPath{"笔记"},
		HeadingHref:  "/notes/zh",
		TextChunks:   []string{"笔记: 版本控制的基础知识"},
	}}
	_, err := s.UpsertDocument(ctx, Document{PostID: "7", RelPath: "notes/zh"}, secs)
	require.NoError(t, err)

	hits, err := s.Search(ctx, "控制", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Contains(t, hits[0].Snippet, "**控制**")
}

func TestSearch_LikeWildcardsMatchLiterally(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	secs := []doctree.Section{
		{HeadingID: "pct", HeadingsPath: doctree.HeadingPath{"进度"}, TextChunks: []string{"进度: 100%完成"}},
		{HeadingID: "num", HeadingsPath: doctree.HeadingPath{"进度"}, TextChunks: []string{"进度: 100个完成"}},
		{HeadingID: "under", HeadingsPath: doctree.HeadingPath{"名字"}, TextChunks: []string{"名字: a_b笔"}},
		{HeadingID: "plain", HeadingsPath: doctree.HeadingPath{"名字"}, TextChunks: []string{"名字: axb笔"}},
	}
	_, err := s.UpsertDocument(ctx, Document{PostID: "9", RelPath: "notes/wild"}, secs)
	require.NoError(t, err)

	hits, err := s.Search(ctx, "0%完", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "9-pct", hits[0].SectionID)

	hits, err = s.Search(ctx, "a_b笔", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "9-under", hits[0].SectionID)

	hits, err = s.Search(ctx, `\完`, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearch_SnippetAfterWideningCaseFold(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	secs := []doctree.Section{{HeadingID: "t", HeadingsPath: doctree.HeadingPath{"T"}, TextChunks: []string{"T: ȺȺȺȺȺȺ中"}}}
	_, err := s.UpsertDocument(ctx, Document{PostID: "5", RelPath: "notes/fold"}, secs)
	require.NoError(t, err)

	var hits []Hit
	require.NotPanics(t, func() { hits, err = s.Search(ctx, "中", 5) })
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "T: ȺȺȺȺȺȺ**中**", hits[0].Snippet)
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"git" "rm"`, ftsQuery("git  rm"))
	assert.Equal(t, `"say" """hi"""`, ftsQuery(`say "hi"`))
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "...bc**de**fg...", snippet("abcdefghij", "DE", 2))
	assert.Equal(t, "abcd...", snippet("abcdefghij", "zz", 2))
	assert.Equal(t, "short", snippet("short", "zz", 10))

	// Ⱥ lowercases to a longer UTF-8 sequence.
	assert.NotPanics(t, func() { snippet("ȺȺȺȺȺȺ中", "中", 30) })
	assert.Equal(t, "ȺȺȺȺȺȺ**中**", snippet("ȺȺȺȺȺȺ中", "中", 30))
	assert.Equal(t, "...x**Ⱥ**y...", snippet("xxȺyy", "ⱥ", 1))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%\_a\\b`, escapeLike(`100%_a\b`))
}
