package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode"
)

// DefaultSearchLimit is used when Search is called with a non-positive limit.
const DefaultSearchLimit = 7

// Hit is one search result: the best matching chunk of a section.
type Hit struct {
	ChunkID        string  `json:"chunk_id"`
	SectionID      string  `json:"section_id"`
	PostID         string  `json:"post_id"`
	PageTitle      string  `json:"page_title"`
	SectionHeading string  `json:"section_heading"`
	HeadingHref    string  `json:"heading_href"`
	Text           string  `json:"text"`
	Snippet        string  `json:"snippet"`
	Rank           float64 `json:"rank"` // bm25; lower is better.
}

// Search ranks chunks against query and returns at most limit hits, one per
// section. Queries containing Han characters fall back to substring matching,
// which the unicode61 tokenizer cannot do.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	// Over-fetch so enough sections remain after dedup.
	fetch := limit * 3
	var (
		hits []Hit
		err  error
	)
	if containsHan(query) {
		hits, err = s.searchLike(ctx, query, fetch)
	} else {
		hits, err = s.searchFTS(ctx, ftsQuery(query), fetch)
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []Hit
	for _, h := range hits {
		if seen[h.SectionID] {
			continue
		}
		seen[h.SectionID] = true
		out = append(out, h)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) searchFTS(ctx context.Context, match string, limit int) ([]Hit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, c.section_id, c.post_id, c.page_title, c.section_heading,
			s.heading_href, c.text,
			snippet(chunks_fts, 0, '**', '**', '...', 24),
			bm25(chunks_fts) AS rank
		FROM chunks_fts
		JOIN chunks c ON c.id = chunks_fts.rowid
		JOIN sections s ON s.section_id = c.section_id
		WHERE chunks_fts MATCH ?
		ORDER BY rank
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	return scanHits(rows, true)
}

func (s *Store) searchLike(ctx context.Context, query string, limit int) ([]Hit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.chunk_id, c.section_id, c.post_id, c.page_title, c.section_heading,
			s.heading_href, c.text
		FROM chunks c
		JOIN sections s ON s.section_id = c.section_id
		WHERE c.text LIKE ? ESCAPE '\'
		ORDER BY c.updated_at DESC, c.chunk_id
		LIMIT ?`, "%"+escapeLike(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()

	hits, err := scanHits(rows, false)
	for i := range hits {
		hits[i].Snippet = snippet(hits[i].Text, query, 30)
	}
	return hits, err
}

func scanHits(rows *sql.Rows, ranked bool) ([]Hit, error) {
	var hits []Hit
	for rows.Next() {
		var h Hit
		dst := []any{&h.ChunkID, &h.SectionID, &h.PostID, &h.PageTitle, &h.SectionHeading, &h.HeadingHref, &h.Text}
		if ranked {
			dst = append(dst, &h.Snippet, &h.Rank)
		}
		if err := rows.Scan(dst...); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// ftsQuery quotes every whitespace-separated term so user input is never
// parsed as FTS5 query syntax. Terms are implicitly ANDed.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	for i, f := range fields {
		fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return strings.Join(fields, " ")
}

func containsHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// snippet cuts text around the first case-insensitive match of query.
func snippet(text, query string, width int) string {
	runes := []rune(text)
	qlen := len([]rune(query))
	pos := runeIndexFold(runes, query, qlen)
	if pos < 0 {
		if len(runes) > width*2 {
			return string(runes[:width*2]) + "..."
		}
		return text
	}
	start := max(pos-width, 0)
	end := min(pos+qlen+width, len(runes))

	var sb strings.Builder
	if start > 0 {
		sb.WriteString("...")
	}
	sb.WriteString(string(runes[start:pos]))
	sb.WriteString("**")
	sb.WriteString(string(runes[pos : pos+qlen]))
	sb.WriteString("**")
	sb.WriteString(string(runes[pos+qlen : end]))
	if end < len(runes) {
		sb.WriteString("...")
	}
	return sb.String()
}

// runeIndexFold returns the rune offset of the first case-insensitive match
// of query in runes, or -1. Case folding can change a rune's UTF-8 length,
// so matching happens on rune windows rather than on lowered byte strings.
func runeIndexFold(runes []rune, query string, qlen int) int {
	if qlen == 0 {
		return -1
	}
	for i := 0; i+qlen <= len(runes); i++ {
		if strings.EqualFold(string(runes[i:i+qlen]), query) {
			return i
		}
	}
	return -1
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike makes query match literally inside a LIKE pattern using ESCAPE '\'.
func escapeLike(query string) string {
	return likeEscaper.Replace(query)
}
