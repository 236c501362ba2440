package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/postchunk/internal/doctree"
)

// UpsertResult reports what an UpsertDocument call wrote.
type UpsertResult struct {
	Sections int `json:"sections"`
	Chunks   int `json:"chunks"`
	Pruned   int `json:"pruned"` // Sections and chunks removed because they vanished.
}

// UpsertDocument replaces the stored sections and chunks of doc in one
// transaction. Records are keyed by stable ids, so re-indexing a document
// updates rows in place and removes the ones that no longer exist.
// A write that loses to another connection's lock fails with ErrBusy.
func (s *Store) UpsertDocument(ctx context.Context, doc Document, sections []doctree.Section) (UpsertResult, error) {
	res, err := s.upsertDocument(ctx, doc, sections)
	if err != nil && isBusy(err) {
		return res, fmt.Errorf("%w: %w", ErrBusy, err)
	}
	return res, err
}

func (s *Store) upsertDocument(ctx context.Context, doc Document, sections []doctree.Section) (UpsertResult, error) {
	var res UpsertResult
	if doc.PostID == "" {
		return res, errors.New("upsert document: empty post id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	updated := toSeconds(doc.UpdatedAt)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (post_id, rel_path, title, source_path, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(post_id) DO UPDATE SET
			rel_path = excluded.rel_path,
			title = excluded.title,
			source_path = excluded.source_path,
			updated_at = excluded.updated_at`,
		doc.PostID, doc.RelPath, doc.Title, doc.SourcePath, updated,
	); err != nil {
		return res, fmt.Errorf("upsert document %s: %w", doc.PostID, err)
	}

	keepSections := make(map[string]bool, len(sections))
	keepChunks := make(map[string]bool)
	anchors := uniqueAnchors(sections)
	for i, sec := range sections {
		sectionID := SectionID(doc.PostID, anchors[i])
		keepSections[sectionID] = true

		path, err := json.Marshal(sec.HeadingsPath)
		if err != nil {
			return res, fmt.Errorf("marshal headings path: %w", err)
		}
		r, err := tx.ExecContext(ctx, `
			INSERT INTO sections (section_id, post_id, position, heading_id, heading_href,
				headings_path, html_heading, html_fragment, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(section_id) DO UPDATE SET
				position = excluded.position,
				heading_id = excluded.heading_id,
				heading_href = excluded.heading_href,
				headings_path = excluded.headings_path,
				html_heading = excluded.html_heading,
				html_fragment = excluded.html_fragment,
				updated_at = excluded.updated_at
			WHERE sections.post_id = excluded.post_id`,
			sectionID, doc.PostID, i, sec.HeadingID, sec.HeadingHref,
			string(path), sec.RenderedHeading, sec.RenderedFragment, updated,
		)
		if err != nil {
			return res, fmt.Errorf("upsert section %s: %w", sectionID, err)
		}
		if err := claimed(r, "section", sectionID, doc.PostID); err != nil {
			return res, err
		}
		res.Sections++

		for idx, text := range sec.TextChunks {
			chunkID := ChunkID(doc.PostID, idx, anchors[i])
			keepChunks[chunkID] = true
			r, err := tx.ExecContext(ctx, `
				INSERT INTO chunks (chunk_id, section_id, post_id, chunk_index, text,
					page_title, section_heading, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(chunk_id) DO UPDATE SET
					section_id = excluded.section_id,
					chunk_index = excluded.chunk_index,
					text = excluded.text,
					page_title = excluded.page_title,
					section_heading = excluded.section_heading,
					updated_at = excluded.updated_at
				WHERE chunks.post_id = excluded.post_id`,
				chunkID, sectionID, doc.PostID, idx, text,
				sec.HeadingsPath.First(), sec.HeadingsPath.Last(), updated,
			)
			if err != nil {
				return res, fmt.Errorf("upsert chunk %s: %w", chunkID, err)
			}
			if err := claimed(r, "chunk", chunkID, doc.PostID); err != nil {
				return res, err
			}
			res.Chunks++
		}
	}

	n, err := pruneMissing(ctx, tx, "chunks", "chunk_id", doc.PostID, keepChunks)
	if err != nil {
		return res, err
	}
	res.Pruned += n
	n, err = pruneMissing(ctx, tx, "sections", "section_id", doc.PostID, keepSections)
	if err != nil {
		return res, err
	}
	res.Pruned += n

	if err := tx.Commit(); err != nil {
		return res, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// claimed fails with ErrIDConflict when an upsert touched no row, which
// happens only when the id is already owned by a different post.
func claimed(r sql.Result, kind, id, postID string) error {
	n, err := r.RowsAffected()
	if err != nil {
		return fmt.Errorf("upsert %s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("upsert %s %s for post %s: %w", kind, id, postID, ErrIDConflict)
	}
	return nil
}

// pruneMissing deletes the rows of table owned by postID whose key is not in keep.
func pruneMissing(ctx context.Context, tx *sql.Tx, table, key, postID string, keep map[string]bool) (int, error) {
	rows, err := tx.QueryContext(ctx, "SELECT "+key+" FROM "+table+" WHERE post_id = ?", postID)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", table, err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	if err := rows.Close(); err != nil {
		return 0, err
	}

	for _, id := range stale {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+key+" = ?", id); err != nil {
			return 0, fmt.Errorf("prune %s %s: %w", table, id, err)
		}
	}
	return len(stale), nil
}

// IsUpToDate reports whether the stored copy of postID is at least as new as
// mtime, allowing one second for filesystem timestamp rounding.
func (s *Store) IsUpToDate(ctx context.Context, postID string, mtime time.Time) (bool, error) {
	var updated float64
	err := s.db.QueryRowContext(ctx, "SELECT updated_at FROM documents WHERE post_id = ?", postID).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read document %s: %w", postID, err)
	}
	return updated+1.0 >= toSeconds(mtime), nil
}

// GetDocument returns the bookkeeping row of postID.
func (s *Store) GetDocument(ctx context.Context, postID string) (*Document, error) {
	var (
		d       Document
		updated float64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT post_id, rel_path, title, source_path, updated_at FROM documents WHERE post_id = ?", postID,
	).Scan(&d.PostID, &d.RelPath, &d.Title, &d.SourcePath, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", postID, err)
	}
	d.UpdatedAt = fromSeconds(updated)
	return &d, nil
}

// DeleteDocument removes a document with all of its sections and chunks.
func (s *Store) DeleteDocument(ctx context.Context, postID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		"DELETE FROM chunks WHERE post_id = ?",
		"DELETE FROM sections WHERE post_id = ?",
		"DELETE FROM documents WHERE post_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, postID); err != nil {
			return fmt.Errorf("delete document %s: %w", postID, err)
		}
	}
	return tx.Commit()
}

// GetSection returns a section and its chunks in order.
func (s *Store) GetSection(ctx context.Context, sectionID string) (*Section, error) {
	var (
		sec     Section
		path    string
		updated float64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT section_id, post_id, position, heading_id, heading_href, headings_path,
			html_heading, html_fragment, updated_at
		FROM sections WHERE section_id = ?`, sectionID,
	).Scan(&sec.ID, &sec.PostID, &sec.Position, &sec.HeadingID, &sec.HeadingHref, &path,
		&sec.HTMLHeading, &sec.HTMLFragment, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get section %s: %w", sectionID, err)
	}
	if err := json.Unmarshal([]byte(path), &sec.HeadingsPath); err != nil {
		return nil, fmt.Errorf("decode headings path of %s: %w", sectionID, err)
	}
	sec.UpdatedAt = fromSeconds(updated)

	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, section_id, post_id, chunk_index, text, page_title, section_heading, updated_at
		FROM chunks WHERE section_id = ? ORDER BY chunk_index`, sectionID)
	if err != nil {
		return nil, fmt.Errorf("list chunks of %s: %w", sectionID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var c Chunk
		var cu float64
		if err := rows.Scan(&c.ID, &c.SectionID, &c.PostID, &c.Index, &c.Text, &c.PageTitle, &c.SectionHeading, &cu); err != nil {
			return nil, err
		}
		c.UpdatedAt = fromSeconds(cu)
		sec.Chunks = append(sec.Chunks, c)
	}
	return &sec, rows.Err()
}

// Counts returns row counts for documents, sections and chunks.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	for _, q := range []struct {
		sql string
		dst *int
	}{
		{"SELECT COUNT(*) FROM documents", &c.Documents},
		{"SELECT COUNT(*) FROM sections", &c.Sections},
		{"SELECT COUNT(*) FROM chunks", &c.Chunks},
	} {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dst); err != nil {
			return c, fmt.Errorf("count: %w", err)
		}
	}
	return c, nil
}

// CheckIndex verifies that the full-text index matches the chunks table.
func (s *Store) CheckIndex(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "INSERT INTO chunks_fts(chunks_fts) VALUES('integrity-check')"); err != nil {
		return fmt.Errorf("fts integrity check: %w", err)
	}
	return nil
}

// RebuildIndex regenerates the full-text index from the chunks table.
func (s *Store) RebuildIndex(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "INSERT INTO chunks_fts(chunks_fts) VALUES('rebuild')"); err != nil {
		return fmt.Errorf("fts rebuild: %w", err)
	}
	return nil
}
