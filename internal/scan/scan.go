// Package scan finds the Markdown sources of a content tree and pairs each
// with its rendered page.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SkipDirs are directory names never descended into.
var SkipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".obsidian":    true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
}

const searchPage = "search.md"

// File is one Markdown source and the location of its rendered page.
type File struct {
	Path     string    // Markdown source on disk.
	RelPath  string    // Lowercased, slash-separated path without extension.
	HTMLPath string    // <htmlDir>/<RelPath>/index.html
	HasHTML  bool      // HTMLPath exists.
	Mtime    time.Time // Source modification time.
	Size     int64
}

// Scan walks contentDir and returns every indexable Markdown file in lexical order.
// Unreadable subdirectories are skipped; a missing contentDir is an error.
func Scan(contentDir, htmlDir string) ([]File, error) {
	if _, err := os.Stat(contentDir); err != nil {
		return nil, fmt.Errorf("scan content dir: %w", err)
	}

	var files []File
	err := filepath.WalkDir(contentDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != contentDir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(contentDir, path)
		if err != nil || rel == "." {
			return nil
		}
		if d.IsDir() {
			if skipPart(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !Indexable(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}

		relPath := RelPath(rel)
		htmlPath := filepath.Join(htmlDir, filepath.FromSlash(relPath), "index.html")
		_, statErr := os.Stat(htmlPath)
		files = append(files, File{
			Path:     path,
			RelPath:  relPath,
			HTMLPath: htmlPath,
			HasHTML:  statErr == nil,
			Mtime:    info.ModTime(),
			Size:     info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan content dir: %w", err)
	}
	return files, nil
}

// Indexable reports whether a path relative to the content root names a
// Markdown page that should be indexed.
func Indexable(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if skipPart(part) {
			return false
		}
	}
	switch strings.ToLower(filepath.Ext(rel)) {
	case ".md", ".markdown":
	default:
		return false
	}
	return filepath.Base(rel) != searchPage
}

// RelPath maps a content-relative source path to the page path the site
// serves it under: extension dropped, lowercased, slash separated.
func RelPath(rel string) string {
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return strings.ToLower(filepath.ToSlash(rel))
}

func skipPart(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || SkipDirs[name]
}
