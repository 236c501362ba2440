package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/postchunk/internal/chunker"
	"github.com/dgallion1/postchunk/internal/parser"
	"github.com/dgallion1/postchunk/internal/scan"
	"github.com/dgallion1/postchunk/internal/sectioner"
	"github.com/dgallion1/postchunk/internal/store"
	"github.com/go-chi/chi/v5"
)

// handleSections sections an uploaded page and returns the result without
// storing anything.
func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	relPath := strings.Trim(r.FormValue("rel_path"), "/")
	if relPath == "" {
		relPath = scan.RelPath(filename)
	}

	sections, title, err := s.processor.Sections(bytes.NewReader(data), filename, relPath)
	switch {
	case errors.Is(err, sectioner.ErrNoArticle), errors.Is(err, chunker.ErrMissingCode):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.log.Info("sectioned upload", "filename", filename, "rel_path", relPath, "sections", len(sections))
	writeJSON(w, http.StatusOK, map[string]any{
		"title":    title,
		"rel_path": relPath,
		"sections": sections,
	})
}

func (s *Server) handleGetSection(w http.ResponseWriter, r *http.Request) {
	sectionID := chi.URLParam(r, "sectionID")
	sec, err := s.store.GetSection(r.Context(), sectionID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "section not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("get section failed", "section_id", sectionID, "error", err)
		jsonError(w, "failed to read section", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, sec)
}
