package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ndelvaux/jurisnote/internal/chapters"
	"github.com/ndelvaux/jurisnote/internal/subjects"
)

// readSingleUpload handles the one-file preview endpoints.
func (s *Server) readSingleUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1024*1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	data, _, ok := s.readUpload(w, r, field, maxBytes)
	return data, ok
}

// handlePreviewChapters lists detected chapter titles without running the
// matcher, so an operator can sanity-check the title threshold first.
func (s *Server) handlePreviewChapters(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readSingleUpload(w, r, "pdf", s.cfg.MaxPDFBytes)
	if !ok {
		return
	}

	opts := chapters.Options{MinTitleFontSize: s.cfg.MinTitleFontSize}
	if v := r.FormValue("min_title_font_size"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			opts.MinTitleFontSize = f
		}
	}

	items, pageCount, err := chapters.Preview(data, opts)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if items == nil {
		items = []chapters.PreviewItem{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"chapters":   items,
		"page_count": pageCount,
	})
}

func (s *Server) handlePreviewSubjects(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readSingleUpload(w, r, "subjects", s.cfg.MaxSubjectsBytes)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(subjects.Inspect(data))
}

func (s *Server) handlePreviewFonts(w http.ResponseWriter, r *http.Request) {
	data, ok := s.readSingleUpload(w, r, "pdf", s.cfg.MaxPDFBytes)
	if !ok {
		return
	}

	analysis, err := chapters.AnalyzeFontSizes(data)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(analysis)
}
