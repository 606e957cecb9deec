package api

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ndelvaux/jurisnote/internal/pipeline"
)

// parseProcessRequest reads the multipart upload shared by the process
// endpoints: a "pdf" file, a "subjects" file, and optional overrides.
func (s *Server) parseProcessRequest(w http.ResponseWriter, r *http.Request) (pipeline.Request, bool) {
	var req pipeline.Request

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxPDFBytes+s.cfg.MaxSubjectsBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return req, false
	}
	defer r.MultipartForm.RemoveAll()

	pdf, filename, ok := s.readUpload(w, r, "pdf", s.cfg.MaxPDFBytes)
	if !ok {
		return req, false
	}
	if ext := strings.ToLower(filepath.Ext(filename)); ext != ".pdf" {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", ext), http.StatusBadRequest)
		return req, false
	}

	subjects, _, ok := s.readUpload(w, r, "subjects", s.cfg.MaxSubjectsBytes)
	if !ok {
		return req, false
	}

	req = pipeline.Request{
		Filename: filename,
		PDF:      pdf,
		Subjects: subjects,
		Model:    r.FormValue("model"),
	}
	if v := r.FormValue("min_title_font_size"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			req.MinTitleFontSize = f
		}
	}
	return req, true
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) ([]byte, string, bool) {
	file, header, err := r.FormFile(field)
	if err != nil {
		jsonError(w, field+" file is required: "+err.Error(), http.StatusBadRequest)
		return nil, "", false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		jsonError(w, "failed to read "+field, http.StatusInternalServerError)
		return nil, "", false
	}
	if int64(len(data)) > maxBytes {
		jsonError(w, fmt.Sprintf("%s exceeds max size (%d bytes)", field, maxBytes), http.StatusRequestEntityTooLarge)
		return nil, "", false
	}
	return data, sanitizeFilename(headerFilename(header)), true
}

func headerFilename(header *multipart.FileHeader) string {
	if header == nil {
		return ""
	}
	return header.Filename
}

// handleProcess streams the session's progress as server-sent events. The
// annotated document stays in the session and is fetched separately from
// /api/result/{sessionID}, named in the complete event.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseProcessRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		jsonError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Drain to closure even when the client goes away, so the session
	// goroutine can deliver its terminal event and finish.
	_, events := s.orchestrator.Run(r.Context(), req)
	err := pipeline.Drain(events, func(ev pipeline.Event) error {
		return writeSSE(w, flusher, ev)
	})
	if err != nil {
		s.log.Warn("sse write failed", "error", err)
	}
}

// handleProcessSync runs the whole pipeline and returns the annotated PDF in
// one response. With ?format=json the per-chapter analyses come back as JSON
// instead of the document.
func (s *Server) handleProcessSync(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseProcessRequest(w, r)
	if !ok {
		return
	}

	session, events := s.orchestrator.Run(r.Context(), req)

	var complete *pipeline.CompleteEvent
	var failure *pipeline.ErrorEvent
	for ev := range events {
		switch ev := ev.(type) {
		case pipeline.CompleteEvent:
			complete = &ev
		case pipeline.ErrorEvent:
			failure = &ev
		}
	}

	if failure != nil {
		status := http.StatusUnprocessableEntity
		if failure.Stage == "matching" || failure.Stage == "annotating" {
			status = http.StatusBadGateway
		}
		jsonError(w, fmt.Sprintf("%s: %s", failure.Stage, failure.Message), status)
		return
	}
	if complete == nil {
		jsonError(w, "session ended without result", http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(complete)
		return
	}

	output, name := session.Output()
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("X-Annotations-Count", strconv.Itoa(complete.Summary.NotesAdded))
	w.Write(output)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	session := s.orchestrator.GetSession(chi.URLParam(r, "sessionID"))
	if session == nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session.Snapshot())
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	session := s.orchestrator.GetSession(chi.URLParam(r, "sessionID"))
	if session == nil {
		jsonError(w, "session not found", http.StatusNotFound)
		return
	}

	output, name := session.Output()
	if output == nil {
		jsonError(w, fmt.Sprintf("session is %s, no result yet", session.Snapshot().Status), http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("X-Annotations-Count", strconv.Itoa(session.Snapshot().Summary.NotesAdded))
	w.Write(output)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
