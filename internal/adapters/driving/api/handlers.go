package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/givemeone1astkiss/ribo/internal/core/domain"
	"github.com/givemeone1astkiss/ribo/internal/logger"
)

// maxBodyBytes caps request bodies; uploaded sequence files travel inline.
const maxBodyBytes = 16 << 20

type chatBody struct {
	Message       string                `json:"message"`
	UploadedFiles []domain.UploadedFile `json:"uploaded_files"`
	Stream        bool                  `json:"stream"`
}

type cancelBody struct {
	RequestID string `json:"request_id"`
}

type searchBody struct {
	Query         string `json:"query"`
	K             int    `json:"k"`
	IncludeImages bool   `json:"include_images"`
}

type searchResult struct {
	UnitID    string          `json:"unit_id"`
	Kind      domain.UnitKind `json:"kind"`
	Content   string          `json:"content,omitempty"`
	ImagePath string          `json:"image_path,omitempty"`
	Citation  domain.Citation `json:"citation"`
}

type documentJSON struct {
	ID         string    `json:"id"`
	SourcePath string    `json:"source_path"`
	Title      string    `json:"title"`
	TextUnits  int       `json:"text_units"`
	ImageUnits int       `json:"image_units"`
	IngestedAt time.Time `json:"ingested_at"`
}

type imageJSON struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	Source      string `json:"source"`
	Page        int    `json:"page"`
	Description string `json:"description"`
	ImagePath   string `json:"image_path"`
	OCRText     string `json:"ocr_text,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{"status": "ok"}
	if s.ports.Ingestion != nil {
		status["indexing"] = s.ports.Ingestion.IsIndexing()
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatBody
	if !decode(w, r, &body) {
		return
	}
	req := domain.ChatRequest{Message: body.Message, UploadedFiles: body.UploadedFiles}

	if body.Stream {
		s.streamChat(w, r, req)
		return
	}

	resp, err := s.ports.Chat.Chat(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set(requestIDHeader, resp.RequestID)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var body cancelBody
	if !decode(w, r, &body) {
		return
	}
	if body.RequestID == "" {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.ports.Chat.Cancel(body.RequestID)})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.ports.Ingestion == nil {
		writeError(w, errIngestionUnavailable)
		return
	}

	report, err := s.ports.Ingestion.IngestDirectory(r.Context(), s.ports.DataDir)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(report.Added),
		"report": report,
	})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, _ *http.Request) {
	indexing := s.ports.Ingestion != nil && s.ports.Ingestion.IsIndexing()
	writeJSON(w, http.StatusOK, map[string]bool{"indexing": indexing})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if !decode(w, r, &body) {
		return
	}

	results, err := s.ports.Search.Search(r.Context(), body.Query, domain.SearchOptions{
		K:             body.K,
		IncludeImages: body.IncludeImages,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]searchResult, len(results))
	for i, res := range results {
		out[i] = searchResult{
			UnitID:    res.UnitID,
			Kind:      res.Kind,
			Content:   res.Content,
			ImagePath: res.ImagePath,
			Citation:  domain.NewCitation(i+1, res),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out, "count": len(out)})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.ports.Ingestion == nil {
		writeError(w, errIngestionUnavailable)
		return
	}

	docs, err := s.ports.Ingestion.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]documentJSON, len(docs))
	for i, d := range docs {
		out[i] = documentJSON{
			ID:         d.ID,
			SourcePath: d.SourcePath,
			Title:      d.Title,
			TextUnits:  d.TextUnits,
			ImageUnits: d.ImageUnits,
			IngestedAt: d.IngestedAt,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	if s.ports.Ingestion == nil {
		writeError(w, errIngestionUnavailable)
		return
	}

	images, err := s.ports.Ingestion.ListImages(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]imageJSON, len(images))
	for i, img := range images {
		out[i] = imageJSON{
			ID:          img.ID,
			DocumentID:  img.DocumentID,
			Source:      img.Source,
			Page:        img.Page,
			Description: img.Description,
			ImagePath:   img.ImagePath,
			OCRText:     img.OCRText,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRemoveDocument(w http.ResponseWriter, r *http.Request) {
	if s.ports.Ingestion == nil {
		writeError(w, errIngestionUnavailable)
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, domain.ErrInvalidInput)
		return
	}
	if err := s.ports.Ingestion.Remove(r.Context(), path); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.ports.Ingestion == nil {
		writeError(w, errIngestionUnavailable)
		return
	}

	stats, err := s.ports.Ingestion.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTools(w http.ResponseWriter, _ *http.Request) {
	if s.ports.Tools == nil {
		writeJSON(w, http.StatusOK, []domain.ToolDescriptor{})
		return
	}
	writeJSON(w, http.StatusOK, s.ports.Tools.List())
}

func (s *Server) handleMemory(w http.ResponseWriter, _ *http.Request) {
	entries := []domain.MemoryEntry{}
	if s.ports.Memory != nil {
		entries = append(entries, s.ports.Memory.Entries()...)
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleClearMemory(w http.ResponseWriter, _ *http.Request) {
	if s.ports.Memory != nil {
		s.ports.Memory.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode reads a JSON body. On failure it writes a 400 and returns false.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to write response: %v", err)
	}
}

var errIngestionUnavailable = errors.New("ingestion is not available")
