package httpapi

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/auth"
	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/engine/sources"
	"github.com/anatolykoptev/go_transcript/internal/render"
	"github.com/anatolykoptev/go_transcript/internal/store"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
)

// analysisItem is a list entry: the stored record plus its preview.
type analysisItem struct {
	store.SavedAnalysis
	Preview string `json:"preview"`
}

type createAnalysisRequest struct {
	VideoID    string               `json:"videoId"`
	Analysis   string               `json:"analysis"`
	Transcript []transcript.Segment `json:"transcript"`
}

type updateAnalysisRequest struct {
	Analysis string `json:"analysis"`
	Format   string `json:"format"` // markdown (default) | html
}

func owner(r *http.Request) string {
	id, _ := auth.FromContext(r.Context())
	return id.UserID
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	list, err := s.Store.List(r.Context(), owner(r))
	if err != nil {
		s.storeError(w, "Failed to load analyses", err)
		return
	}
	items := make([]analysisItem, len(list))
	for i, a := range list {
		items[i] = analysisItem{SavedAnalysis: a, Preview: a.Preview()}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req createAnalysisRequest
	if err := decode(w, r, &req); err != nil || strings.TrimSpace(req.Analysis) == "" {
		writeError(w, http.StatusBadRequest, "Video ID and analysis are required")
		return
	}
	videoID, err := sources.ParseVideoID(req.VideoID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid YouTube URL")
		return
	}
	serialized, err := transcript.Serialize(req.Transcript)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transcript")
		return
	}

	saved, err := s.Store.Create(r.Context(), store.SavedAnalysis{
		OwnerID:    owner(r),
		VideoID:    videoID,
		Title:      s.Titles(r.Context(), videoID),
		Analysis:   req.Analysis,
		Transcript: serialized,
	})
	if err != nil {
		s.storeError(w, "Failed to save analysis", err)
		return
	}
	slog.Info("api: analysis saved", slog.String("id", saved.ID), slog.String("video_id", videoID))
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := s.Store.Get(r.Context(), owner(r), r.PathValue("id"))
	if err != nil {
		s.storeError(w, "Failed to load analysis", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleUpdateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req updateAnalysisRequest
	if err := decode(w, r, &req); err != nil || strings.TrimSpace(req.Analysis) == "" {
		writeError(w, http.StatusBadRequest, "Analysis is required")
		return
	}

	text := req.Analysis
	switch req.Format {
	case "", "markdown":
	case "html":
		md, err := render.Markdown(req.Analysis)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid HTML")
			return
		}
		text = md
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown format %q", req.Format))
		return
	}

	a, err := s.Store.UpdateAnalysis(r.Context(), owner(r), r.PathValue("id"), text)
	if err != nil {
		s.storeError(w, "Failed to update analysis", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Delete(r.Context(), owner(r), r.PathValue("id")); err != nil {
		s.storeError(w, "Failed to delete analysis", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExportAnalysis(w http.ResponseWriter, r *http.Request) {
	a, err := s.Store.Get(r.Context(), owner(r), r.PathValue("id"))
	if err != nil {
		s.storeError(w, "Failed to load analysis", err)
		return
	}
	data, err := render.Docx(a.Title, a.Analysis)
	if err != nil {
		slog.Error("api: docx export", slog.String("id", a.ID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to export analysis")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, render.DocxFilename(a.Title)))
	_, _ = w.Write(data)
}

// storeError maps gateway failures: missing records to 404, validation to
// 400, everything else to 500 with msg.
func (s *Server) storeError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "Analysis not found")
	case errors.Is(err, engine.ErrMissingInput):
		writeError(w, http.StatusBadRequest, "Video ID and analysis are required")
	default:
		slog.Error("api: store", slog.String("msg", msg), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, msg)
	}
}
