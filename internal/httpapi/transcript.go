package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go_transcript/internal/engine"
	"github.com/anatolykoptev/go_transcript/internal/render"
	"github.com/anatolykoptev/go_transcript/internal/transcript"
)

type transcriptRequest struct {
	URL string `json:"url"`
}

type transcriptResponse struct {
	Transcript []transcript.Segment `json:"transcript"`
	VideoID    string               `json:"videoId"`
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	var req transcriptRequest
	if err := decode(w, r, &req); err != nil || strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, "YouTube URL is required")
		return
	}

	tr, err := s.Pipeline.FetchTranscript(r.Context(), req.URL)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, transcriptResponse{Transcript: tr.Segments, VideoID: tr.VideoID})
	case errors.Is(err, engine.ErrInvalidReference):
		writeError(w, http.StatusBadRequest, "Invalid YouTube URL")
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, "No transcript available for this video")
	default:
		slog.Error("api: fetch transcript", slog.String("url", req.URL), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch transcript")
	}
}

type analyzeRequest struct {
	Transcript []transcript.Segment `json:"transcript"`
}

type analyzeResponse struct {
	Analysis string `json:"analysis"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decode(w, r, &req); err != nil || len(req.Transcript) == 0 {
		writeError(w, http.StatusBadRequest, "Transcript is required")
		return
	}

	analysis, err := s.Pipeline.Analyze(r.Context(), req.Transcript)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, analyzeResponse{Analysis: analysis})
	case errors.Is(err, engine.ErrEmptyInput):
		writeError(w, http.StatusBadRequest, "Transcript is required")
	default:
		slog.Error("api: analyze", slog.Int("segments", len(req.Transcript)), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to analyze transcript")
	}
}

type chatRequest struct {
	Question   string `json:"question"`
	Transcript string `json:"transcript"`
	VideoID    string `json:"videoId"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(w, r, &req); err != nil || strings.TrimSpace(req.Question) == "" || strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusBadRequest, "Question and transcript are required")
		return
	}

	answer, err := s.Pipeline.Ask(r.Context(), req.Question, req.Transcript, req.VideoID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, chatResponse{Response: answer})
	case errors.Is(err, engine.ErrMissingInput):
		writeError(w, http.StatusBadRequest, "Question and transcript are required")
	default:
		slog.Error("api: chat", slog.String("video_id", req.VideoID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to process your question")
	}
}

type renderRequest struct {
	Analysis string `json:"analysis"`
}

type renderResponse struct {
	HTML string `json:"html"`
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if err := decode(w, r, &req); err != nil || strings.TrimSpace(req.Analysis) == "" {
		writeError(w, http.StatusBadRequest, "Analysis is required")
		return
	}
	writeJSON(w, http.StatusOK, renderResponse{HTML: render.HTML(req.Analysis, s.RenderMode)})
}
