package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	ctxpkg "github.com/stupiduntilnot/cryptodesk/internal/context"
	"github.com/stupiduntilnot/cryptodesk/internal/market"
	"github.com/stupiduntilnot/cryptodesk/internal/model"
	"github.com/stupiduntilnot/cryptodesk/internal/pipeline"
)

// maxBodyBytes bounds the /chat request body.
const maxBodyBytes = 1 << 20

// ChatRequest is the /chat request body.
type ChatRequest struct {
	Message string        `json:"message"`
	Summary string        `json:"summary,omitempty"`
	History []ctxpkg.Turn `json:"history,omitempty"`
}

// ChatResponse is the /chat response body.
type ChatResponse struct {
	Response string `json:"response"`
	Summary  string `json:"summary,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" && strings.TrimSpace(ctxpkg.LatestContent(req.History)) == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	res, err := s.pipeline.Run(r.Context(), pipeline.Request{
		Message: req.Message,
		Summary: req.Summary,
		History: req.History,
	})
	if err != nil {
		s.writeFailure(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ChatResponse{
		Response: res.Answer,
		Summary:  res.Summary,
	})
}

// writeFailure maps pipeline errors to HTTP statuses.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	var rl *model.RateLimitError
	var cfgErr *market.ConfigError
	switch {
	case errors.Is(err, pipeline.ErrEmptyMessage):
		s.writeError(w, http.StatusBadRequest, "message is required")
	case errors.As(err, &rl):
		if rl.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		}
		s.writeError(w, http.StatusTooManyRequests, rl.Message)
	case errors.As(err, &cfgErr):
		s.log.Error().Err(err).Str("key", cfgErr.Key).Msg("configuration error")
		s.writeError(w, http.StatusInternalServerError, cfgErr.Error())
	default:
		s.log.Error().Err(err).Msg("chat request failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Detail: message})
}
