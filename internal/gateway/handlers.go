package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/braid-ai/braid/internal/engine"
	"github.com/braid-ai/braid/internal/provider"
)

// TurnRequest is the JSON body for POST /v1/turn.
type TurnRequest struct {
	ParticipantID string `json:"participant_id"`
	Text          string `json:"text"`
}

// TurnResponse is the JSON response for POST /v1/turn.
type TurnResponse struct {
	RequestID        string `json:"request_id"`
	Reply            string `json:"reply"`
	InputTokens      int    `json:"input_tokens"`
	OutputTokens     int    `json:"output_tokens"`
	ContextTokens    int    `json:"context_tokens"`
	SummaryRefreshed bool   `json:"summary_refreshed,omitempty"`
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}

// handleTurn runs one conversational turn.
func (g *Gateway) handleTurn() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()

		var req TurnRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, requestID, "invalid JSON body")
			return
		}
		if req.ParticipantID == "" || req.Text == "" {
			writeError(w, http.StatusBadRequest, requestID, "participant_id and text are required")
			return
		}

		start := time.Now()
		res, err := g.engine.Turn(r.Context(), req.ParticipantID, req.Text)
		if err != nil {
			g.logger.Error("turn failed",
				"request_id", requestID,
				"participant", req.ParticipantID,
				"duration", time.Since(start),
				"error", err,
			)
			writeError(w, turnStatus(err), requestID, err.Error())
			return
		}

		g.logger.Info("turn completed",
			"request_id", requestID,
			"participant", req.ParticipantID,
			"duration", time.Since(start),
			"input_tokens", res.Usage.InputTokens,
			"output_tokens", res.Usage.OutputTokens,
		)
		writeJSON(w, http.StatusOK, TurnResponse{
			RequestID:        requestID,
			Reply:            res.Reply,
			InputTokens:      res.Usage.InputTokens,
			OutputTokens:     res.Usage.OutputTokens,
			ContextTokens:    res.ContextTokens,
			SummaryRefreshed: res.SummaryRefreshed,
		})
	}
}

// turnStatus maps turn pipeline errors to HTTP status codes.
func turnStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrParticipantLocked):
		return http.StatusPaymentRequired
	case errors.Is(err, engine.ErrRetriesExhausted), errors.Is(err, provider.ErrOverloaded), errors.Is(err, provider.ErrRateLimit):
		return http.StatusServiceUnavailable
	case errors.Is(err, provider.ErrBadRequest), errors.Is(err, provider.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, provider.ErrAuth):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// SummaryResponse is the JSON response for the summary endpoint.
type SummaryResponse struct {
	ParticipantID string `json:"participant_id"`
	Summary       string `json:"summary"`
}

// handleSummary returns the participant's rolling summary. 404 when none
// has been generated yet.
func (g *Gateway) handleSummary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		summary, err := g.summaries.Get(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "", err.Error())
			return
		}
		if summary == "" {
			writeError(w, http.StatusNotFound, "", "no summary for participant")
			return
		}
		writeJSON(w, http.StatusOK, SummaryResponse{ParticipantID: id, Summary: summary})
	}
}

// UsageResponse is the JSON response for the usage endpoint.
type UsageResponse struct {
	ParticipantID string  `json:"participant_id"`
	Balance       float64 `json:"balance"`
	Locked        bool    `json:"locked"`
}

// handleUsage returns the participant's ledger state.
func (g *Gateway) handleUsage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		balance, err := g.ledger.Balance(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "", err.Error())
			return
		}
		locked, err := g.ledger.Locked(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, UsageResponse{ParticipantID: id, Balance: balance, Locked: locked})
	}
}

// handleUnlock clears the participant's usage lock.
func (g *Gateway) handleUnlock() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := g.ledger.Unlock(r.Context(), id); err != nil {
			writeError(w, http.StatusInternalServerError, "", err.Error())
			return
		}
		g.logger.Info("participant unlocked", "participant", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// handleHealth reports liveness.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status: "ok",
			Uptime: time.Since(g.startedAt).Round(time.Second).String(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, requestID, msg string) {
	writeJSON(w, status, errorResponse{RequestID: requestID, Error: msg})
}
