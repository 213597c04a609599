// Package ipc provides the HTTP API for the convergence engine.
package ipc

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/TheFermiSea/crystalmath/internal/domain"
	"github.com/TheFermiSea/crystalmath/internal/estimate"
	"github.com/TheFermiSea/crystalmath/internal/params"
	"github.com/TheFermiSea/crystalmath/internal/store"
	"github.com/TheFermiSea/crystalmath/internal/workflow"
)

// Handler holds all dependencies for the HTTP handlers.
type Handler struct {
	Manager            *workflow.Manager
	DB                 *sql.DB
	Sessions           *store.SessionRepo
	Estimates          *store.EstimateRepo
	Estimator          *estimate.Estimator
	DefaultMaxAttempts int
}

// SiteRequest is one atomic site in a structure payload.
type SiteRequest struct {
	Element string  `json:"element"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Z       float64 `json:"z"`
}

// StructureRequest is the optional crystal structure in a launch payload.
type StructureRequest struct {
	Cell  [3][3]float64 `json:"cell"`
	Sites []SiteRequest `json:"sites"`
}

// LaunchSessionRequest is the body for POST /api/v1/sessions.
type LaunchSessionRequest struct {
	Parameters  map[string]any    `json:"parameters"`
	Structure   *StructureRequest `json:"structure"`
	MaxAttempts int               `json:"max_attempts"`
}

// LaunchSessionResponse is the response for POST /api/v1/sessions.
type LaunchSessionResponse struct {
	SessionID string `json:"session_id"`
}

// EstimateRequest is the body for POST /api/v1/estimate.
type EstimateRequest struct {
	SessionID    string `json:"session_id"`
	NumAtoms     int    `json:"num_atoms"`
	NumElectrons int    `json:"num_electrons"`
	KPoints      int    `json:"k_points"`
	Basis        string `json:"basis"`
}

// APIError is a structured error response.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LaunchSession handles POST /api/v1/sessions.
func (h *Handler) LaunchSession(w http.ResponseWriter, r *http.Request) {
	var req LaunchSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}
	if req.Parameters == nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "parameters is required"})
		return
	}

	in := workflow.Input{Parameters: params.FromMap(req.Parameters)}
	if req.Structure != nil {
		in.Structure = toStructure(req.Structure)
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = h.DefaultMaxAttempts
	}

	// The session outlives the request; cancellation goes through the
	// cancel endpoint, not the request context.
	sessionID, err := h.Manager.Launch(context.Background(), in, maxAttempts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, LaunchSessionResponse{SessionID: sessionID})
}

// GetSession handles GET /api/v1/sessions/{sessionID}. Live sessions come
// from the manager; finished ones fall back to the archive.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")

	status, err := h.Manager.Status(sessionID)
	if err == nil {
		writeJSON(w, http.StatusOK, status)
		return
	}

	session, storeErr := h.Sessions.GetByID(r.Context(), h.DB, sessionID)
	if storeErr != nil {
		writeError(w, storeErr)
		return
	}
	writeJSON(w, http.StatusOK, workflow.SessionStatus{
		SessionID: sessionID,
		Running:   false,
		Session:   session,
	})
}

// ListAttempts handles GET /api/v1/sessions/{sessionID}/attempts.
func (h *Handler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")

	var attempts []*domain.CalculationAttempt
	if status, err := h.Manager.Status(sessionID); err == nil && status.Session != nil {
		attempts = status.Session.Attempts
	} else {
		session, storeErr := h.Sessions.GetByID(r.Context(), h.DB, sessionID)
		if storeErr != nil {
			writeError(w, storeErr)
			return
		}
		attempts = session.Attempts
	}
	if attempts == nil {
		attempts = []*domain.CalculationAttempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

// CancelSession handles POST /api/v1/sessions/{sessionID}/cancel.
func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	if err := h.Manager.Cancel(sessionID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListSessions handles GET /api/v1/sessions?limit=N (archived sessions only).
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err == nil && parsed > 0 {
			limit = parsed
		}
	}

	summaries, err := h.Sessions.List(r.Context(), h.DB, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if summaries == nil {
		summaries = []store.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// EstimateResources handles POST /api/v1/estimate. When a session ID is
// supplied the estimate is also persisted against it.
func (h *Handler) EstimateResources(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "invalid request body"})
		return
	}

	basis := domain.BasisSize(req.Basis)
	switch basis {
	case "":
		basis = domain.BasisMedium
	case domain.BasisSmall, domain.BasisMedium, domain.BasisLarge:
	default:
		writeJSON(w, http.StatusBadRequest, APIError{Code: 400, Message: "basis must be small, medium, or large"})
		return
	}

	est := h.Estimator.Estimate(domain.SystemSize{
		NumAtoms:     req.NumAtoms,
		NumElectrons: req.NumElectrons,
		KPoints:      req.KPoints,
		Basis:        basis,
	})

	if req.SessionID != "" && h.DB != nil {
		if err := h.Estimates.Save(r.Context(), h.DB, req.SessionID, est); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, est)
}

func toStructure(req *StructureRequest) *domain.Structure {
	s := &domain.Structure{Cell: req.Cell}
	for _, site := range req.Sites {
		s.Sites = append(s.Sites, domain.Site{
			Element: site.Element,
			X:       site.X,
			Y:       site.Y,
			Z:       site.Z,
		})
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var engErr *domain.EngineError
	if errors.As(err, &engErr) {
		status := http.StatusInternalServerError
		switch engErr.Code {
		case domain.ErrSessionNotFound.Code, domain.ErrHandleUnknown.Code:
			status = http.StatusNotFound
		case domain.ErrSessionTerminal.Code:
			status = http.StatusConflict
		case domain.ErrSessionLimit.Code:
			status = http.StatusTooManyRequests
		case domain.ErrValidationFailed.Code, domain.ErrParameterSchema.Code, domain.ErrInvalidTransition.Code:
			status = http.StatusUnprocessableEntity
		case domain.ErrMaxAttemptsInvalid.Code, domain.ErrParameterPath.Code, domain.ErrParameterType.Code:
			status = http.StatusBadRequest
		}
		writeJSON(w, status, APIError{Code: engErr.Code, Message: engErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, APIError{Code: -1, Message: err.Error()})
}
