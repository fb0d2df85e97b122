package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hireloop/hireloop/internal/core"
	"github.com/hireloop/hireloop/internal/services"
)

type SessionHandler struct {
	sessions *services.SessionService
	logger   *zap.Logger
}

func NewSessionHandler(sessions *services.SessionService, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

type createSessionRequest struct {
	JobID   string `json:"job_id"`
	Contact string `json:"contact"`
}

// CreateSession provisions an interview room for an existing application and
// returns the join bundle.
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Join(core.ErrValidation, err))
		return
	}
	if req.JobID == "" || req.Contact == "" {
		writeError(w, errors.Join(core.ErrValidation, errors.New("job_id and contact are required")))
		return
	}

	bundle, err := h.sessions.CreateSession(r.Context(), req.JobID, req.Contact)
	if err != nil {
		h.logger.Warn("session create failed", zap.String("job_id", req.JobID), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bundle)
}

type refreshRequest struct {
	RoomName string `json:"room_name"`
	Identity string `json:"identity"`
}

// RefreshCredential re-issues a join credential for an ongoing session.
func (h *SessionHandler) RefreshCredential(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Join(core.ErrValidation, err))
		return
	}

	bundle, err := h.sessions.RefreshCredential(r.Context(), req.RoomName, req.Identity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bundle)
}
