package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hireloop/hireloop/internal/core"
	"github.com/hireloop/hireloop/internal/services"
)

type IntakeHandler struct {
	intake   *services.IntakeService
	analysis *services.AnalysisService
	db       core.DbClient
	logger   *zap.Logger
}

func NewIntakeHandler(intake *services.IntakeService, analysis *services.AnalysisService, db core.DbClient, logger *zap.Logger) *IntakeHandler {
	return &IntakeHandler{intake: intake, analysis: analysis, db: db, logger: logger}
}

// SubmitApplication handles the anonymous intake boundary. Multipart uploads
// carry the document file; JSON bodies may reference an already-stored
// document instead.
func (h *IntakeHandler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	in, err := h.parseSubmit(r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := h.intake.SubmitApplication(r.Context(), *in)
	if errors.Is(err, core.ErrDuplicateApplication) {
		// Resubmission of the same job+contact pair answers with the
		// existing application.
		writeJSON(w, http.StatusOK, res)
		return
	}
	if err != nil {
		h.logger.Warn("intake rejected", zap.Error(err))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

type submitRequest struct {
	JobID       string `json:"job_id"`
	Contact     string `json:"contact"`
	DisplayName string `json:"display_name"`
	CoverNote   string `json:"cover_note"`
	StorageURL  string `json:"document_url"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
}

func (h *IntakeHandler) parseSubmit(r *http.Request) (*services.SubmitInput, error) {
	ct := r.Header.Get("Content-Type")

	if ct == "" || strings.HasPrefix(ct, "application/json") {
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.Join(core.ErrValidation, err)
		}
		return &services.SubmitInput{
			JobID:       req.JobID,
			Contact:     req.Contact,
			DisplayName: req.DisplayName,
			CoverNote:   req.CoverNote,
			StorageURL:  req.StorageURL,
			FileName:    req.FileName,
			ContentType: req.ContentType,
		}, nil
	}

	// Multipart: the document travels with the request.
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, errors.Join(core.ErrValidation, err)
	}
	file, header, err := r.FormFile("document")
	if err != nil {
		return nil, errors.Join(core.ErrValidation, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &services.SubmitInput{
		JobID:       r.FormValue("job_id"),
		Contact:     r.FormValue("contact"),
		DisplayName: r.FormValue("display_name"),
		CoverNote:   r.FormValue("cover_note"),
		FileName:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

// GetApplication is the operator readout of intake + analysis state.
func (h *IntakeHandler) GetApplication(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	app, err := h.db.GetApplicationByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if app == nil {
		writeError(w, core.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// Reanalyze is the manual pipeline re-trigger after a failure.
func (h *IntakeHandler) Reanalyze(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.analysis.Rerun(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"application_id": id, "status": "queued"})
}
