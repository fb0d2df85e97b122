package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hireloop/hireloop/internal/core"
	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/services"
)

// intakeStubDB serves the duplicate-submission path: known job, known
// candidate, one active application already on file.
type intakeStubDB struct {
	core.DbClient
}

func (intakeStubDB) GetJobByID(_ context.Context, id string) (*models.Job, error) {
	return &models.Job{ID: id, CompanyName: "Acme", Title: "Backend Engineer", Active: true}, nil
}

func (intakeStubDB) GetCandidateByContact(_ context.Context, contact string) (*models.Candidate, error) {
	return &models.Candidate{ID: "cand-1", Contact: contact, DisplayName: "Jane", Active: true}, nil
}

func (intakeStubDB) GetActiveApplication(_ context.Context, candidateID, jobID string) (*models.Application, error) {
	return &models.Application{
		ID: "app-existing", CandidateID: candidateID, JobID: jobID,
		Status: models.ApplicationSubmitted, SubmittedAt: time.Now(),
	}, nil
}

type nopPublisher struct{}

func (nopPublisher) PublishAnalysisJob(context.Context, string) error { return nil }

func TestSubmitApplicationDuplicateAnswersWithExisting(t *testing.T) {
	db := intakeStubDB{}
	intake := services.NewIntakeService(db, nil, "test-bucket", nopPublisher{}, zap.NewNop())
	h := NewIntakeHandler(intake, nil, db, zap.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/applications", strings.NewReader(
		`{"job_id":"job-1","contact":"jane@example.com","document_url":"https://b.s3.us-east-2.amazonaws.com/cv.pdf"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	h.SubmitApplication(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code, "a resubmission is not an error and not a second 201")

	var res services.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Existing)
	assert.Equal(t, "app-existing", res.ApplicationID)
	assert.Empty(t, res.OneTimePassword)
}
