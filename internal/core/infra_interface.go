package core

import (
	"context"
	"io"
	"time"

	"github.com/hireloop/hireloop/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres so higher layers never depend on a specific DB.
type DbClient interface {
	CreateCandidate(ctx context.Context, c *models.Candidate) error
	GetCandidateByContact(ctx context.Context, contact string) (*models.Candidate, error)
	GetCandidateByID(ctx context.Context, id string) (*models.Candidate, error)
	UpdateCandidateProfile(ctx context.Context, id string, p models.CandidateProfile) error
	DeactivateCandidate(ctx context.Context, id string) error

	GetJobByID(ctx context.Context, id string) (*models.Job, error)

	CreateApplication(ctx context.Context, a *models.Application) error
	GetApplicationByID(ctx context.Context, id string) (*models.Application, error)
	GetActiveApplication(ctx context.Context, candidateID, jobID string) (*models.Application, error)
	FindApplicationByJobAndContact(ctx context.Context, jobID, contact string) (*models.Application, error)
	UpdateApplicationStatus(ctx context.Context, id string, status models.ApplicationStatus) error
	SaveAnalysisResult(ctx context.Context, applicationID string, res *models.AnalysisResult) error
	SaveRecommendations(ctx context.Context, applicationID, text string) error

	// CreateDocumentActive inserts the document as the candidate's active one
	// and retires prior active documents in the same transaction.
	CreateDocumentActive(ctx context.Context, d *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus) error

	UpsertConversation(ctx context.Context, contact, displayName string, at time.Time) (*models.Conversation, error)
	InsertMessage(ctx context.Context, m *models.Message) error
	GetMessageByProviderID(ctx context.Context, providerMessageID string) (*models.Message, error)
	UpdateMessageStatus(ctx context.Context, providerMessageID string, status models.MessageStatus, at time.Time) error

	Close() error
}

// ObjectClient defines interactions with S3 or any object storage. Retired
// documents keep their objects (audit trail), so there is no delete here.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)

	// GetObjectReader streams the object; the caller owns the Close.
	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
