package core

import (
	"context"
	"time"

	"github.com/hireloop/hireloop/internal/models"
)

// AnalysisProvider is the external service that scores a candidate document
// against a job description.
type AnalysisProvider interface {
	Analyze(ctx context.Context, job *models.Job, candidateText string) (*models.AnalysisResult, error)
	Recommend(ctx context.Context, job *models.Job, res *models.AnalysisResult) (string, error)
}

// DocumentExtractor pulls plain text out of raw document bytes. The content
// type hint selects the parsing strategy. Empty text is never a success.
type DocumentExtractor interface {
	Extract(ctx context.Context, data []byte, contentType string) (string, error)
}

// DocumentFetcher resolves a document storage reference to its raw bytes.
type DocumentFetcher interface {
	Fetch(ctx context.Context, storageURL string) ([]byte, error)
}

// SendResult carries the gateway's assigned id for an accepted message.
type SendResult struct {
	MessageID string
}

// MessageGateway is the outbound messaging provider.
type MessageGateway interface {
	SendTemplate(ctx context.Context, to, template string, params []string) (*SendResult, error)
}

// RoomSpec describes a conferencing room to provision.
type RoomSpec struct {
	Name         string
	Metadata     string
	EmptyTimeout time.Duration
}

// RoomProvider is the real-time conferencing provider.
type RoomProvider interface {
	CreateRoom(ctx context.Context, spec RoomSpec) error
	ServerURL() string
}

// JobPublisher enqueues background analysis work. Only the application id
// crosses the boundary; workers reload everything else from the database.
type JobPublisher interface {
	PublishAnalysisJob(ctx context.Context, applicationID string) error
}
