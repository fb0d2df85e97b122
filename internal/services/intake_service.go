package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/hireloop/hireloop/internal/core"
	"github.com/hireloop/hireloop/internal/models"
)

var (
	phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// IntakeService converts an anonymous application into a durable candidate
// record and schedules the background analysis. The enqueue never blocks the
// caller on the analysis outcome.
type IntakeService struct {
	db        core.DbClient
	storage   core.ObjectClient
	bucket    string
	publisher core.JobPublisher
	logger    *zap.Logger
}

func NewIntakeService(db core.DbClient, storage core.ObjectClient, bucket string, publisher core.JobPublisher, logger *zap.Logger) *IntakeService {
	return &IntakeService{db: db, storage: storage, bucket: bucket, publisher: publisher, logger: logger}
}

// SubmitInput is one anonymous application. Either Data (an uploaded file)
// or StorageURL (an already-stored document) must be set.
type SubmitInput struct {
	JobID       string
	Contact     string
	DisplayName string
	CoverNote   string
	FileName    string
	ContentType string
	Data        []byte
	StorageURL  string
}

// SubmitResult returns the application id immediately. OneTimePassword is
// set only when a new candidate was synthesized, so the contact can later
// claim a full account.
type SubmitResult struct {
	ApplicationID   string `json:"application_id"`
	CandidateID     string `json:"candidate_id"`
	Contact         string `json:"contact"`
	Existing        bool   `json:"existing"`
	OneTimePassword string `json:"one_time_password,omitempty"`
}

// NormalizeContact canonicalizes a contact identifier: phone numbers to
// E.164, emails lowercased. Anything else is a validation error.
func NormalizeContact(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty contact: %w", core.ErrValidation)
	}

	if strings.Contains(s, "@") {
		s = strings.ToLower(s)
		if !emailPattern.MatchString(s) {
			return "", fmt.Errorf("malformed email %q: %w", raw, core.ErrValidation)
		}
		return s, nil
	}

	// Strip common phone formatting before validating.
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, s)
	if strings.HasPrefix(cleaned, "00") {
		cleaned = "+" + cleaned[2:]
	}
	if !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}
	if !phonePattern.MatchString(cleaned) {
		return "", fmt.Errorf("malformed phone %q: %w", raw, core.ErrValidation)
	}
	return cleaned, nil
}

// SubmitApplication runs intake: dedupe the candidate by contact, persist
// document and application, then enqueue analysis and return.
//
// A duplicate active application for the same candidate+job is an idempotent
// no-op returning the existing application, not a user-facing error.
func (s *IntakeService) SubmitApplication(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	contact, err := NormalizeContact(in.Contact)
	if err != nil {
		return nil, err
	}
	if in.JobID == "" {
		return nil, fmt.Errorf("job id is required: %w", core.ErrValidation)
	}
	if len(in.Data) == 0 && in.StorageURL == "" {
		return nil, fmt.Errorf("a document is required: %w", core.ErrValidation)
	}

	job, err := s.db.GetJobByID(ctx, in.JobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job == nil || !job.Active {
		return nil, fmt.Errorf("job %s: %w", in.JobID, core.ErrNotFound)
	}

	candidate, err := s.db.GetCandidateByContact(ctx, contact)
	if err != nil {
		return nil, fmt.Errorf("lookup candidate: %w", err)
	}

	var oneTimePassword string
	if candidate == nil {
		oneTimePassword, candidate, err = s.createCandidate(ctx, contact, in.DisplayName)
		if err != nil {
			return nil, err
		}
	} else {
		existing, err := s.db.GetActiveApplication(ctx, candidate.ID, in.JobID)
		if err != nil {
			return nil, fmt.Errorf("duplicate check: %w", err)
		}
		if existing != nil {
			s.logger.Info("duplicate application, returning existing",
				zap.String("application_id", existing.ID), zap.String("candidate_id", candidate.ID))
			// Soft conflict: the boundary resolves it by answering with the
			// existing row instead of an error.
			return &SubmitResult{
					ApplicationID: existing.ID,
					CandidateID:   candidate.ID,
					Contact:       contact,
					Existing:      true,
				}, fmt.Errorf("candidate %s already applied to job %s: %w",
					candidate.ID, in.JobID, core.ErrDuplicateApplication)
		}
	}

	doc, err := s.storeDocument(ctx, candidate.ID, in)
	if err != nil {
		return nil, err
	}

	app := &models.Application{
		ID:          uuid.NewString(),
		CandidateID: candidate.ID,
		JobID:       in.JobID,
		DocumentID:  doc.ID,
		Status:      models.ApplicationSubmitted,
		CoverNote:   in.CoverNote,
		SubmittedAt: time.Now(),
	}
	if err := s.db.CreateApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("create application: %w", err)
	}

	// The application row is durable; a failed publish leaves it re-runnable
	// via the manual re-trigger, so intake still succeeds.
	if err := s.publisher.PublishAnalysisJob(ctx, app.ID); err != nil {
		s.logger.Error("enqueue analysis failed, application stays SUBMITTED",
			zap.String("application_id", app.ID), zap.Error(err))
	}

	return &SubmitResult{
		ApplicationID:   app.ID,
		CandidateID:     candidate.ID,
		Contact:         contact,
		OneTimePassword: oneTimePassword,
	}, nil
}

func (s *IntakeService) createCandidate(ctx context.Context, contact, displayName string) (string, *models.Candidate, error) {
	oneTime, err := generatePassword()
	if err != nil {
		return "", nil, fmt.Errorf("generate credential: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(oneTime), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, fmt.Errorf("hash credential: %w", err)
	}

	candidate := &models.Candidate{
		ID:           uuid.NewString(),
		Contact:      contact,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Active:       true,
		CreatedAt:    time.Now(),
	}
	if err := s.db.CreateCandidate(ctx, candidate); err != nil {
		return "", nil, fmt.Errorf("create candidate: %w", err)
	}
	s.logger.Info("created candidate", zap.String("candidate_id", candidate.ID))
	return oneTime, candidate, nil
}

// storeDocument persists the document row as UPLOADED and active, uploading
// the bytes first when the caller passed a file.
func (s *IntakeService) storeDocument(ctx context.Context, candidateID string, in SubmitInput) (*models.Document, error) {
	docID := uuid.NewString()
	storageURL := in.StorageURL
	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if len(in.Data) > 0 {
		key := objectKey(candidateID, docID, in.FileName)
		url, err := s.storage.UploadFile(ctx, s.bucket, key, in.Data, contentType)
		if err != nil {
			return nil, fmt.Errorf("store document: %w", err)
		}
		storageURL = url
	}

	doc := &models.Document{
		ID:          docID,
		CandidateID: candidateID,
		StorageURL:  storageURL,
		FileName:    in.FileName,
		SizeBytes:   int64(len(in.Data)),
		ContentType: contentType,
		Status:      models.DocumentUploaded,
		Active:      true,
		UploadedAt:  time.Now(),
	}
	if err := s.db.CreateDocumentActive(ctx, doc); err != nil {
		return nil, fmt.Errorf("persist document: %w", err)
	}
	return doc, nil
}

func generatePassword() (string, error) {
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// objectKey creates a consistent S3 key layout.
func objectKey(candidateID, docID, filename string) string {
	filename = strings.TrimSpace(filename)
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join("candidates", candidateID, "documents", docID, path.Base(filename))
}
