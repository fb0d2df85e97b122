package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/hireloop/internal/core"
	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/core/rtc"
)

// SessionService assembles the interview metadata bundle and provisions a
// time-boxed room on the conferencing provider. Sessions are not persisted;
// the provider's empty-room timeout owns the room lifecycle.
type SessionService struct {
	db           core.DbClient
	rooms        core.RoomProvider
	issuer       TokenIssuer
	emptyTimeout time.Duration
	logger       *zap.Logger
}

// TokenIssuer is the credential lifecycle dependency (satisfied by
// rtc.TokenIssuer).
type TokenIssuer interface {
	Issue(room, identity string) (*rtc.Credential, error)
	Refresh(room, identity string) (*rtc.Credential, error)
}

func NewSessionService(db core.DbClient, rooms core.RoomProvider, issuer TokenIssuer, emptyTimeout time.Duration, logger *zap.Logger) *SessionService {
	return &SessionService{db: db, rooms: rooms, issuer: issuer, emptyTimeout: emptyTimeout, logger: logger}
}

// SessionBundle is what a participant needs to join.
type SessionBundle struct {
	RoomName   string    `json:"room_name"`
	ServerURL  string    `json:"server_url"`
	Credential string    `json:"credential"`
	ExpiresAt  time.Time `json:"expires_at"`
	Identity   string    `json:"identity"`
}

// roomMetadata is the snapshot embedded in the provider room, sized to fit
// the provider's metadata limit.
type roomMetadata struct {
	Job struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Company string `json:"company"`
	} `json:"job"`
	Candidate struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Contact string `json:"contact"`
		Summary string `json:"summary,omitempty"`
	} `json:"candidate"`
	Analysis *struct {
		Score      int      `json:"score"`
		FitLabel   string   `json:"fit_label"`
		Strengths  []string `json:"strengths,omitempty"`
		Weaknesses []string `json:"weaknesses,omitempty"`
	} `json:"analysis,omitempty"`
	ApplicationID string `json:"application_id"`
}

// CreateSession provisions a room for the application identified by job +
// contact and issues the immediate participant's credential. A room is never
// created without a resolvable application.
func (s *SessionService) CreateSession(ctx context.Context, jobID, contact string) (*SessionBundle, error) {
	normalized, err := NormalizeContact(contact)
	if err != nil {
		return nil, err
	}

	app, err := s.db.FindApplicationByJobAndContact(ctx, jobID, normalized)
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}
	if app == nil {
		return nil, fmt.Errorf("application for job %s and contact %s: %w", jobID, normalized, core.ErrNotFound)
	}

	candidate, err := s.db.GetCandidateByID(ctx, app.CandidateID)
	if err != nil || candidate == nil {
		return nil, fmt.Errorf("load candidate %s: %w", app.CandidateID, core.ErrNotFound)
	}
	job, err := s.db.GetJobByID(ctx, app.JobID)
	if err != nil || job == nil {
		return nil, fmt.Errorf("load job %s: %w", app.JobID, core.ErrNotFound)
	}

	metadata, err := s.buildMetadata(app, candidate, job)
	if err != nil {
		return nil, fmt.Errorf("build metadata: %w", err)
	}

	roomName, err := composeRoomName(app.ID)
	if err != nil {
		return nil, err
	}

	if err := s.rooms.CreateRoom(ctx, core.RoomSpec{
		Name:         roomName,
		Metadata:     metadata,
		EmptyTimeout: s.emptyTimeout,
	}); err != nil {
		return nil, fmt.Errorf("provision room: %w", err)
	}

	identity := participantIdentity(candidate)
	cred, err := s.issuer.Issue(roomName, identity)
	if err != nil {
		return nil, fmt.Errorf("issue credential: %w", err)
	}

	s.logger.Info("session provisioned",
		zap.String("room", roomName), zap.String("application_id", app.ID),
		zap.Time("expires_at", cred.ExpiresAt))

	return &SessionBundle{
		RoomName:   roomName,
		ServerURL:  s.rooms.ServerURL(),
		Credential: cred.Token,
		ExpiresAt:  cred.ExpiresAt,
		Identity:   identity,
	}, nil
}

// RefreshCredential issues a new credential for the same room/participant
// pair without touching room identity or metadata.
func (s *SessionService) RefreshCredential(ctx context.Context, roomName, identity string) (*SessionBundle, error) {
	if roomName == "" || identity == "" {
		return nil, fmt.Errorf("room and identity are required: %w", core.ErrValidation)
	}

	cred, err := s.issuer.Refresh(roomName, identity)
	if err != nil {
		return nil, fmt.Errorf("refresh credential: %w", err)
	}

	return &SessionBundle{
		RoomName:   roomName,
		ServerURL:  s.rooms.ServerURL(),
		Credential: cred.Token,
		ExpiresAt:  cred.ExpiresAt,
		Identity:   identity,
	}, nil
}

// buildMetadata marshals the snapshot, progressively dropping optional
// detail until it fits the provider's metadata limit.
func (s *SessionService) buildMetadata(app *models.Application, candidate *models.Candidate, job *models.Job) (string, error) {
	var m roomMetadata
	m.ApplicationID = app.ID
	m.Job.ID = job.ID
	m.Job.Title = job.Title
	m.Job.Company = job.CompanyName
	m.Candidate.ID = candidate.ID
	m.Candidate.Name = candidate.DisplayName
	m.Candidate.Contact = candidate.Contact
	m.Candidate.Summary = candidate.Profile.Summary

	if app.Score != nil {
		m.Analysis = &struct {
			Score      int      `json:"score"`
			FitLabel   string   `json:"fit_label"`
			Strengths  []string `json:"strengths,omitempty"`
			Weaknesses []string `json:"weaknesses,omitempty"`
		}{
			Score:      *app.Score,
			FitLabel:   app.FitLabel,
			Strengths:  app.Strengths,
			Weaknesses: app.Weaknesses,
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	if len(out) <= rtc.MaxMetadataBytes {
		return string(out), nil
	}

	// Too big: drop the detail lists, then the summary.
	if m.Analysis != nil {
		m.Analysis.Strengths = nil
		m.Analysis.Weaknesses = nil
	}
	if out, err = json.Marshal(m); err == nil && len(out) <= rtc.MaxMetadataBytes {
		return string(out), nil
	}
	m.Candidate.Summary = ""
	if out, err = json.Marshal(m); err != nil {
		return "", err
	}
	if len(out) > rtc.MaxMetadataBytes {
		return "", fmt.Errorf("metadata still exceeds provider limit (%d bytes)", len(out))
	}
	return string(out), nil
}

// composeRoomName builds a globally unique room name from the application id,
// creation time and a random component.
func composeRoomName(applicationID string) (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("room name randomness: %w", err)
	}
	prefix := applicationID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("itv-%s-%d-%s", prefix, time.Now().Unix(), hex.EncodeToString(buf)), nil
}

func participantIdentity(c *models.Candidate) string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Contact
}
