package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/hireloop/internal/core"
	"github.com/hireloop/hireloop/internal/models"
)

// memDB is an in-memory DbClient used by the service tests. Maps are keyed
// the same way the schema's unique constraints are, so the fake enforces the
// invariants the database would.
type memDB struct {
	mu sync.Mutex

	candidates    map[string]*models.Candidate // by id
	candByContact map[string]string            // contact -> id
	jobs          map[string]*models.Job
	applications  map[string]*models.Application
	documents     map[string]*models.Document
	conversations map[string]*models.Conversation // by contact
	messages      map[string]*models.Message      // by provider message id
}

func newMemDB() *memDB {
	return &memDB{
		candidates:    make(map[string]*models.Candidate),
		candByContact: make(map[string]string),
		jobs:          make(map[string]*models.Job),
		applications:  make(map[string]*models.Application),
		documents:     make(map[string]*models.Document),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string]*models.Message),
	}
}

var _ core.DbClient = (*memDB)(nil)

func (m *memDB) CreateCandidate(_ context.Context, c *models.Candidate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.candByContact[c.Contact]; dup {
		return fmt.Errorf("duplicate contact %s", c.Contact)
	}
	cp := *c
	m.candidates[c.ID] = &cp
	m.candByContact[c.Contact] = c.ID
	return nil
}

func (m *memDB) GetCandidateByContact(_ context.Context, contact string) (*models.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.candByContact[contact]
	if !ok {
		return nil, nil
	}
	cp := *m.candidates[id]
	return &cp, nil
}

func (m *memDB) GetCandidateByID(_ context.Context, id string) (*models.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memDB) UpdateCandidateProfile(_ context.Context, id string, p models.CandidateProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return fmt.Errorf("candidate %s not found", id)
	}
	c.Profile = p
	return nil
}

func (m *memDB) DeactivateCandidate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.candidates[id]; ok {
		c.Active = false
	}
	return nil
}

func (m *memDB) GetJobByID(_ context.Context, id string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *j
	return &cp, nil
}

func (m *memDB) CreateApplication(_ context.Context, a *models.Application) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.applications[a.ID] = &cp
	return nil
}

func (m *memDB) GetApplicationByID(_ context.Context, id string) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (m *memDB) GetActiveApplication(_ context.Context, candidateID, jobID string) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.applications {
		if a.CandidateID == candidateID && a.JobID == jobID && a.Status != models.ApplicationFailed {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memDB) FindApplicationByJobAndContact(_ context.Context, jobID, contact string) (*models.Application, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.candByContact[contact]
	if !ok {
		return nil, nil
	}
	var latest *models.Application
	for _, a := range m.applications {
		if a.CandidateID == id && a.JobID == jobID {
			if latest == nil || a.SubmittedAt.After(latest.SubmittedAt) {
				latest = a
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (m *memDB) UpdateApplicationStatus(_ context.Context, id string, status models.ApplicationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[id]
	if !ok {
		return fmt.Errorf("application %s not found", id)
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	return nil
}

func (m *memDB) SaveAnalysisResult(_ context.Context, applicationID string, res *models.AnalysisResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[applicationID]
	if !ok {
		return fmt.Errorf("application %s not found", applicationID)
	}
	score := res.Score
	a.Score = &score
	a.FitLabel = res.FitLabel
	a.Strengths = res.Strengths
	a.Weaknesses = res.Weaknesses
	a.Status = models.ApplicationAnalyzed
	a.UpdatedAt = time.Now()
	return nil
}

func (m *memDB) SaveRecommendations(_ context.Context, applicationID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.applications[applicationID]
	if !ok {
		return fmt.Errorf("application %s not found", applicationID)
	}
	now := time.Now()
	a.Recommendations = text
	a.RecommendationsAt = &now
	return nil
}

func (m *memDB) CreateDocumentActive(_ context.Context, d *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, prev := range m.documents {
		if prev.CandidateID == d.CandidateID {
			prev.Active = false
		}
	}
	cp := *d
	m.documents[d.ID] = &cp
	return nil
}

func (m *memDB) GetDocumentByID(_ context.Context, id string) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (m *memDB) UpdateDocumentStatus(_ context.Context, id string, status models.DocumentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return fmt.Errorf("document %s not found", id)
	}
	d.Status = status
	if status == models.DocumentProcessed || status == models.DocumentError {
		now := time.Now()
		d.ProcessedAt = &now
	}
	return nil
}

func (m *memDB) UpsertConversation(_ context.Context, contact, displayName string, at time.Time) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[contact]
	if !ok {
		conv = &models.Conversation{
			ID:            "conv-" + contact,
			Contact:       contact,
			DisplayName:   displayName,
			LastMessageAt: at,
			Active:        true,
		}
		m.conversations[contact] = conv
	} else {
		if at.After(conv.LastMessageAt) {
			conv.LastMessageAt = at
		}
		if displayName != "" {
			conv.DisplayName = displayName
		}
	}
	cp := *conv
	return &cp, nil
}

func (m *memDB) InsertMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.messages[msg.ProviderMessageID]; dup {
		// Same conflict behavior as the unique index: silently keep the first.
		return nil
	}
	cp := *msg
	m.messages[msg.ProviderMessageID] = &cp
	return nil
}

func (m *memDB) GetMessageByProviderID(_ context.Context, providerMessageID string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[providerMessageID]
	if !ok {
		return nil, nil
	}
	cp := *msg
	return &cp, nil
}

func (m *memDB) UpdateMessageStatus(_ context.Context, providerMessageID string, status models.MessageStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[providerMessageID]
	if !ok {
		return fmt.Errorf("message %s not found", providerMessageID)
	}
	if at.Before(msg.StatusAt) {
		return nil
	}
	msg.Status = status
	msg.StatusAt = at
	return nil
}

func (m *memDB) Close() error { return nil }

// memStorage records uploads without talking to S3.
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: make(map[string][]byte)}
}

func (s *memStorage) UploadFile(_ context.Context, bucket, key string, data []byte, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return fmt.Sprintf("https://%s.s3.test.amazonaws.com/%s", bucket, key), nil
}

func (s *memStorage) GetObjectReader(_ context.Context, _, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, core.ErrDocumentNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// fakePublisher records published job ids and can be forced to fail.
type fakePublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *fakePublisher) PublishAnalysisJob(_ context.Context, applicationID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, applicationID)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

// fakeGateway is the outbound messaging provider double.
type fakeGateway struct {
	mu    sync.Mutex
	sent  []string // "to|template"
	err   error
	seq   int
	lastP []string
}

func (g *fakeGateway) SendTemplate(_ context.Context, to, template string, params []string) (*core.SendResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.seq++
	g.sent = append(g.sent, to+"|"+template)
	g.lastP = params
	return &core.SendResult{MessageID: fmt.Sprintf("prov-%d", g.seq)}, nil
}

func (g *fakeGateway) sentCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

// fakeRooms records provisioned rooms.
type fakeRooms struct {
	mu    sync.Mutex
	rooms []core.RoomSpec
	err   error
}

func (r *fakeRooms) CreateRoom(_ context.Context, spec core.RoomSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.rooms = append(r.rooms, spec)
	return nil
}

func (r *fakeRooms) ServerURL() string { return "wss://rtc.test.example.com" }

// fakeAnalyzer returns a canned result or a configured error.
type fakeAnalyzer struct {
	result *models.AnalysisResult
	rec    string
	err    error
	recErr error
}

func (a *fakeAnalyzer) Analyze(_ context.Context, _ *models.Job, _ string) (*models.AnalysisResult, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.result, nil
}

func (a *fakeAnalyzer) Recommend(_ context.Context, _ *models.Job, _ *models.AnalysisResult) (string, error) {
	if a.recErr != nil {
		return "", a.recErr
	}
	return a.rec, nil
}

// fakeFetcher resolves every storage URL to the same bytes.
type fakeFetcher struct {
	data []byte
	err  error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

// fakeExtractor returns its input as text.
type fakeExtractor struct {
	err error
}

func (e *fakeExtractor) Extract(_ context.Context, data []byte, _ string) (string, error) {
	if e.err != nil {
		return "", e.err
	}
	return string(data), nil
}

func testLogger() *zap.Logger { return zap.NewNop() }
