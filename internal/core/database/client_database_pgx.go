package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hireloop/hireloop/internal/config"
	"github.com/hireloop/hireloop/internal/core"
	"github.com/hireloop/hireloop/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// jsonList marshals a string slice for a jsonb column.
func jsonList(items []string) []byte {
	if items == nil {
		items = []string{}
	}
	b, _ := json.Marshal(items)
	return b
}

func newUUID() string {
	return uuid.NewString()
}

func scanList(raw []byte) []string {
	var out []string
	_ = json.Unmarshal(raw, &out)
	return out
}

// Candidates

func (c *DatabaseClient) CreateCandidate(ctx context.Context, cand *models.Candidate) error {
	if cand == nil {
		return errors.New("nil candidate")
	}
	const q = `
		INSERT INTO candidates
			(id, contact, display_name, password_hash, job_title, years_experience,
			 skills, education, summary, profile_edited, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE, COALESCE($11, now()), now())
	`
	_, err := c.db.ExecContext(ctx, q,
		cand.ID, cand.Contact, cand.DisplayName, cand.PasswordHash,
		cand.Profile.JobTitle, cand.Profile.YearsExperience, jsonList(cand.Profile.Skills),
		cand.Profile.Education, cand.Profile.Summary, cand.Profile.ProfileEdited, cand.CreatedAt)
	return err
}

const candidateCols = `
	id, contact, display_name, password_hash, job_title, years_experience,
	skills, education, summary, profile_edited, active, created_at, updated_at
`

func (c *DatabaseClient) scanCandidate(row *sql.Row) (*models.Candidate, error) {
	var (
		cand   models.Candidate
		skills []byte
	)
	err := row.Scan(
		&cand.ID, &cand.Contact, &cand.DisplayName, &cand.PasswordHash,
		&cand.Profile.JobTitle, &cand.Profile.YearsExperience, &skills,
		&cand.Profile.Education, &cand.Profile.Summary, &cand.Profile.ProfileEdited,
		&cand.Active, &cand.CreatedAt, &cand.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cand.Profile.Skills = scanList(skills)
	return &cand, nil
}

func (c *DatabaseClient) GetCandidateByContact(ctx context.Context, contact string) (*models.Candidate, error) {
	q := `SELECT ` + candidateCols + ` FROM candidates WHERE contact = $1`
	return c.scanCandidate(c.db.QueryRowContext(ctx, q, contact))
}

func (c *DatabaseClient) GetCandidateByID(ctx context.Context, id string) (*models.Candidate, error) {
	q := `SELECT ` + candidateCols + ` FROM candidates WHERE id = $1`
	return c.scanCandidate(c.db.QueryRowContext(ctx, q, id))
}

func (c *DatabaseClient) UpdateCandidateProfile(ctx context.Context, id string, p models.CandidateProfile) error {
	const q = `
		UPDATE candidates
		SET job_title = $2, years_experience = $3, skills = $4, education = $5,
		    summary = $6, profile_edited = $7, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q,
		id, p.JobTitle, p.YearsExperience, jsonList(p.Skills), p.Education, p.Summary, p.ProfileEdited)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("candidate not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) DeactivateCandidate(ctx context.Context, id string) error {
	const q = `UPDATE candidates SET active = FALSE, updated_at = now() WHERE id = $1`
	_, err := c.db.ExecContext(ctx, q, id)
	return err
}

// Jobs

func (c *DatabaseClient) GetJobByID(ctx context.Context, id string) (*models.Job, error) {
	const q = `
		SELECT id, company_name, title, description, requirements, active
		FROM jobs WHERE id = $1
	`
	var j models.Job
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&j.ID, &j.CompanyName, &j.Title, &j.Description, &j.Requirements, &j.Active,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// Applications

func (c *DatabaseClient) CreateApplication(ctx context.Context, a *models.Application) error {
	if a == nil {
		return errors.New("nil application")
	}
	const q = `
		INSERT INTO applications
			(id, candidate_id, job_id, document_id, status, cover_note, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()), now())
	`
	_, err := c.db.ExecContext(ctx, q,
		a.ID, a.CandidateID, a.JobID, a.DocumentID, a.Status, a.CoverNote, a.SubmittedAt)
	return err
}

const applicationCols = `
	id, candidate_id, job_id, document_id, status, cover_note, score, fit_label,
	strengths, weaknesses, recommendations, recommendations_at, submitted_at, updated_at
`

func scanApplication(row *sql.Row) (*models.Application, error) {
	var (
		a          models.Application
		strengths  []byte
		weaknesses []byte
	)
	err := row.Scan(
		&a.ID, &a.CandidateID, &a.JobID, &a.DocumentID, &a.Status, &a.CoverNote,
		&a.Score, &a.FitLabel, &strengths, &weaknesses,
		&a.Recommendations, &a.RecommendationsAt, &a.SubmittedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Strengths = scanList(strengths)
	a.Weaknesses = scanList(weaknesses)
	return &a, nil
}

func (c *DatabaseClient) GetApplicationByID(ctx context.Context, id string) (*models.Application, error) {
	q := `SELECT ` + applicationCols + ` FROM applications WHERE id = $1`
	return scanApplication(c.db.QueryRowContext(ctx, q, id))
}

// GetActiveApplication returns the candidate's non-failed application for a
// job, if one exists. Used for the duplicate-application idempotence check.
func (c *DatabaseClient) GetActiveApplication(ctx context.Context, candidateID, jobID string) (*models.Application, error) {
	q := `
		SELECT ` + applicationCols + `
		FROM applications
		WHERE candidate_id = $1 AND job_id = $2 AND status <> 'FAILED'
		ORDER BY submitted_at DESC
		LIMIT 1
	`
	return scanApplication(c.db.QueryRowContext(ctx, q, candidateID, jobID))
}

func (c *DatabaseClient) FindApplicationByJobAndContact(ctx context.Context, jobID, contact string) (*models.Application, error) {
	q := `
		SELECT ` + applicationCols + `
		FROM applications a
		WHERE a.job_id = $1
		  AND a.candidate_id = (SELECT id FROM candidates WHERE contact = $2)
		ORDER BY a.submitted_at DESC
		LIMIT 1
	`
	return scanApplication(c.db.QueryRowContext(ctx, q, jobID, contact))
}

func (c *DatabaseClient) UpdateApplicationStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	const q = `UPDATE applications SET status = $2, updated_at = now() WHERE id = $1`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("application not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) SaveAnalysisResult(ctx context.Context, applicationID string, res *models.AnalysisResult) error {
	if res == nil {
		return errors.New("nil analysis result")
	}
	const q = `
		UPDATE applications
		SET status = 'ANALYZED', score = $2, fit_label = $3, strengths = $4,
		    weaknesses = $5, updated_at = now()
		WHERE id = $1
	`
	_, err := c.db.ExecContext(ctx, q,
		applicationID, res.Score, res.FitLabel, jsonList(res.Strengths), jsonList(res.Weaknesses))
	return err
}

func (c *DatabaseClient) SaveRecommendations(ctx context.Context, applicationID, text string) error {
	const q = `
		UPDATE applications
		SET recommendations = $2, recommendations_at = now(), updated_at = now()
		WHERE id = $1
	`
	_, err := c.db.ExecContext(ctx, q, applicationID, text)
	return err
}

// Documents

// CreateDocumentActive retires the candidate's prior active documents and
// inserts the new one as active, in one transaction. Two documents must never
// be active for the same candidate at once.
func (c *DatabaseClient) CreateDocumentActive(ctx context.Context, d *models.Document) error {
	if d == nil {
		return errors.New("nil document")
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const retire = `UPDATE documents SET active = FALSE WHERE candidate_id = $1 AND active`
	if _, err := tx.ExecContext(ctx, retire, d.CandidateID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("retire prior documents: %w", err)
	}

	const ins = `
		INSERT INTO documents
			(id, candidate_id, storage_url, file_name, size_bytes, content_type,
			 status, active, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, COALESCE($8, now()))
	`
	if _, err := tx.ExecContext(ctx, ins,
		d.ID, d.CandidateID, d.StorageURL, d.FileName, d.SizeBytes, d.ContentType,
		d.Status, d.UploadedAt); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert document: %w", err)
	}
	return tx.Commit()
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, candidate_id, storage_url, file_name, size_bytes, content_type,
		       status, active, uploaded_at, processed_at
		FROM documents WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.CandidateID, &d.StorageURL, &d.FileName, &d.SizeBytes, &d.ContentType,
		&d.Status, &d.Active, &d.UploadedAt, &d.ProcessedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status models.DocumentStatus) error {
	const q = `
		UPDATE documents
		SET status = $2,
		    processed_at = CASE WHEN $2 IN ('PROCESSED', 'ERROR') THEN now() ELSE processed_at END
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

// Conversations and messages

func (c *DatabaseClient) UpsertConversation(ctx context.Context, contact, displayName string, at time.Time) (*models.Conversation, error) {
	// Display name is only overwritten when the provider actually sent one.
	const q = `
		INSERT INTO conversations (id, contact, display_name, last_message_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (contact) DO UPDATE
		SET last_message_at = GREATEST(conversations.last_message_at, EXCLUDED.last_message_at),
		    display_name = CASE WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name
		                        ELSE conversations.display_name END
		RETURNING id, contact, display_name, last_message_at, template_required, active
	`
	var conv models.Conversation
	err := c.db.QueryRowContext(ctx, q, newUUID(), contact, displayName, at).Scan(
		&conv.ID, &conv.Contact, &conv.DisplayName, &conv.LastMessageAt,
		&conv.TemplateRequired, &conv.Active,
	)
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// InsertMessage is idempotent on provider_message_id: replays of the same
// message event leave exactly one row.
func (c *DatabaseClient) InsertMessage(ctx context.Context, m *models.Message) error {
	if m == nil {
		return errors.New("nil message")
	}
	const q = `
		INSERT INTO messages
			(id, conversation_id, provider_message_id, direction, content,
			 message_type, status, status_at, provider_metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE(NULLIF($9, ''), '{}')::jsonb, COALESCE($10, now()))
		ON CONFLICT (provider_message_id) DO NOTHING
	`
	_, err := c.db.ExecContext(ctx, q,
		m.ID, m.ConversationID, m.ProviderMessageID, m.Direction, m.Content,
		m.MessageType, m.Status, m.StatusAt, m.ProviderMetadata, m.CreatedAt)
	return err
}

func (c *DatabaseClient) GetMessageByProviderID(ctx context.Context, providerMessageID string) (*models.Message, error) {
	const q = `
		SELECT id, conversation_id, provider_message_id, direction, content,
		       message_type, status, status_at, provider_metadata, created_at
		FROM messages WHERE provider_message_id = $1
	`
	var m models.Message
	err := c.db.QueryRowContext(ctx, q, providerMessageID).Scan(
		&m.ID, &m.ConversationID, &m.ProviderMessageID, &m.Direction, &m.Content,
		&m.MessageType, &m.Status, &m.StatusAt, &m.ProviderMetadata, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMessageStatus applies a delivery receipt. The timestamp guard keeps
// out-of-order receipts from moving a message backwards.
func (c *DatabaseClient) UpdateMessageStatus(ctx context.Context, providerMessageID string, status models.MessageStatus, at time.Time) error {
	const q = `
		UPDATE messages
		SET status = $2, status_at = $3
		WHERE provider_message_id = $1 AND status_at <= $3
	`
	_, err := c.db.ExecContext(ctx, q, providerMessageID, status, at)
	return err
}
