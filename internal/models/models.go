package models

import (
	"time"
)

// Document processing lifecycle.
type DocumentStatus string

const (
	DocumentUploaded   DocumentStatus = "UPLOADED"
	DocumentProcessing DocumentStatus = "PROCESSING"
	DocumentProcessed  DocumentStatus = "PROCESSED"
	DocumentError      DocumentStatus = "ERROR"
)

// Application lifecycle.
type ApplicationStatus string

const (
	ApplicationSubmitted  ApplicationStatus = "SUBMITTED"
	ApplicationProcessing ApplicationStatus = "PROCESSING"
	ApplicationAnalyzed   ApplicationStatus = "ANALYZED"
	ApplicationFailed     ApplicationStatus = "FAILED"
)

// Message direction and delivery status.
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "INBOUND"
	DirectionOutbound MessageDirection = "OUTBOUND"
)

type MessageStatus string

const (
	MessageSent      MessageStatus = "SENT"
	MessageDelivered MessageStatus = "DELIVERED"
	MessageRead      MessageStatus = "READ"
	MessageFailed    MessageStatus = "FAILED"
)

// Candidate is a person's durable identity across applications, keyed by
// contact identifier (phone number in E.164 form or email).
type Candidate struct {
	ID           string    `db:"id" json:"id"`
	Contact      string    `db:"contact" json:"contact"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`

	Profile CandidateProfile `json:"profile"`
}

// CandidateProfile holds fields the analysis pipeline may backfill.
// ProfileEdited marks that the candidate has edited these themselves, in
// which case the pipeline must not overwrite them.
type CandidateProfile struct {
	JobTitle        string   `db:"job_title" json:"job_title"`
	YearsExperience int      `db:"years_experience" json:"years_experience"`
	Skills          []string `db:"skills" json:"skills"`
	Education       string   `db:"education" json:"education"`
	Summary         string   `db:"summary" json:"summary"`
	ProfileEdited   bool     `db:"profile_edited" json:"profile_edited"`
}

// Job is read-only from this subsystem's point of view; job/company CRUD
// lives elsewhere.
type Job struct {
	ID           string `db:"id" json:"id"`
	CompanyName  string `db:"company_name" json:"company_name"`
	Title        string `db:"title" json:"title"`
	Description  string `db:"description" json:"description"`
	Requirements string `db:"requirements" json:"requirements"`
	Active       bool   `db:"active" json:"active"`
}

// Application links a Candidate to a Job and carries the analysis outcome.
type Application struct {
	ID                string            `db:"id" json:"id"`
	CandidateID       string            `db:"candidate_id" json:"candidate_id"`
	JobID             string            `db:"job_id" json:"job_id"`
	DocumentID        string            `db:"document_id" json:"document_id"`
	Status            ApplicationStatus `db:"status" json:"status"`
	CoverNote         string            `db:"cover_note" json:"cover_note,omitempty"`
	Score             *int              `db:"score" json:"score,omitempty"`
	FitLabel          string            `db:"fit_label" json:"fit_label,omitempty"`
	Strengths         []string          `db:"strengths" json:"strengths,omitempty"`
	Weaknesses        []string          `db:"weaknesses" json:"weaknesses,omitempty"`
	Recommendations   string            `db:"recommendations" json:"recommendations,omitempty"`
	RecommendationsAt *time.Time        `db:"recommendations_at" json:"recommendations_at,omitempty"`
	SubmittedAt       time.Time         `db:"submitted_at" json:"submitted_at"`
	UpdatedAt         time.Time         `db:"updated_at" json:"updated_at"`
}

// Document is one uploaded artifact. At most one document per candidate is
// active at a time; superseded documents are retired, not deleted.
type Document struct {
	ID          string         `db:"id" json:"id"`
	CandidateID string         `db:"candidate_id" json:"candidate_id"`
	StorageURL  string         `db:"storage_url" json:"storage_url"`
	FileName    string         `db:"file_name" json:"file_name"`
	SizeBytes   int64          `db:"size_bytes" json:"size_bytes"`
	ContentType string         `db:"content_type" json:"content_type"`
	Status      DocumentStatus `db:"status" json:"status"`
	Active      bool           `db:"active" json:"active"`
	UploadedAt  time.Time      `db:"uploaded_at" json:"uploaded_at"`
	ProcessedAt *time.Time     `db:"processed_at" json:"processed_at,omitempty"`
}

// Conversation is the per-contact message thread.
type Conversation struct {
	ID               string    `db:"id" json:"id"`
	Contact          string    `db:"contact" json:"contact"`
	DisplayName      string    `db:"display_name" json:"display_name"`
	LastMessageAt    time.Time `db:"last_message_at" json:"last_message_at"`
	TemplateRequired bool      `db:"template_required" json:"template_required"`
	Active           bool      `db:"active" json:"active"`
}

// Message belongs to a Conversation. ProviderMessageID is the gateway's id
// and is the idempotency key for receipt webhooks. StatusAt is the timestamp
// of the receipt that produced the current status; receipts only apply
// forward in time.
type Message struct {
	ID                string           `db:"id" json:"id"`
	ConversationID    string           `db:"conversation_id" json:"conversation_id"`
	ProviderMessageID string           `db:"provider_message_id" json:"provider_message_id"`
	Direction         MessageDirection `db:"direction" json:"direction"`
	Content           string           `db:"content" json:"content"`
	MessageType       string           `db:"message_type" json:"message_type"`
	Status            MessageStatus    `db:"status" json:"status"`
	StatusAt          time.Time        `db:"status_at" json:"status_at"`
	ProviderMetadata  string           `db:"provider_metadata" json:"provider_metadata,omitempty"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
}

// AnalysisResult is the structured outcome of the external analysis service.
type AnalysisResult struct {
	Score      int          `json:"score"`
	FitLabel   string       `json:"fit_label"`
	Strengths  []string     `json:"strengths"`
	Weaknesses []string     `json:"weaknesses"`
	Profile    ProfileFacts `json:"profile"`
}

// ProfileFacts are candidate facts the analysis surfaced from the document.
type ProfileFacts struct {
	JobTitle        string   `json:"job_title"`
	YearsExperience int      `json:"years_experience"`
	Skills          []string `json:"skills"`
	Education       string   `json:"education"`
	Summary         string   `json:"summary"`
}

// StatusRank orders delivery statuses so receipts never move a message
// backwards. FAILED is terminal.
func StatusRank(s MessageStatus) int {
	switch s {
	case MessageSent:
		return 1
	case MessageDelivered:
		return 2
	case MessageRead:
		return 3
	case MessageFailed:
		return 4
	default:
		return 0
	}
}
