package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hireloop/hireloop/internal/core"
	"github.com/hireloop/hireloop/internal/models"
)

// ConversationService upserts the per-contact thread and appends message
// records. Webhook delivery is at-least-once and unordered, so everything
// here is idempotent on the provider message id.
type ConversationService struct {
	db     core.DbClient
	logger *zap.Logger
}

func NewConversationService(db core.DbClient, logger *zap.Logger) *ConversationService {
	return &ConversationService{db: db, logger: logger}
}

// RecordOutbound attaches an outbound message to the contact's conversation,
// creating the conversation when absent.
func (s *ConversationService) RecordOutbound(ctx context.Context, contact string, msg *models.Message) error {
	return s.record(ctx, contact, "", msg)
}

// RecordInbound handles an inbound message event from the webhook. The
// display name is learned from the provider profile when present.
func (s *ConversationService) RecordInbound(ctx context.Context, contact, displayName string, msg *models.Message) error {
	return s.record(ctx, contact, displayName, msg)
}

func (s *ConversationService) record(ctx context.Context, contact, displayName string, msg *models.Message) error {
	if msg == nil || msg.ProviderMessageID == "" {
		return fmt.Errorf("message needs a provider id: %w", core.ErrValidation)
	}

	at := msg.CreatedAt
	if at.IsZero() {
		at = time.Now()
		msg.CreatedAt = at
	}

	conv, err := s.db.UpsertConversation(ctx, contact, displayName, at)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.ConversationID = conv.ID
	if msg.StatusAt.IsZero() {
		msg.StatusAt = at
	}

	if err := s.db.InsertMessage(ctx, msg); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ApplyReceipt updates a message's delivery status from a receipt webhook.
// Receipts referencing an unknown provider id are logged and dropped; the
// webhook must always be acknowledged, so this is not an error. Statuses
// only move forward (SENT < DELIVERED < READ) and only in increasing
// timestamp order.
func (s *ConversationService) ApplyReceipt(ctx context.Context, providerMessageID string, status models.MessageStatus, at time.Time) error {
	if models.StatusRank(status) == 0 {
		s.logger.Warn("unknown receipt status, dropping",
			zap.String("provider_message_id", providerMessageID), zap.String("status", string(status)))
		return nil
	}

	msg, err := s.db.GetMessageByProviderID(ctx, providerMessageID)
	if err != nil {
		return fmt.Errorf("lookup message: %w", err)
	}
	if msg == nil {
		s.logger.Warn("receipt for unknown message, dropping",
			zap.String("provider_message_id", providerMessageID))
		return nil
	}

	if models.StatusRank(status) <= models.StatusRank(msg.Status) {
		// Replay or out-of-order receipt; current state already reflects a
		// later stage.
		return nil
	}

	if err := s.db.UpdateMessageStatus(ctx, providerMessageID, status, at); err != nil {
		return fmt.Errorf("update message status: %w", err)
	}
	return nil
}
