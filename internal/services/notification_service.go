package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hireloop/hireloop/internal/core"
	"github.com/hireloop/hireloop/internal/models"
)

// NotificationService composes templated outbound messages through the
// messaging gateway and records their delivery state. Failures are surfaced
// to the caller, never swallowed: whether a failed notification is fatal is
// the caller's decision.
type NotificationService struct {
	db      core.DbClient
	gateway core.MessageGateway
	tracker *ConversationService
	logger  *zap.Logger
}

func NewNotificationService(db core.DbClient, gateway core.MessageGateway, tracker *ConversationService, logger *zap.Logger) *NotificationService {
	return &NotificationService{db: db, gateway: gateway, tracker: tracker, logger: logger}
}

// SendTemplate sends one templated message. On gateway success the Message
// row carries the provider id and SENT status; on failure a FAILED row with
// the provider's error payload is persisted and the error returned.
func (s *NotificationService) SendTemplate(ctx context.Context, contact, template string, params []string) (*models.Message, error) {
	to, err := NormalizeContact(contact)
	if err != nil {
		return nil, err
	}
	if template == "" {
		return nil, fmt.Errorf("template id is required: %w", core.ErrValidation)
	}

	content := template
	if len(params) > 0 {
		content = template + ": " + strings.Join(params, ", ")
	}

	res, sendErr := s.gateway.SendTemplate(ctx, to, template, params)

	now := time.Now()
	msg := &models.Message{
		ID:          uuid.NewString(),
		Direction:   models.DirectionOutbound,
		Content:     content,
		MessageType: "template",
		StatusAt:    now,
		CreatedAt:   now,
	}

	if sendErr != nil {
		msg.ProviderMessageID = "failed-" + msg.ID
		msg.Status = models.MessageFailed
		msg.ProviderMetadata = fmt.Sprintf(`{"error":%q}`, sendErr.Error())
		if err := s.tracker.RecordOutbound(ctx, to, msg); err != nil {
			s.logger.Error("persist failed message", zap.Error(err))
		}
		return msg, fmt.Errorf("send template %q to %s: %w", template, to, sendErr)
	}

	msg.ProviderMessageID = res.MessageID
	msg.Status = models.MessageSent
	if err := s.tracker.RecordOutbound(ctx, to, msg); err != nil {
		// The provider accepted the message; a bookkeeping failure must not
		// look like a send failure to the caller.
		s.logger.Error("persist sent message", zap.String("provider_message_id", res.MessageID), zap.Error(err))
	}

	s.logger.Info("notification sent",
		zap.String("contact", to), zap.String("template", template),
		zap.String("provider_message_id", res.MessageID))
	return msg, nil
}
