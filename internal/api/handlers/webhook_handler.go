package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/security"
	"github.com/hireloop/hireloop/internal/services"
)

const signatureHeader = "x-signature"

// WebhookHandler is the inbound boundary for the messaging gateway. It always
// acknowledges at the transport level: a forged or malformed payload is
// logged and dropped, never answered with an error that would make the
// provider retry.
type WebhookHandler struct {
	secret  []byte
	tracker *services.ConversationService
	logger  *zap.Logger
}

func NewWebhookHandler(secret string, tracker *services.ConversationService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{secret: []byte(secret), tracker: tracker, logger: logger}
}

// gatewayEvent is one message or delivery-receipt event from the provider.
type gatewayEvent struct {
	Type        string `json:"type"` // "message" | "receipt"
	MessageID   string `json:"message_id"`
	From        string `json:"from"`
	ProfileName string `json:"profile_name"`
	Text        string `json:"text"`
	MessageType string `json:"message_type"`
	Status      string `json:"status"`
	Timestamp   int64  `json:"timestamp"`
}

type gatewayPayload struct {
	Events []gatewayEvent `json:"events"`
}

// Receive verifies the signature over the exact raw bytes before any JSON
// parsing touches them, acknowledges immediately, and applies the events in
// the background.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, 5<<20))
	if err != nil {
		h.logger.Error("webhook body unreadable", zap.Error(err))
		ack(w)
		return
	}

	if err := security.VerifySignature(raw, r.Header.Get(signatureHeader), h.secret); err != nil {
		// Do not signal "retry me" for a forged payload.
		h.logger.Warn("webhook signature rejected, dropping payload",
			zap.Error(err), zap.Int("body_bytes", len(raw)), zap.String("remote", r.RemoteAddr))
		ack(w)
		return
	}

	var payload gatewayPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Warn("webhook payload unparsable, dropping", zap.Error(err))
		ack(w)
		return
	}

	// Ack fast; processing outcome never reaches the provider.
	ack(w)

	go h.apply(payload.Events)
}

func ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *WebhookHandler) apply(events []gatewayEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, ev := range events {
		switch strings.ToLower(ev.Type) {
		case "message":
			h.applyMessage(ctx, ev)
		case "receipt", "status":
			h.applyReceipt(ctx, ev)
		default:
			h.logger.Warn("unknown webhook event type, dropping", zap.String("type", ev.Type))
		}
	}
}

func (h *WebhookHandler) applyMessage(ctx context.Context, ev gatewayEvent) {
	if ev.MessageID == "" || ev.From == "" {
		h.logger.Warn("inbound message event missing id or sender, dropping")
		return
	}

	meta, _ := json.Marshal(ev)
	msgType := ev.MessageType
	if msgType == "" {
		msgType = "text"
	}

	msg := &models.Message{
		ProviderMessageID: ev.MessageID,
		Direction:         models.DirectionInbound,
		Content:           ev.Text,
		MessageType:       msgType,
		Status:            models.MessageDelivered,
		CreatedAt:         eventTime(ev),
		StatusAt:          eventTime(ev),
		ProviderMetadata:  string(meta),
	}
	if err := h.tracker.RecordInbound(ctx, ev.From, ev.ProfileName, msg); err != nil {
		h.logger.Error("record inbound message failed",
			zap.String("provider_message_id", ev.MessageID), zap.Error(err))
	}
}

func (h *WebhookHandler) applyReceipt(ctx context.Context, ev gatewayEvent) {
	status := models.MessageStatus(strings.ToUpper(ev.Status))
	if err := h.tracker.ApplyReceipt(ctx, ev.MessageID, status, eventTime(ev)); err != nil {
		h.logger.Error("apply receipt failed",
			zap.String("provider_message_id", ev.MessageID), zap.Error(err))
	}
}

func eventTime(ev gatewayEvent) time.Time {
	if ev.Timestamp > 0 {
		return time.Unix(ev.Timestamp, 0)
	}
	return time.Now()
}
