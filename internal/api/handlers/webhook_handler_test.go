package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hireloop/hireloop/internal/core"
	"github.com/hireloop/hireloop/internal/models"
	"github.com/hireloop/hireloop/internal/security"
	"github.com/hireloop/hireloop/internal/services"
)

const webhookTestSecret = "webhook-test-secret"

// stubDB implements only the conversation methods the webhook path touches;
// anything else panics through the embedded nil interface.
type stubDB struct {
	core.DbClient

	mu       sync.Mutex
	inserted []*models.Message
	updated  []string
}

func (s *stubDB) UpsertConversation(_ context.Context, contact, displayName string, at time.Time) (*models.Conversation, error) {
	return &models.Conversation{ID: "conv-1", Contact: contact, DisplayName: displayName, LastMessageAt: at}, nil
}

func (s *stubDB) InsertMessage(_ context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.inserted = append(s.inserted, &cp)
	return nil
}

func (s *stubDB) GetMessageByProviderID(_ context.Context, providerMessageID string) (*models.Message, error) {
	return &models.Message{
		ProviderMessageID: providerMessageID,
		Status:            models.MessageSent,
		StatusAt:          time.Now().Add(-time.Minute),
	}, nil
}

func (s *stubDB) UpdateMessageStatus(_ context.Context, providerMessageID string, status models.MessageStatus, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updated = append(s.updated, providerMessageID+"|"+string(status))
	return nil
}

func (s *stubDB) insertedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserted)
}

func (s *stubDB) updatedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updated)
}

func newWebhookFixture() (*WebhookHandler, *stubDB) {
	db := &stubDB{}
	tracker := services.NewConversationService(db, zap.NewNop())
	return NewWebhookHandler(webhookTestSecret, tracker, zap.NewNop()), db
}

func post(h *WebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/messaging", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set("x-signature", signature)
	}
	rec := httptest.NewRecorder()
	h.Receive(rec, req)
	return rec
}

func TestWebhookValidMessageEvent(t *testing.T) {
	h, db := newWebhookFixture()

	body := []byte(`{"events":[{"type":"message","message_id":"wamid-1","from":"+15550102030","profile_name":"Jane","text":"hello","timestamp":1712345678}]}`)
	rec := post(h, body, security.Sign(body, []byte(webhookTestSecret)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	require.Eventually(t, func() bool { return db.insertedCount() == 1 }, time.Second, 10*time.Millisecond)

	db.mu.Lock()
	msg := db.inserted[0]
	db.mu.Unlock()
	assert.Equal(t, "wamid-1", msg.ProviderMessageID)
	assert.Equal(t, models.DirectionInbound, msg.Direction)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, time.Unix(1712345678, 0), msg.CreatedAt)
}

func TestWebhookReceiptEvent(t *testing.T) {
	h, db := newWebhookFixture()

	body := []byte(`{"events":[{"type":"receipt","message_id":"wamid-1","status":"delivered","timestamp":1712345680}]}`)
	rec := post(h, body, security.Sign(body, []byte(webhookTestSecret)))

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Eventually(t, func() bool { return db.updatedCount() == 1 }, time.Second, 10*time.Millisecond)

	db.mu.Lock()
	defer db.mu.Unlock()
	assert.Equal(t, "wamid-1|DELIVERED", db.updated[0])
}

func TestWebhookInvalidSignatureStillAcks(t *testing.T) {
	h, db := newWebhookFixture()

	body := []byte(`{"events":[{"type":"message","message_id":"wamid-1","from":"+15550102030"}]}`)
	rec := post(h, body, "sha256=deadbeef")

	assert.Equal(t, http.StatusOK, rec.Code, "forged payloads are acknowledged, never bounced")
	assert.Equal(t, "OK", rec.Body.String())

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, db.insertedCount(), "forged payload must not be processed")
}

func TestWebhookMissingSignatureStillAcks(t *testing.T) {
	h, db := newWebhookFixture()

	body := []byte(`{"events":[]}`)
	rec := post(h, body, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, db.insertedCount())
}

func TestWebhookMalformedBodyStillAcks(t *testing.T) {
	h, db := newWebhookFixture()

	body := []byte(`{not json`)
	rec := post(h, body, security.Sign(body, []byte(webhookTestSecret)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, db.insertedCount())
}

func TestWebhookUnknownEventTypeDropped(t *testing.T) {
	h, db := newWebhookFixture()

	body := []byte(`{"events":[{"type":"reaction","message_id":"wamid-9"}]}`)
	rec := post(h, body, security.Sign(body, []byte(webhookTestSecret)))

	assert.Equal(t, http.StatusOK, rec.Code)
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, db.insertedCount())
	assert.Zero(t, db.updatedCount())
}
