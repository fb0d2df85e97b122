package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hireloop/hireloop/internal/core"
)

var _ core.MessageGateway = (*GatewayClient)(nil)

// GatewayClient talks to the messaging provider's REST API for template
// sends. Inbound traffic (messages, delivery receipts) arrives on the
// webhook boundary, not here.
type GatewayClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewGatewayClient(baseURL, token string) (*GatewayClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("GATEWAY_BASE_URL not set")
	}
	if token == "" {
		return nil, fmt.Errorf("GATEWAY_TOKEN not set")
	}
	return &GatewayClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}, nil
}

type sendTemplateRequest struct {
	To       string   `json:"to"`
	Template string   `json:"template"`
	Params   []string `json:"params"`
}

type sendTemplateResponse struct {
	MessageID string `json:"message_id"`
	Error     string `json:"error,omitempty"`
}

// SendTemplate posts a templated message. The provider's error payload is
// wrapped into the returned error so callers can persist it.
func (c *GatewayClient) SendTemplate(ctx context.Context, to, template string, params []string) (*core.SendResult, error) {
	body, err := json.Marshal(sendTemplateRequest{To: to, Template: template, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway send: %w", core.ErrExternalUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read gateway response: %w", err)
	}

	var out sendTemplateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse gateway response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("gateway rejected send (status %d): %s: %w", resp.StatusCode, out.Error, core.ErrExternalUnavailable)
	}
	if out.MessageID == "" {
		return nil, fmt.Errorf("gateway returned no message id")
	}
	return &core.SendResult{MessageID: out.MessageID}, nil
}
