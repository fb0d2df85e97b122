package rtc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hireloop/hireloop/internal/core"
)

var _ core.RoomProvider = (*RoomClient)(nil)

// MaxMetadataBytes is the provider's room metadata limit. The session
// orchestrator trims its bundle to fit before calling CreateRoom.
const MaxMetadataBytes = 8 * 1024

// RoomClient provisions rooms on the conferencing provider. Access
// credentials are signed locally by TokenIssuer; only room creation is a
// network call.
type RoomClient struct {
	serverURL string
	issuer    *TokenIssuer
	http      *http.Client
}

func NewRoomClient(serverURL string, issuer *TokenIssuer) (*RoomClient, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("RTC_SERVER_URL not set")
	}
	return &RoomClient{
		serverURL: strings.TrimRight(serverURL, "/"),
		issuer:    issuer,
		http:      &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (c *RoomClient) ServerURL() string {
	return c.serverURL
}

type createRoomRequest struct {
	Name         string `json:"name"`
	Metadata     string `json:"metadata,omitempty"`
	EmptyTimeout int64  `json:"empty_timeout_seconds"`
}

// CreateRoom creates the room with its metadata bundle and a bounded
// empty-room timeout. The provider tears the room down on its own once it
// sits empty past the timeout.
func (c *RoomClient) CreateRoom(ctx context.Context, spec core.RoomSpec) error {
	if spec.Name == "" {
		return fmt.Errorf("room name is required")
	}
	if len(spec.Metadata) > MaxMetadataBytes {
		return fmt.Errorf("room metadata exceeds %d bytes", MaxMetadataBytes)
	}

	// Admin calls authenticate with a short-lived credential for the control
	// plane rather than a long-lived shared key.
	adminCred, err := c.issuer.IssueWithTTL(spec.Name, "hireloop-control", time.Minute)
	if err != nil {
		return err
	}

	body, err := json.Marshal(createRoomRequest{
		Name:         spec.Name,
		Metadata:     spec.Metadata,
		EmptyTimeout: int64(spec.EmptyTimeout.Seconds()),
	})
	if err != nil {
		return fmt.Errorf("marshal room request: %w", err)
	}

	httpURL := strings.Replace(c.serverURL, "wss://", "https://", 1)
	httpURL = strings.Replace(httpURL, "ws://", "http://", 1)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, httpURL+"/v1/rooms", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build room request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminCred.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("create room: %w", core.ErrExternalUnavailable)
	}
	defer resp.Body.Close()

	// Re-creating an existing room is fine; the provider keeps its state.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		return fmt.Errorf("create room: status %d: %w", resp.StatusCode, core.ErrExternalUnavailable)
	}
	return nil
}
