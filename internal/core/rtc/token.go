package rtc

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Grants carried inside a room access credential.
type Grants struct {
	Room      string `json:"room"`
	Join      bool   `json:"join"`
	Publish   bool   `json:"publish"`
	Subscribe bool   `json:"subscribe"`
}

// Credential is a signed, time-boxed token scoped to one room and one
// participant identity.
type Credential struct {
	Token     string    `json:"token"`
	Room      string    `json:"room"`
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenIssuer signs room access credentials with the provider API secret.
// Expired credentials are rejected by the provider itself, so there is no
// revocation list here; only the expiry computation matters.
type TokenIssuer struct {
	apiKey    string
	apiSecret []byte
	ttl       time.Duration
}

func NewTokenIssuer(apiKey, apiSecret string, ttl time.Duration) (*TokenIssuer, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, fmt.Errorf("RTC api key/secret not set")
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &TokenIssuer{apiKey: apiKey, apiSecret: []byte(apiSecret), ttl: ttl}, nil
}

// Issue creates a credential for one room + participant pair with
// join/publish/subscribe grants.
func (t *TokenIssuer) Issue(room, identity string) (*Credential, error) {
	return t.IssueWithTTL(room, identity, t.ttl)
}

func (t *TokenIssuer) IssueWithTTL(room, identity string, ttl time.Duration) (*Credential, error) {
	if room == "" || identity == "" {
		return nil, fmt.Errorf("room and identity are required")
	}

	now := time.Now()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"iss": t.apiKey,
		"sub": identity,
		"nbf": now.Unix(),
		"exp": exp.Unix(),
		"video": map[string]any{
			"room":      room,
			"join":      true,
			"publish":   true,
			"subscribe": true,
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(t.apiSecret)
	if err != nil {
		return nil, fmt.Errorf("sign credential: %w", err)
	}

	return &Credential{Token: signed, Room: room, Identity: identity, ExpiresAt: exp}, nil
}

// Refresh issues a new credential for the same room/participant pair. Room
// identity and metadata are untouched; only the expiry moves forward.
func (t *TokenIssuer) Refresh(room, identity string) (*Credential, error) {
	return t.Issue(room, identity)
}

// Verify parses a credential and returns its grants. Used by the refresh
// path and by tests to prove room/identity continuity.
func (t *TokenIssuer) Verify(token string) (*Grants, string, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tk *jwt.Token) (interface{}, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tk.Header["alg"])
		}
		return t.apiSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, "", fmt.Errorf("invalid credential: %w", err)
	}

	identity, _ := claims["sub"].(string)
	video, _ := claims["video"].(map[string]any)
	g := &Grants{}
	if video != nil {
		g.Room, _ = video["room"].(string)
		g.Join, _ = video["join"].(bool)
		g.Publish, _ = video["publish"].(bool)
		g.Subscribe, _ = video["subscribe"].(bool)
	}
	return g, identity, nil
}

// NearExpiry reports whether the credential should be refreshed mid-session.
func (c *Credential) NearExpiry(window time.Duration) bool {
	return time.Until(c.ExpiresAt) <= window
}
