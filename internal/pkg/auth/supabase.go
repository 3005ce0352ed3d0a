package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ManuelReschke/NoteFox/internal/pkg/config"
)

// ErrInvalidToken means the identity provider rejected the bearer token.
var ErrInvalidToken = errors.New("invalid or expired token")

// Identity is the authenticated caller as reported by the identity provider.
type Identity struct {
	UserID string
	Email  string
}

// TokenVerifier resolves a bearer token to an identity.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

// SupabaseClient verifies access tokens against the Supabase auth API.
type SupabaseClient struct {
	BaseURL string
	APIKey  string

	HTTPClient *http.Client
}

func NewSupabaseClient(cfg config.Supabase) *SupabaseClient {
	return &SupabaseClient{
		BaseURL: strings.TrimRight(strings.TrimSpace(cfg.URL), "/"),
		APIKey:  strings.TrimSpace(cfg.Key),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *SupabaseClient) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("apikey", c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("supabase user request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidToken
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("supabase user request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode supabase user: %w", err)
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: out.ID, Email: out.Email}, nil
}

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
