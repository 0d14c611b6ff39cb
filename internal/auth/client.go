// Package auth talks to the external token endpoint.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pscheid92/thereiwas/internal/domain"
	"github.com/pscheid92/thereiwas/internal/platform/correlation"
	"github.com/pscheid92/thereiwas/internal/platform/version"
)

const unknownUsername = "unknown"

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenClient requests access tokens from {baseURL}/auth/token.
type TokenClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTokenClient(baseURL string, timeout time.Duration) *TokenClient {
	return &TokenClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// RequestToken posts the credentials. Only HTTP 200 with a non-empty accessToken succeeds.
func (c *TokenClient) RequestToken(ctx context.Context, username, password string) (domain.Session, error) {
	body, err := json.Marshal(tokenRequest{Username: username, Password: password})
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to encode token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/token", bytes.NewReader(body))
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("User-Agent", version.UserAgent())
	correlation.Propagate(ctx, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Session{}, fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Session{}, fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var session domain.Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return domain.Session{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if session.AccessToken == "" {
		return domain.Session{}, errors.New("token response carried no access token")
	}

	return session, nil
}

// UsernameFromToken returns the subject claim of a JWT without verifying it.
// The signature is the backend's concern; the value is only used for display.
func UsernameFromToken(token string) string {
	if token == "" {
		return unknownUsername
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return unknownUsername
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return unknownUsername
	}
	return sub
}
