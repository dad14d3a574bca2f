package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"mindwell-backend/internal/config"
	"mindwell-backend/internal/utils"
)

// ErrUnauthenticated is returned when a bearer credential is missing,
// expired or rejected by the auth provider.
var ErrUnauthenticated = errors.New("unauthenticated")

// Verifier resolves a bearer credential to the user identity it belongs
// to. The chat core trusts the external auth provider for validation and
// only attaches the resolved identity to persistence and rate-limit calls.
type Verifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// RemoteVerifier validates tokens against the auth provider's userinfo
// endpoint.
type RemoteVerifier struct {
	url    string
	client *http.Client
}

func NewRemoteVerifier(cfg config.AuthConfig) *RemoteVerifier {
	return &RemoteVerifier{
		url:    cfg.UserinfoURL,
		client: utils.NewHTTPClient(cfg.Timeout),
	}
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := v.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", ErrUnauthenticated
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth provider returned status %d", resp.StatusCode)
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.ID == "" {
		return "", ErrUnauthenticated
	}
	return body.ID, nil
}

// StaticVerifier maps fixed tokens to user IDs. It backs tests and local
// development without an auth provider.
type StaticVerifier struct {
	Tokens map[string]string
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	userID, ok := v.Tokens[token]
	if !ok {
		return "", ErrUnauthenticated
	}
	return userID, nil
}
