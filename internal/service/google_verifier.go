package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const googleUserInfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleUser is the subset of the Google profile the service cares about.
type GoogleUser struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// GoogleVerifier validates Google credentials presented at login.
type GoogleVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*GoogleUser, error)
	FetchUserInfo(ctx context.Context, accessToken string) (*GoogleUser, error)
}

type googleVerifier struct {
	clientID        string
	client          *http.Client
	userInfoBaseURL string
}

func NewGoogleVerifier(clientID string) GoogleVerifier {
	return &googleVerifier{
		clientID:        clientID,
		client:          &http.Client{Timeout: 5 * time.Second},
		userInfoBaseURL: googleUserInfoEndpoint,
	}
}

// VerifyIDToken checks the ID token against Google's tokeninfo API and that it
// was issued for this application.
func (v *googleVerifier) VerifyIDToken(ctx context.Context, idToken string) (*GoogleUser, error) {
	svc, err := oauth2api.NewService(ctx, option.WithoutAuthentication())
	if err != nil {
		return nil, fmt.Errorf("create oauth2 service: %w", err)
	}
	info, err := svc.Tokeninfo().IdToken(idToken).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	if v.clientID != "" && info.Audience != v.clientID {
		return nil, fmt.Errorf("id token issued for unknown audience")
	}
	if info.UserId == "" {
		return nil, fmt.Errorf("id token missing user id")
	}
	return &GoogleUser{ID: info.UserId, Email: info.Email}, nil
}

// FetchUserInfo resolves a Google access token to the user's profile. Used as
// a fallback when no ID token is available, and to fill name and picture.
func (v *googleVerifier) FetchUserInfo(ctx context.Context, accessToken string) (*GoogleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.userInfoBaseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read userinfo response: %w", err)
	}

	var info struct {
		ID      string `json:"id"`
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode userinfo response: %w", err)
	}
	id := info.ID
	if id == "" {
		id = info.Sub
	}
	if id == "" {
		return nil, fmt.Errorf("userinfo response missing user id")
	}
	return &GoogleUser{ID: id, Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}
