package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

const authService = "auth"

// AuthClient handles Supabase Auth operations.
type AuthClient struct {
	client *Client
}

// SignUp creates a new user. Projects with email confirmation enabled answer
// with the bare user and no tokens; both shapes are returned as a Session.
func (a *AuthClient) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, statusCode, err := a.client.request(ctx, authService, http.MethodPost, a.client.authURL+"/signup", body, nil, "")
	if err != nil {
		return nil, err
	}

	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}

	var session Session
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if session.User == nil {
		var user User
		if err := json.Unmarshal(respBody, &user); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		if user.ID != "" {
			session.User = &user
		}
	}

	return &session, nil
}

// SignInWithPassword authenticates a user with email/password.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	req := map[string]string{
		"email":    email,
		"password": password,
	}

	return a.token(ctx, "password", req)
}

// RefreshToken exchanges a refresh token for a new session.
func (a *AuthClient) RefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	req := map[string]string{
		"refresh_token": refreshToken,
	}

	return a.token(ctx, "refresh_token", req)
}

func (a *AuthClient) token(ctx context.Context, grantType string, req map[string]string) (*Session, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, statusCode, err := a.client.request(ctx, authService, http.MethodPost, a.client.authURL+"/token?grant_type="+grantType, body, nil, "")
	if err != nil {
		return nil, err
	}

	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}

	var session Session
	if err := json.Unmarshal(respBody, &session); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &session, nil
}

// GetUser retrieves the current user using an access token.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	respBody, statusCode, err := a.client.request(ctx, authService, http.MethodGet, a.client.authURL+"/user", nil, nil, accessToken)
	if err != nil {
		return nil, err
	}

	if statusCode >= 400 {
		return nil, parseError(respBody, statusCode)
	}

	var user User
	if err := json.Unmarshal(respBody, &user); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	return &user, nil
}

// SignOut revokes the session behind accessToken.
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	respBody, statusCode, err := a.client.request(ctx, authService, http.MethodPost, a.client.authURL+"/logout", nil, nil, accessToken)
	if err != nil {
		return err
	}

	if statusCode >= 400 {
		return parseError(respBody, statusCode)
	}

	return nil
}
