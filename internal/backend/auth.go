package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fixline-ai/fixline/internal/state"
)

// ErrInvalidCredentials is returned when the backend rejects a login.
var ErrInvalidCredentials = errors.New("backend: invalid credentials")

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// loginResponse accepts both a nested user object and user fields at the top
// level of the payload.
type loginResponse struct {
	tokenPair
	Tokens *tokenPair      `json:"tokens"`
	User   json.RawMessage `json:"user"`
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, email, password string) (state.Session, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{
		name:   "auth.login",
		method: http.MethodPost,
		path:   "/auth/login/",
		body:   loginRequest{Email: email, Password: password},
	}, &raw)
	if err != nil {
		var apiErr *APIError
		if errors.Is(err, ErrAuthExpired) || (errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest) {
			return state.Session{}, ErrInvalidCredentials
		}
		return state.Session{}, err
	}
	return decodeLogin(raw)
}

func decodeLogin(raw json.RawMessage) (state.Session, error) {
	var resp loginResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return state.Session{}, err
	}
	tokens := resp.tokenPair
	if resp.Tokens != nil && tokens.Access == "" {
		tokens = *resp.Tokens
	}
	if tokens.Access == "" {
		return state.Session{}, errors.New("backend: login response carries no access token")
	}

	userPayload := []byte(resp.User)
	if len(userPayload) == 0 || string(userPayload) == "null" {
		userPayload = raw
	}
	var user wireUser
	if err := json.Unmarshal(userPayload, &user); err != nil {
		return state.Session{}, err
	}
	return state.Session{
		User:   user.toState(),
		Tokens: state.Tokens{Access: tokens.Access, Refresh: tokens.Refresh},
	}, nil
}

// RefreshTokens trades a refresh token for a new access token. The refresh
// token is empty in the result unless the backend rotated it.
func (c *Client) RefreshTokens(ctx context.Context, refresh string) (state.Tokens, error) {
	var resp tokenPair
	err := c.do(ctx, request{
		name:   "auth.refresh",
		method: http.MethodPost,
		path:   "/auth/token/refresh/",
		body:   map[string]string{"refresh": refresh},
	}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
			return state.Tokens{}, ErrAuthExpired
		}
		return state.Tokens{}, err
	}
	if resp.Access == "" {
		return state.Tokens{}, ErrAuthExpired
	}
	return state.Tokens{Access: resp.Access, Refresh: resp.Refresh}, nil
}

// RevokeTokens blacklists the refresh token.
func (c *Client) RevokeTokens(ctx context.Context, tokens state.Tokens) error {
	if tokens.Refresh == "" {
		return nil
	}
	err := c.do(ctx, request{
		name:   "auth.logout",
		method: http.MethodPost,
		path:   "/auth/logout/",
		body:   map[string]string{"refresh": tokens.Refresh},
		token:  tokens.Access,
	}, nil)
	// an expired or already blacklisted token is revoked for our purposes
	if errors.Is(err, ErrAuthExpired) {
		return nil
	}
	return err
}

// FetchProfile loads the signed in user's profile.
func (c *Client) FetchProfile(ctx context.Context, tokens state.Tokens) (state.ProfilePatch, error) {
	var raw map[string]json.RawMessage
	err := c.do(ctx, request{
		name:   "auth.profile",
		method: http.MethodGet,
		path:   "/auth/profile/",
		token:  tokens.Access,
	}, &raw)
	if err != nil {
		return state.ProfilePatch{}, err
	}
	return profilePatch(raw)
}

// profilePatch keeps only the keys present in the response so the merge
// leaves absent fields untouched.
func profilePatch(raw map[string]json.RawMessage) (state.ProfilePatch, error) {
	if nested, ok := raw["user"]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(nested, &inner); err == nil && inner != nil {
			raw = inner
		}
	}
	var patch state.ProfilePatch
	strField := func(key string, dst **string) error {
		value, ok := raw[key]
		if !ok || string(value) == "null" {
			return nil
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return err
		}
		*dst = &s
		return nil
	}
	for key, dst := range map[string]**string{
		"first_name":     &patch.FirstName,
		"last_name":      &patch.LastName,
		"email":          &patch.Email,
		"role":           &patch.Role,
		"profile_image":  &patch.ProfileImage,
		"state_location": &patch.StateLocation,
	} {
		if err := strField(key, dst); err != nil {
			return state.ProfilePatch{}, err
		}
	}
	if value, ok := raw["store"]; ok {
		var ref RefID
		if err := json.Unmarshal(value, &ref); err != nil {
			return state.ProfilePatch{}, err
		}
		if ref != 0 {
			id := ref.Int64()
			patch.StoreID = &id
		}
	}
	return patch, nil
}
