package backend

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fixline-ai/fixline/internal/state"
)

// refreshLeeway is how close to expiry an access token is refreshed before use.
const refreshLeeway = 30 * time.Second

// TokenSource supplies and stores the credentials of one browser session.
// *state.Provider satisfies it.
type TokenSource interface {
	Tokens() state.Tokens
	UpdateTokens(ctx context.Context, tokens state.Tokens) error
}

// Conn issues authenticated calls on behalf of one browser session.
type Conn struct {
	client *Client
	source TokenSource
}

// As binds the client to the credentials of source.
func (c *Client) As(source TokenSource) *Conn {
	return &Conn{client: c, source: source}
}

func (c *Conn) do(ctx context.Context, req request, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	req.token = token
	return c.client.do(ctx, req, out)
}

// accessToken returns a usable access token, refreshing it when it is about
// to expire. A failed refresh falls back to the current token unless the
// backend rejected the refresh token itself.
func (c *Conn) accessToken(ctx context.Context) (string, error) {
	tokens := c.source.Tokens()
	if tokens.Access == "" {
		return "", ErrAuthExpired
	}
	exp, ok := tokenExpiry(tokens.Access)
	if !ok || tokens.Refresh == "" || c.client.now().Add(refreshLeeway).Before(exp) {
		return tokens.Access, nil
	}

	fresh, err := c.client.RefreshTokens(ctx, tokens.Refresh)
	if err != nil {
		if errors.Is(err, ErrAuthExpired) {
			return "", ErrAuthExpired
		}
		c.client.logger.Warn("refresh access token", slog.Any("error", err))
		return tokens.Access, nil
	}
	if err := c.source.UpdateTokens(ctx, fresh); err != nil {
		c.client.logger.Warn("store refreshed tokens", slog.Any("error", err))
	}
	return fresh.Access, nil
}

// tokenExpiry reads the exp claim without verifying the signature; the
// backend remains the authority on validity.
func tokenExpiry(raw string) (time.Time, bool) {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
