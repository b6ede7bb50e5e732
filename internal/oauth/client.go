// Package oauth talks to third-party identity providers. The auth core only
// sees the Client interface.
package oauth

import (
	"context"
	"time"

	"learnhub-auth/internal/domain"
)

// Profile is the provider-side identity returned after a code exchange.
type Profile struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	AvatarURL      string
}

// Tokens are the upstream credentials cached on the connection.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

type ExchangeResult struct {
	Profile Profile
	Tokens  Tokens
}

type Client interface {
	IsProviderEnabled(p domain.Provider) bool
	AuthorizationURL(p domain.Provider, state, codeVerifier string) (string, error)
	// ExchangeCodeForTokens fails with domain.ErrOAuthExchangeFailed when the
	// provider rejects the code or returns an unusable profile.
	ExchangeCodeForTokens(ctx context.Context, p domain.Provider, code, codeVerifier string) (*ExchangeResult, error)
	RefreshAccessToken(ctx context.Context, p domain.Provider, refreshToken string) (*Tokens, error)
	RevokeToken(ctx context.Context, p domain.Provider, token string) error
}
