// Package service holds the auth core: the credential store, the token
// lifecycle, the RBAC engine and the OAuth identity linker.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"learnhub-auth/internal/core/cache"
	"learnhub-auth/internal/domain"
	"learnhub-auth/internal/events"
	"learnhub-auth/internal/oauth"
)

// Hasher is the password-hashing capability.
type Hasher interface {
	Hash(plain string) (string, error)
	Compare(plain, hashed string) bool
}

// TokenIssuer signs access tokens and owns the expiry policy.
type TokenIssuer interface {
	IssueAccessToken(userID, email string, roles []string) (string, error)
	AccessTokenExpiry() time.Duration
	RefreshTokenExpiry() time.Duration
}

// StateStore keeps OAuth authorization state between redirect and callback.
type StateStore interface {
	Save(ctx context.Context, state string, v cache.OAuthState) error
	Consume(ctx context.Context, state string) (*cache.OAuthState, error)
}

// Deps is everything the services are built from.
type Deps struct {
	Users       domain.UserRepository
	Roles       domain.RoleRepository
	Permissions domain.PermissionRepository
	Connections domain.OAuthConnectionRepository
	Tokens      domain.RefreshTokenRepository
	Tx          domain.Transactor

	Hasher Hasher
	JWT    TokenIssuer
	OAuth  oauth.Client
	States StateStore
	Bus    *events.Bus
	Log    *zap.Logger
	Now    func() time.Time
}

func (d *Deps) defaults() {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Bus == nil {
		d.Bus = events.NewBus(d.Log)
	}
}

// Services bundles the four components; they call each other through it.
type Services struct {
	Users *UserService
	Auth  *AuthService
	RBAC  *RBACService
	OAuth *OAuthService
}

func New(d Deps) *Services {
	d.defaults()
	users := &UserService{d: d, log: d.Log.Named("users")}
	authSvc := &AuthService{d: d, users: users, log: d.Log.Named("auth")}
	rbac := &RBACService{d: d, log: d.Log.Named("rbac")}
	users.rbac = rbac
	return &Services{
		Users: users,
		Auth:  authSvc,
		RBAC:  rbac,
		OAuth: &OAuthService{d: d, users: users, auth: authSvc, log: d.Log.Named("oauth")},
	}
}

func (d *Deps) publish(ctx context.Context, name events.Name, userID string, attrs map[string]string) {
	d.Bus.Publish(ctx, events.Event{Name: name, UserID: userID, Attrs: attrs, OccurredAt: d.Now()})
}
