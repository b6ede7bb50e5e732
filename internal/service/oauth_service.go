package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"learnhub-auth/internal/core/cache"
	"learnhub-auth/internal/domain"
	"learnhub-auth/internal/events"
	"learnhub-auth/internal/oauth"
	"learnhub-auth/pkg/utils"
)

const placeholderEmailDomain = "oauth.placeholder.local"

// OAuthService reconciles third-party identities with local users.
type OAuthService struct {
	d     Deps
	users *UserService
	auth  *AuthService
	log   *zap.Logger
}

// CallbackResult carries a session for sign-in flows and the connection for
// link flows.
type CallbackResult struct {
	Session    *Session
	Connection *domain.OAuthConnection
}

func (s *OAuthService) provider(name string) (domain.Provider, error) {
	p, err := domain.ParseProvider(name)
	if err != nil {
		return "", err
	}
	if !s.d.OAuth.IsProviderEnabled(p) {
		return "", domain.ErrProviderDisabled
	}
	return p, nil
}

// AuthorizationURL starts a redirect flow. linkUserID is empty for sign-in.
func (s *OAuthService) AuthorizationURL(ctx context.Context, providerName, linkUserID string) (string, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return "", err
	}
	state, err := utils.RandomToken(24)
	if err != nil {
		return "", domain.Internal(err)
	}
	verifier, err := utils.RandomToken(48)
	if err != nil {
		return "", domain.Internal(err)
	}
	err = s.d.States.Save(ctx, state, cache.OAuthState{
		Provider:     string(p),
		CodeVerifier: verifier,
		LinkUserID:   linkUserID,
		CreatedAt:    s.d.Now(),
	})
	if err != nil {
		return "", domain.Internal(err)
	}
	return s.d.OAuth.AuthorizationURL(p, state, verifier)
}

// Callback consumes state exactly once and finishes either flow.
func (s *OAuthService) Callback(ctx context.Context, providerName, state, code string, meta domain.ClientMeta) (*CallbackResult, error) {
	if state == "" {
		return nil, domain.ErrOAuthStateInvalid
	}
	st, err := s.d.States.Consume(ctx, state)
	if errors.Is(err, cache.ErrMiss) {
		return nil, domain.ErrOAuthStateInvalid
	}
	if err != nil {
		return nil, domain.Internal(err)
	}
	if !strings.EqualFold(st.Provider, providerName) {
		return nil, domain.ErrOAuthStateInvalid
	}
	if st.LinkUserID != "" {
		conn, err := s.Link(ctx, st.LinkUserID, st.Provider, code, st.CodeVerifier)
		if err != nil {
			return nil, err
		}
		return &CallbackResult{Connection: conn}, nil
	}
	sess, err := s.Login(ctx, st.Provider, code, st.CodeVerifier, meta)
	if err != nil {
		return nil, err
	}
	return &CallbackResult{Session: sess}, nil
}

// Login signs in with a provider code, linking or creating the local user.
func (s *OAuthService) Login(ctx context.Context, providerName, code, codeVerifier string, meta domain.ClientMeta) (*Session, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}
	res, err := s.d.OAuth.ExchangeCodeForTokens(ctx, p, code, codeVerifier)
	if err != nil {
		return nil, err
	}

	conn, err := s.d.Connections.FindByProviderUserID(ctx, p, res.Profile.ProviderUserID)
	if err != nil {
		return nil, domain.Internal(err)
	}

	var u *domain.User
	if conn != nil {
		if u, err = s.returning(ctx, conn, res); err != nil {
			return nil, err
		}
	} else if u, err = s.firstLogin(ctx, p, res); err != nil {
		return nil, err
	}

	if !u.Active {
		return nil, domain.ErrAccountDisabled
	}
	if err := s.users.loadRoles(ctx, u); err != nil {
		return nil, err
	}
	sess, err := s.auth.IssueSession(ctx, u, meta)
	if err != nil {
		return nil, err
	}
	s.d.publish(ctx, events.UserLoggedIn, u.ID, map[string]string{"provider": string(p), "ip": meta.IP})
	return sess, nil
}

// returning handles a known connection. A connection whose user is gone is
// deleted before USER_NOT_FOUND is reported.
func (s *OAuthService) returning(ctx context.Context, conn *domain.OAuthConnection, res *oauth.ExchangeResult) (*domain.User, error) {
	u, err := s.d.Users.FindByID(ctx, conn.UserID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	if u == nil {
		s.log.Warn("orphaned oauth connection removed",
			zap.String("connectionId", conn.ID),
			zap.String("provider", string(conn.Provider)),
			zap.String("userId", conn.UserID))
		if err := s.d.Connections.Delete(ctx, conn.ID); err != nil {
			return nil, domain.Internal(err)
		}
		return nil, domain.ErrUserNotFound
	}
	applyProfile(conn, res)
	conn.UpdatedAt = s.d.Now()
	if err := s.d.Connections.Update(ctx, conn); err != nil {
		return nil, domain.Internal(err)
	}
	return u, nil
}

// applyProfile copies the latest profile snapshot and upstream tokens.
func applyProfile(conn *domain.OAuthConnection, res *oauth.ExchangeResult) {
	if res.Profile.Email != "" {
		conn.Email = domain.NormalizeEmail(res.Profile.Email)
	}
	if res.Profile.Name != "" {
		conn.Name = res.Profile.Name
	}
	if res.Profile.AvatarURL != "" {
		conn.AvatarURL = res.Profile.AvatarURL
	}
	conn.AccessToken = res.Tokens.AccessToken
	if res.Tokens.RefreshToken != "" {
		conn.RefreshToken = res.Tokens.RefreshToken
	}
	conn.TokenExpiresAt = res.Tokens.ExpiresAt
}

// placeholderEmail is stable per identity. Provider ids are case-sensitive
// while emails are not, so the id is hashed rather than embedded.
func placeholderEmail(p domain.Provider, providerUserID string) string {
	return fmt.Sprintf("%s_%s@%s", p, utils.SHA256Hex(providerUserID)[:32], placeholderEmailDomain)
}

// firstLogin links the identity to the user with the same email, or creates
// a new user that has no usable password.
func (s *OAuthService) firstLogin(ctx context.Context, p domain.Provider, res *oauth.ExchangeResult) (*domain.User, error) {
	email := domain.NormalizeEmail(res.Profile.Email)
	if email == "" {
		email = placeholderEmail(p, res.Profile.ProviderUserID)
	} else if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}

	var u *domain.User
	created := false
	err := s.d.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.d.Users.FindByEmail(ctx, email)
		if err != nil {
			return domain.Internal(err)
		}
		if existing != nil {
			u = existing
			return s.attach(ctx, u.ID, p, res)
		}

		secret, err := utils.RandomPassword()
		if err != nil {
			return domain.Internal(err)
		}
		hash, err := s.d.Hasher.Hash(secret)
		if err != nil {
			return domain.Internal(err)
		}
		u = &domain.User{
			ID:           utils.NewID(),
			Email:        email,
			PasswordHash: hash,
			HasPassword:  false,
			FullName:     strings.TrimSpace(res.Profile.Name),
			Active:       true,
		}
		if err := s.users.create(ctx, u); err != nil {
			return err
		}
		created = true
		return s.attach(ctx, u.ID, p, res)
	})
	if err != nil {
		return nil, err
	}
	attrs := map[string]string{"provider": string(p)}
	if created {
		s.d.publish(ctx, events.UserRegistered, u.ID, attrs)
	}
	s.d.publish(ctx, events.OAuthLinked, u.ID, attrs)
	s.log.Info("oauth identity linked on sign-in",
		zap.String("userId", u.ID),
		zap.String("provider", string(p)),
		zap.Bool("newUser", created))
	return u, nil
}

// attach creates the connection and maps unique violations to the right
// conflict.
func (s *OAuthService) attach(ctx context.Context, userID string, p domain.Provider, res *oauth.ExchangeResult) error {
	now := s.d.Now()
	conn := &domain.OAuthConnection{
		ID:             utils.NewID(),
		UserID:         userID,
		Provider:       p,
		ProviderUserID: res.Profile.ProviderUserID,
		LinkedAt:       now,
		UpdatedAt:      now,
	}
	applyProfile(conn, res)
	if err := s.d.Connections.Create(ctx, conn); err != nil {
		if !errors.Is(err, domain.ErrDuplicate) {
			return domain.Internal(err)
		}
		other, ferr := s.d.Connections.FindByProviderUserID(ctx, p, res.Profile.ProviderUserID)
		if ferr == nil && other != nil && other.UserID != userID {
			return domain.ErrIdentityLinkedElsewhere
		}
		return domain.ErrProviderAlreadyLinked
	}
	return nil
}

// Link attaches a provider identity to an existing user. An identity that
// already belongs to someone else is refused.
func (s *OAuthService) Link(ctx context.Context, userID, providerName, code, codeVerifier string) (*domain.OAuthConnection, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}
	u, err := s.users.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	mine, err := s.d.Connections.FindByUserAndProvider(ctx, u.ID, p)
	if err != nil {
		return nil, domain.Internal(err)
	}
	if mine != nil {
		return nil, domain.ErrProviderAlreadyLinked
	}

	res, err := s.d.OAuth.ExchangeCodeForTokens(ctx, p, code, codeVerifier)
	if err != nil {
		return nil, err
	}
	other, err := s.d.Connections.FindByProviderUserID(ctx, p, res.Profile.ProviderUserID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	if other != nil {
		if other.UserID != u.ID {
			return nil, domain.ErrIdentityLinkedElsewhere
		}
		return nil, domain.ErrProviderAlreadyLinked
	}
	if err := s.attach(ctx, u.ID, p, res); err != nil {
		return nil, err
	}
	s.d.publish(ctx, events.OAuthLinked, u.ID, map[string]string{"provider": string(p)})
	conn, err := s.d.Connections.FindByUserAndProvider(ctx, u.ID, p)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return conn, nil
}

// Unlink removes a connection unless it is the user's only way to sign in.
// Revoking the upstream token is best effort.
func (s *OAuthService) Unlink(ctx context.Context, userID, providerName string) error {
	p, err := domain.ParseProvider(providerName)
	if err != nil {
		return err
	}
	var removed *domain.OAuthConnection
	err = s.d.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		u, err := s.d.Users.LockByID(ctx, userID)
		if err != nil {
			return domain.Internal(err)
		}
		if u == nil {
			return domain.ErrUserNotFound
		}
		conn, err := s.d.Connections.FindByUserAndProvider(ctx, u.ID, p)
		if err != nil {
			return domain.Internal(err)
		}
		if conn == nil {
			return domain.ErrConnectionNotFound
		}
		if !u.HasPassword {
			n, err := s.d.Connections.CountByUser(ctx, u.ID)
			if err != nil {
				return domain.Internal(err)
			}
			if n <= 1 {
				return domain.ErrOnlyAuthMethod
			}
		}
		if err := s.d.Connections.Delete(ctx, conn.ID); err != nil {
			return domain.Internal(err)
		}
		removed = conn
		return nil
	})
	if err != nil {
		return err
	}

	if removed.AccessToken != "" && s.d.OAuth.IsProviderEnabled(p) {
		if err := s.d.OAuth.RevokeToken(ctx, p, removed.AccessToken); err != nil {
			s.log.Warn("upstream token revoke failed",
				zap.String("userId", userID),
				zap.String("provider", string(p)),
				zap.Error(err))
		}
	}
	s.d.publish(ctx, events.OAuthUnlinked, userID, map[string]string{"provider": string(p)})
	return nil
}

// upstreamSkew renews upstream tokens slightly before they expire.
const upstreamSkew = 30 * time.Second

// UpstreamAccessToken returns a usable provider access token for the user's
// connection, renewing it with the cached upstream refresh token when it has
// expired.
func (s *OAuthService) UpstreamAccessToken(ctx context.Context, userID, providerName string) (string, error) {
	p, err := s.provider(providerName)
	if err != nil {
		return "", err
	}
	conn, err := s.d.Connections.FindByUserAndProvider(ctx, userID, p)
	if err != nil {
		return "", domain.Internal(err)
	}
	if conn == nil {
		return "", domain.ErrConnectionNotFound
	}
	now := s.d.Now()
	if conn.AccessToken != "" && (conn.TokenExpiresAt == nil || conn.TokenExpiresAt.After(now.Add(upstreamSkew))) {
		return conn.AccessToken, nil
	}
	if conn.RefreshToken == "" {
		return "", domain.Wrap(domain.ErrOAuthExchangeFailed, errors.New("upstream token expired and no refresh token is cached"))
	}
	t, err := s.d.OAuth.RefreshAccessToken(ctx, p, conn.RefreshToken)
	if err != nil {
		return "", err
	}
	conn.AccessToken = t.AccessToken
	if t.RefreshToken != "" {
		conn.RefreshToken = t.RefreshToken
	}
	conn.TokenExpiresAt = t.ExpiresAt
	conn.UpdatedAt = now
	if err := s.d.Connections.Update(ctx, conn); err != nil {
		return "", domain.Internal(err)
	}
	s.log.Debug("upstream token renewed", zap.String("userId", userID), zap.String("provider", string(p)))
	return conn.AccessToken, nil
}

func (s *OAuthService) Connections(ctx context.Context, userID string) ([]domain.OAuthConnection, error) {
	if _, err := s.users.find(ctx, userID); err != nil {
		return nil, err
	}
	conns, err := s.d.Connections.ListByUser(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return conns, nil
}
