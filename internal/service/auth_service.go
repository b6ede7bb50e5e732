package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"learnhub-auth/internal/domain"
	"learnhub-auth/internal/events"
	"learnhub-auth/pkg/utils"
)

// refreshTokenBytes gives 256 bits of entropy per refresh token.
const refreshTokenBytes = 32

// AuthService owns the access/refresh token lifecycle.
type AuthService struct {
	d     Deps
	users *UserService
	log   *zap.Logger
}

// Session is what a successful login or refresh hands back. RefreshToken is
// the opaque value; only its hash is stored.
type Session struct {
	AccessToken      string            `json:"accessToken"`
	TokenType        string            `json:"tokenType"`
	ExpiresIn        int64             `json:"expiresIn"`
	RefreshToken     string            `json:"-"`
	RefreshExpiresAt time.Time         `json:"-"`
	User             domain.PublicUser `json:"user"`
}

func (s *AuthService) Login(ctx context.Context, email, password string, meta domain.ClientMeta) (*Session, error) {
	u, err := s.users.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	sess, err := s.IssueSession(ctx, u, meta)
	if err != nil {
		return nil, err
	}
	s.d.publish(ctx, events.UserLoggedIn, u.ID, map[string]string{"provider": string(domain.ProviderLocal), "ip": meta.IP})
	return sess, nil
}

// IssueSession mints an access token and a fresh refresh token for u.
// u.Roles must already be loaded.
func (s *AuthService) IssueSession(ctx context.Context, u *domain.User, meta domain.ClientMeta) (*Session, error) {
	raw, rt, err := s.newRefreshToken(u.ID, meta)
	if err != nil {
		return nil, err
	}
	if err := s.d.Tokens.Create(ctx, rt); err != nil {
		return nil, domain.Internal(err)
	}
	return s.session(u, raw, rt)
}

func (s *AuthService) newRefreshToken(userID string, meta domain.ClientMeta) (string, *domain.RefreshToken, error) {
	raw, err := utils.RandomToken(refreshTokenBytes)
	if err != nil {
		return "", nil, domain.Internal(err)
	}
	now := s.d.Now()
	return raw, &domain.RefreshToken{
		ID:        utils.NewID(),
		TokenHash: utils.SHA256Hex(raw),
		UserID:    userID,
		ExpiresAt: now.Add(s.d.JWT.RefreshTokenExpiry()),
		UserAgent: truncate(meta.UserAgent, 255),
		IP:        truncate(meta.IP, 64),
		CreatedAt: now,
	}, nil
}

func (s *AuthService) session(u *domain.User, raw string, rt *domain.RefreshToken) (*Session, error) {
	access, err := s.d.JWT.IssueAccessToken(u.ID, u.Email, u.Roles)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return &Session{
		AccessToken:      access,
		TokenType:        "Bearer",
		ExpiresIn:        int64(s.d.JWT.AccessTokenExpiry() / time.Second),
		RefreshToken:     raw,
		RefreshExpiresAt: rt.ExpiresAt,
		User:             u.Public(),
	}, nil
}

// Refresh rotates the presented refresh token. The old token is revoked by a
// conditional update in the same transaction that stores its successor, so
// two concurrent calls with the same token cannot both succeed. Presenting a
// token that was already rotated revokes every token of its owner.
func (s *AuthService) Refresh(ctx context.Context, raw string, meta domain.ClientMeta) (*Session, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, domain.ErrRefreshTokenInvalid
	}
	old, err := s.d.Tokens.FindByHash(ctx, utils.SHA256Hex(raw))
	if err != nil {
		return nil, domain.Internal(err)
	}
	if old == nil {
		return nil, domain.ErrRefreshTokenInvalid
	}
	now := s.d.Now()
	switch {
	case old.Rotated():
		s.replayDetected(ctx, old, meta)
		return nil, domain.ErrRefreshTokenRevoked
	case old.Revoked:
		return nil, domain.ErrRefreshTokenRevoked
	case old.Expired(now):
		return nil, domain.ErrRefreshTokenExpired
	}

	u, err := s.d.Users.FindByID(ctx, old.UserID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	if u == nil || !u.Active {
		if _, err := s.d.Tokens.Revoke(ctx, old.TokenHash, now); err != nil {
			s.log.Warn("revoke token of unusable account", zap.String("userId", old.UserID), zap.Error(err))
		}
		if u == nil {
			return nil, domain.ErrRefreshTokenInvalid
		}
		return nil, domain.ErrAccountDisabled
	}
	if err := s.users.loadRoles(ctx, u); err != nil {
		return nil, err
	}

	nextRaw, next, err := s.newRefreshToken(u.ID, meta)
	if err != nil {
		return nil, err
	}
	if err := s.d.Tokens.Rotate(ctx, old.ID, now, next); err != nil {
		if errors.Is(err, domain.ErrRefreshTokenRevoked) {
			return nil, domain.ErrRefreshTokenRevoked
		}
		return nil, domain.Internal(err)
	}
	return s.session(u, nextRaw, next)
}

func (s *AuthService) replayDetected(ctx context.Context, old *domain.RefreshToken, meta domain.ClientMeta) {
	n, err := s.d.Tokens.RevokeAllForUser(ctx, old.UserID, s.d.Now())
	if err != nil {
		s.log.Error("revoke token family after replay", zap.String("userId", old.UserID), zap.Error(err))
	}
	s.log.Warn("refresh token replay",
		zap.String("userId", old.UserID),
		zap.String("tokenId", old.ID),
		zap.String("ip", meta.IP),
		zap.Int64("revoked", n))
	s.d.publish(ctx, events.TokenReplayDetected, old.UserID, map[string]string{"tokenId": old.ID, "ip": meta.IP})
}

// Logout revokes one refresh token. Unknown or already revoked tokens are fine.
func (s *AuthService) Logout(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if _, err := s.d.Tokens.Revoke(ctx, utils.SHA256Hex(raw), s.d.Now()); err != nil {
		return domain.Internal(err)
	}
	return nil
}

// LogoutAll revokes every active refresh token of userID.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	n, err := s.d.Tokens.RevokeAllForUser(ctx, userID, s.d.Now())
	if err != nil {
		return 0, domain.Internal(err)
	}
	return n, nil
}

// PurgeExpired deletes refresh tokens past expiry. Storage hygiene only.
func (s *AuthService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.d.Tokens.DeleteExpired(ctx, s.d.Now())
	if err != nil {
		return 0, domain.Internal(err)
	}
	if n > 0 {
		s.log.Info("expired refresh tokens purged", zap.Int64("count", n))
	}
	return n, nil
}

func (s *AuthService) AccessTokenExpiry() time.Duration { return s.d.JWT.AccessTokenExpiry() }

func (s *AuthService) RefreshTokenExpiry() time.Duration { return s.d.JWT.RefreshTokenExpiry() }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
