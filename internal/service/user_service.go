package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"learnhub-auth/internal/domain"
	"learnhub-auth/internal/events"
	"learnhub-auth/pkg/utils"
)

// UserService is the credential store.
type UserService struct {
	d    Deps
	rbac *RBACService
	log  *zap.Logger

	dummyOnce sync.Once
	dummy     string
}

type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// ProfileUpdate leaves nil fields untouched.
type ProfileUpdate struct {
	FullName *string
	Phone    *string
}

// dummyHash keeps Authenticate's timing the same for unknown emails.
func (s *UserService) dummyHash() string {
	s.dummyOnce.Do(func() { s.dummy, _ = s.d.Hasher.Hash("unknown-account-placeholder") })
	return s.dummy
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := domain.NormalizeEmail(in.Email)
	if err := domain.ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := domain.ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	hash, err := s.d.Hasher.Hash(in.Password)
	if err != nil {
		return nil, domain.Internal(err)
	}
	u := &domain.User{
		ID:           utils.NewID(),
		Email:        email,
		PasswordHash: hash,
		HasPassword:  true,
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        strings.TrimSpace(in.Phone),
		Active:       true,
	}
	err = s.d.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.create(ctx, u)
	})
	if err != nil {
		return nil, err
	}
	s.d.publish(ctx, events.UserRegistered, u.ID, map[string]string{"provider": string(domain.ProviderLocal)})
	return u, nil
}

// create persists u with the default role. Callers run it in a transaction.
func (s *UserService) create(ctx context.Context, u *domain.User) error {
	existing, err := s.d.Users.FindByEmail(ctx, u.Email)
	if err != nil {
		return domain.Internal(err)
	}
	if existing != nil {
		return domain.ErrEmailTaken
	}
	role, err := s.d.Roles.FindByName(ctx, domain.RoleUser)
	if err != nil {
		return domain.Internal(err)
	}
	if role == nil {
		return domain.Internal(errors.New("default role is not seeded"))
	}
	if err := s.d.Users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return domain.ErrEmailTaken
		}
		return domain.Internal(err)
	}
	now := s.d.Now()
	if err := s.d.Users.AddRole(ctx, &domain.UserRole{UserID: u.ID, RoleID: role.ID, AssignedAt: now}); err != nil {
		return domain.Internal(err)
	}
	u.Roles = []string{role.Name}
	return nil
}

// Authenticate returns ErrInvalidCredentials for both unknown emails and
// wrong passwords.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.d.Users.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, domain.Internal(err)
	}
	if u == nil {
		s.d.Hasher.Compare(password, s.dummyHash())
		return nil, domain.ErrInvalidCredentials
	}
	if !u.HasPassword || !s.d.Hasher.Compare(password, u.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	if !u.Active {
		return nil, domain.ErrAccountDisabled
	}
	if err := s.loadRoles(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) loadRoles(ctx context.Context, u *domain.User) error {
	names, err := s.d.Users.RoleNames(ctx, u.ID)
	if err != nil {
		return domain.Internal(err)
	}
	u.Roles = names
	return nil
}

func (s *UserService) find(ctx context.Context, userID string) (*domain.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.ErrInvalidID
	}
	u, err := s.d.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.loadRoles(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, in ProfileUpdate) (*domain.User, error) {
	u, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.FullName != nil {
		u.FullName = strings.TrimSpace(*in.FullName)
	}
	if in.Phone != nil {
		u.Phone = strings.TrimSpace(*in.Phone)
	}
	if err := s.d.Users.Update(ctx, u); err != nil {
		return nil, domain.Internal(err)
	}
	if err := s.loadRoles(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// ChangePassword verifies the current password and signs out every session.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	u, err := s.find(ctx, userID)
	if err != nil {
		return err
	}
	if !u.HasPassword || !s.d.Hasher.Compare(current, u.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	if err := s.setPassword(ctx, u, next); err != nil {
		return err
	}
	s.d.publish(ctx, events.UserPasswordChanged, u.ID, nil)
	return nil
}

// SetPassword gives an OAuth-only account a password it can log in with.
func (s *UserService) SetPassword(ctx context.Context, userID, password string) error {
	u, err := s.find(ctx, userID)
	if err != nil {
		return err
	}
	if u.HasPassword {
		return domain.ErrPasswordAlreadySet
	}
	if err := s.setPassword(ctx, u, password); err != nil {
		return err
	}
	s.d.publish(ctx, events.UserPasswordChanged, u.ID, map[string]string{"first": "true"})
	return nil
}

func (s *UserService) setPassword(ctx context.Context, u *domain.User, password string) error {
	if err := domain.ValidatePassword(password); err != nil {
		return err
	}
	hash, err := s.d.Hasher.Hash(password)
	if err != nil {
		return domain.Internal(err)
	}
	u.PasswordHash = hash
	u.HasPassword = true
	return s.d.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.d.Users.Update(ctx, u); err != nil {
			return domain.Internal(err)
		}
		if _, err := s.d.Tokens.RevokeAllForUser(ctx, u.ID, s.d.Now()); err != nil {
			return domain.Internal(err)
		}
		return nil
	})
}

// Deactivate is admin-only. The account keeps its data but cannot sign in
// and loses every refresh token.
func (s *UserService) Deactivate(ctx context.Context, actorID, userID string) error {
	if err := s.rbac.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	u, err := s.find(ctx, userID)
	if err != nil {
		return err
	}
	if !u.Active {
		return nil
	}
	u.Active = false
	err = s.d.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.d.Users.Update(ctx, u); err != nil {
			return domain.Internal(err)
		}
		if _, err := s.d.Tokens.RevokeAllForUser(ctx, u.ID, s.d.Now()); err != nil {
			return domain.Internal(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("user deactivated", zap.String("userId", u.ID), zap.String("by", actorID))
	s.d.publish(ctx, events.UserDeactivated, u.ID, map[string]string{"by": actorID})
	return nil
}

type UserPage struct {
	Items []domain.PublicUser `json:"list"`
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
	Size  int                 `json:"size"`
}

func (s *UserService) ListUsers(ctx context.Context, actorID string, page, size int) (*UserPage, error) {
	if err := s.rbac.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	users, total, err := s.d.Users.List(ctx, (page-1)*size, size)
	if err != nil {
		return nil, domain.Internal(err)
	}
	out := &UserPage{Items: make([]domain.PublicUser, 0, len(users)), Total: total, Page: page, Size: size}
	for i := range users {
		if err := s.loadRoles(ctx, &users[i]); err != nil {
			return nil, err
		}
		out.Items = append(out.Items, users[i].Public())
	}
	return out, nil
}
