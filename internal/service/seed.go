package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"learnhub-auth/internal/domain"
	"learnhub-auth/pkg/utils"
)

// Seed creates the system roles and builtin permissions that are missing and
// grants every permission to admin. Running it again changes nothing.
func (s *RBACService) Seed(ctx context.Context) error {
	return s.d.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		now := s.d.Now()
		var admin *domain.Role
		for _, sr := range domain.SystemRoles {
			r, err := s.d.Roles.FindByName(ctx, sr.Name)
			if err != nil {
				return domain.Internal(err)
			}
			if r == nil {
				r = &domain.Role{
					ID:          utils.NewID(),
					Name:        sr.Name,
					Description: sr.Description,
					IsSystem:    true,
					CreatedAt:   now,
					UpdatedAt:   now,
				}
				if err := s.d.Roles.Create(ctx, r); err != nil {
					return domain.Internal(err)
				}
				s.log.Info("system role seeded", zap.String("role", r.Name))
			}
			if r.Name == domain.RoleAdmin {
				admin = r
			}
		}

		for _, name := range domain.BuiltinPermissions {
			p, err := s.d.Permissions.FindByName(ctx, name)
			if err != nil {
				return domain.Internal(err)
			}
			if p == nil {
				if p, err = s.createPermission(ctx, name, ""); err != nil {
					return err
				}
			}
			has, err := s.d.Roles.HasPermission(ctx, admin.ID, p.ID)
			if err != nil {
				return domain.Internal(err)
			}
			if has {
				continue
			}
			err = s.d.Roles.AddPermission(ctx, &domain.RolePermission{RoleID: admin.ID, PermissionID: p.ID, AssignedAt: now})
			if err != nil && !errors.Is(err, domain.ErrDuplicate) {
				return domain.Internal(err)
			}
		}
		return nil
	})
}

// Promote grants admin to the account with email. It is the bootstrap path
// for the first administrator and bypasses the admin gate.
func (s *RBACService) Promote(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.d.Users.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, domain.Internal(err)
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	admin, err := s.d.Roles.FindByName(ctx, domain.RoleAdmin)
	if err != nil {
		return nil, domain.Internal(err)
	}
	if admin == nil {
		return nil, domain.Internal(fmt.Errorf("role %q is not seeded", domain.RoleAdmin))
	}
	err = s.d.Users.AddRole(ctx, &domain.UserRole{UserID: u.ID, RoleID: admin.ID, AssignedAt: s.d.Now()})
	if err != nil && !errors.Is(err, domain.ErrDuplicate) {
		return nil, domain.Internal(err)
	}
	if u.Roles, err = s.d.Users.RoleNames(ctx, u.ID); err != nil {
		return nil, domain.Internal(err)
	}
	s.log.Info("user promoted to admin", zap.String("userId", u.ID))
	return u, nil
}
