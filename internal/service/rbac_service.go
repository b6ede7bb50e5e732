package service

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"learnhub-auth/internal/domain"
	"learnhub-auth/pkg/utils"
)

// RBACService is the role/permission graph. Every mutation requires the
// caller to hold the admin role right now, read from the store and not the
// access token.
type RBACService struct {
	d   Deps
	log *zap.Logger
}

// Match selects how Check combines several permission names.
type Match int

const (
	MatchAll Match = iota
	MatchAny
)

type RoleUpdate struct {
	Name        *string
	Description *string
}

func (s *RBACService) requireAdmin(ctx context.Context, actorID string) error {
	if actorID == "" {
		return domain.ErrUnauthenticated
	}
	u, err := s.d.Users.FindByID(ctx, actorID)
	if err != nil {
		return domain.Internal(err)
	}
	if u == nil || !u.Active {
		return domain.ErrNotAdmin
	}
	names, err := s.d.Users.RoleNames(ctx, actorID)
	if err != nil {
		return domain.Internal(err)
	}
	for _, n := range names {
		if n == domain.RoleAdmin {
			return nil
		}
	}
	return domain.ErrNotAdmin
}

// IsAdmin is the live admin check used by the HTTP role guard.
func (s *RBACService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	err := s.requireAdmin(ctx, userID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotAdmin), errors.Is(err, domain.ErrUnauthenticated):
		return false, nil
	default:
		return false, err
	}
}

func (s *RBACService) role(ctx context.Context, id string) (*domain.Role, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrInvalidID
	}
	r, err := s.d.Roles.FindByID(ctx, id)
	if err != nil {
		return nil, domain.Internal(err)
	}
	if r == nil {
		return nil, domain.ErrRoleNotFound
	}
	return r, nil
}

// roleByRef accepts a role id or a role name.
func (s *RBACService) roleByRef(ctx context.Context, ref string) (*domain.Role, error) {
	r, err := s.d.Roles.FindByID(ctx, ref)
	if err != nil {
		return nil, domain.Internal(err)
	}
	if r != nil {
		return r, nil
	}
	r, err = s.d.Roles.FindByName(ctx, domain.NormalizeRoleName(ref))
	if err != nil {
		return nil, domain.Internal(err)
	}
	if r == nil {
		return nil, domain.ErrRoleNotFound
	}
	return r, nil
}

func (s *RBACService) permission(ctx context.Context, name string) (*domain.Permission, error) {
	res, act, err := domain.ParsePermissionName(name)
	if err != nil {
		return nil, err
	}
	p, err := s.d.Permissions.FindByName(ctx, res+":"+act)
	if err != nil {
		return nil, domain.Internal(err)
	}
	if p == nil {
		return nil, domain.ErrPermissionNotFound
	}
	return p, nil
}

func (s *RBACService) CreateRole(ctx context.Context, actorID, name, description string) (*domain.Role, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	name = domain.NormalizeRoleName(name)
	if err := domain.ValidateRoleName(name); err != nil {
		return nil, err
	}
	existing, err := s.d.Roles.FindByName(ctx, name)
	if err != nil {
		return nil, domain.Internal(err)
	}
	if existing != nil {
		return nil, domain.ErrRoleNameTaken
	}
	now := s.d.Now()
	r := &domain.Role{
		ID:          utils.NewID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.d.Roles.Create(ctx, r); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.ErrRoleNameTaken
		}
		return nil, domain.Internal(err)
	}
	s.log.Info("role created", zap.String("role", r.Name), zap.String("by", actorID))
	return r, nil
}

// UpdateRole can change the description of a system role but never its name.
func (s *RBACService) UpdateRole(ctx context.Context, actorID, id string, in RoleUpdate) (*domain.Role, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	r, err := s.role(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		name := domain.NormalizeRoleName(*in.Name)
		if name != r.Name {
			if r.IsSystem {
				return nil, domain.ErrSystemRoleRename
			}
			if err := domain.ValidateRoleName(name); err != nil {
				return nil, err
			}
			other, err := s.d.Roles.FindByName(ctx, name)
			if err != nil {
				return nil, domain.Internal(err)
			}
			if other != nil && other.ID != r.ID {
				return nil, domain.ErrRoleNameTaken
			}
			r.Name = name
		}
	}
	if in.Description != nil {
		r.Description = strings.TrimSpace(*in.Description)
	}
	r.UpdatedAt = s.d.Now()
	if err := s.d.Roles.Update(ctx, r); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.ErrRoleNameTaken
		}
		return nil, domain.Internal(err)
	}
	return r, nil
}

func (s *RBACService) DeleteRole(ctx context.Context, actorID, id string) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	r, err := s.role(ctx, id)
	if err != nil {
		return err
	}
	if r.IsSystem {
		return domain.ErrSystemRoleDelete
	}
	if err := s.d.Roles.Delete(ctx, r.ID); err != nil {
		if errors.Is(err, domain.ErrRoleInUse) {
			return domain.ErrRoleInUse
		}
		return domain.Internal(err)
	}
	s.log.Info("role deleted", zap.String("role", r.Name), zap.String("by", actorID))
	return nil
}

func (s *RBACService) GetRole(ctx context.Context, actorID, id string) (*domain.Role, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.role(ctx, id)
}

func (s *RBACService) ListRoles(ctx context.Context, actorID string) ([]domain.Role, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	roles, err := s.d.Roles.List(ctx)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return roles, nil
}

func (s *RBACService) GetRolePermissions(ctx context.Context, actorID, roleID string) ([]domain.Permission, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	r, err := s.role(ctx, roleID)
	if err != nil {
		return nil, err
	}
	perms, err := s.d.Roles.Permissions(ctx, r.ID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return perms, nil
}

func (s *RBACService) AssignPermissionToRole(ctx context.Context, actorID, roleID, permission string) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	r, err := s.role(ctx, roleID)
	if err != nil {
		return err
	}
	p, err := s.permission(ctx, permission)
	if err != nil {
		return err
	}
	has, err := s.d.Roles.HasPermission(ctx, r.ID, p.ID)
	if err != nil {
		return domain.Internal(err)
	}
	if has {
		return domain.ErrRoleAlreadyHasPermission
	}
	err = s.d.Roles.AddPermission(ctx, &domain.RolePermission{
		RoleID:       r.ID,
		PermissionID: p.ID,
		AssignedBy:   actorID,
		AssignedAt:   s.d.Now(),
	})
	if errors.Is(err, domain.ErrDuplicate) {
		return domain.ErrRoleAlreadyHasPermission
	}
	if err != nil {
		return domain.Internal(err)
	}
	return nil
}

func (s *RBACService) RemovePermissionFromRole(ctx context.Context, actorID, roleID, permission string) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	r, err := s.role(ctx, roleID)
	if err != nil {
		return err
	}
	p, err := s.permission(ctx, permission)
	if err != nil {
		return err
	}
	removed, err := s.d.Roles.RemovePermission(ctx, r.ID, p.ID)
	if err != nil {
		return domain.Internal(err)
	}
	if !removed {
		return domain.ErrRoleMissingPermission
	}
	return nil
}

// SetRolePermissions replaces the whole permission set of a role, or nothing
// when any id is unknown.
func (s *RBACService) SetRolePermissions(ctx context.Context, actorID, roleID string, permissionIDs []string) ([]domain.Permission, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	r, err := s.role(ctx, roleID)
	if err != nil {
		return nil, err
	}
	ids := dedupe(permissionIDs)
	perms, err := s.d.Permissions.FindByIDs(ctx, ids)
	if err != nil {
		return nil, domain.Internal(err)
	}
	if len(perms) != len(ids) {
		return nil, domain.ErrPermissionNotFound
	}
	if err := s.d.Roles.ReplacePermissions(ctx, r.ID, ids, actorID, s.d.Now()); err != nil {
		return nil, domain.Internal(err)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	s.log.Info("role permissions replaced", zap.String("role", r.Name), zap.Int("count", len(ids)), zap.String("by", actorID))
	return perms, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func (s *RBACService) target(ctx context.Context, userID string) (*domain.User, error) {
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

// AssignRoleToUser takes a role id or name.
func (s *RBACService) AssignRoleToUser(ctx context.Context, actorID, userID, role string) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	u, err := s.target(ctx, userID)
	if err != nil {
		return err
	}
	r, err := s.roleByRef(ctx, role)
	if err != nil {
		return err
	}
	has, err := s.d.Users.HasRole(ctx, u.ID, r.ID)
	if err != nil {
		return domain.Internal(err)
	}
	if has {
		return domain.ErrUserAlreadyHasRole
	}
	err = s.d.Users.AddRole(ctx, &domain.UserRole{UserID: u.ID, RoleID: r.ID, AssignedBy: actorID, AssignedAt: s.d.Now()})
	if errors.Is(err, domain.ErrDuplicate) {
		return domain.ErrUserAlreadyHasRole
	}
	if err != nil {
		return domain.Internal(err)
	}
	s.log.Info("role assigned", zap.String("userId", u.ID), zap.String("role", r.Name), zap.String("by", actorID))
	return nil
}

// RemoveRoleFromUser refuses to leave a user without any role.
func (s *RBACService) RemoveRoleFromUser(ctx context.Context, actorID, userID, role string) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	r, err := s.roleByRef(ctx, role)
	if err != nil {
		return err
	}
	return s.d.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		u, err := s.d.Users.LockByID(ctx, userID)
		if err != nil {
			return domain.Internal(err)
		}
		if u == nil {
			return domain.ErrUserNotFound
		}
		has, err := s.d.Users.HasRole(ctx, u.ID, r.ID)
		if err != nil {
			return domain.Internal(err)
		}
		if !has {
			return domain.ErrUserMissingRole
		}
		names, err := s.d.Users.RoleNames(ctx, u.ID)
		if err != nil {
			return domain.Internal(err)
		}
		if len(names) <= 1 {
			return domain.ErrLastRole
		}
		removed, err := s.d.Users.RemoveRole(ctx, u.ID, r.ID)
		if err != nil {
			return domain.Internal(err)
		}
		if !removed {
			return domain.ErrUserMissingRole
		}
		s.log.Info("role removed", zap.String("userId", u.ID), zap.String("role", r.Name), zap.String("by", actorID))
		return nil
	})
}

func (s *RBACService) ListPermissions(ctx context.Context, actorID string) ([]domain.Permission, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	perms, err := s.d.Permissions.List(ctx)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return perms, nil
}

func (s *RBACService) CreatePermission(ctx context.Context, actorID, name, description string) (*domain.Permission, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return s.createPermission(ctx, name, description)
}

func (s *RBACService) createPermission(ctx context.Context, name, description string) (*domain.Permission, error) {
	res, act, err := domain.ParsePermissionName(name)
	if err != nil {
		return nil, err
	}
	p := &domain.Permission{
		ID:          utils.NewID(),
		Name:        res + ":" + act,
		Resource:    res,
		Action:      act,
		Description: strings.TrimSpace(description),
		CreatedAt:   s.d.Now(),
	}
	if err := s.d.Permissions.Create(ctx, p); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.ErrPermissionExists
		}
		return nil, domain.Internal(err)
	}
	return p, nil
}

// GetUserPermissions is open to admins and to the user themselves.
func (s *RBACService) GetUserPermissions(ctx context.Context, actorID, userID string) ([]string, error) {
	if actorID != userID {
		if err := s.requireAdmin(ctx, actorID); err != nil {
			return nil, err
		}
	}
	u, err := s.target(ctx, userID)
	if err != nil {
		return nil, err
	}
	names, err := s.d.Permissions.ForUser(ctx, u.ID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return names, nil
}

// Check answers a permission question against the live graph. A granted
// "resource:*" covers every action on that resource. An empty list satisfies
// MatchAll and never MatchAny.
func (s *RBACService) Check(ctx context.Context, userID string, names []string, mode Match) error {
	if userID == "" {
		return domain.ErrUnauthenticated
	}
	if len(names) == 0 {
		if mode == MatchAny {
			return domain.ErrPermissionDenied
		}
		return nil
	}
	u, err := s.d.Users.FindByID(ctx, userID)
	if err != nil {
		return domain.Internal(err)
	}
	if u == nil {
		return domain.ErrUnauthenticated
	}
	if !u.Active {
		return domain.ErrAccountDisabled
	}

	query := make([]string, 0, len(names)*2)
	for _, n := range names {
		query = append(query, n)
		if res, _, err := domain.ParsePermissionName(n); err == nil {
			query = append(query, res+":*")
		}
	}
	granted, err := s.d.Permissions.GrantedTo(ctx, userID, dedupe(query))
	if err != nil {
		return domain.Internal(err)
	}
	held := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		held[g] = struct{}{}
	}
	covered := func(n string) bool {
		if _, ok := held[n]; ok {
			return true
		}
		if res, _, err := domain.ParsePermissionName(n); err == nil {
			_, ok := held[res+":*"]
			return ok
		}
		return false
	}

	for _, n := range names {
		ok := covered(n)
		if mode == MatchAny && ok {
			return nil
		}
		if mode == MatchAll && !ok {
			return domain.ErrPermissionDenied
		}
	}
	if mode == MatchAny {
		return domain.ErrPermissionDenied
	}
	return nil
}
