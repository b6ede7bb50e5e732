package repo

import (
	"context"

	"gorm.io/gorm"

	"learnhub-auth/internal/domain"
)

type PermissionRepo struct{ db *gorm.DB }

func NewPermissionRepo(db *gorm.DB) *PermissionRepo { return &PermissionRepo{db: db} }

func (r *PermissionRepo) Create(ctx context.Context, p *domain.Permission) error {
	return translate(dbFrom(ctx, r.db).Create(p).Error)
}

func (r *PermissionRepo) FindByName(ctx context.Context, name string) (*domain.Permission, error) {
	var p domain.Permission
	err := dbFrom(ctx, r.db).Where("name = ?", name).First(&p).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PermissionRepo) FindByIDs(ctx context.Context, ids []string) ([]domain.Permission, error) {
	var perms []domain.Permission
	if len(ids) == 0 {
		return perms, nil
	}
	err := dbFrom(ctx, r.db).Where("id IN ?", ids).Find(&perms).Error
	return perms, err
}

func (r *PermissionRepo) List(ctx context.Context) ([]domain.Permission, error) {
	var perms []domain.Permission
	err := dbFrom(ctx, r.db).Order("name").Find(&perms).Error
	return perms, err
}

// granted joins user_roles -> role_permissions -> permissions for one user.
func (r *PermissionRepo) granted(ctx context.Context, userID string) *gorm.DB {
	return dbFrom(ctx, r.db).
		Table("permissions").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN user_roles ON user_roles.role_id = role_permissions.role_id").
		Where("user_roles.user_id = ?", userID)
}

func (r *PermissionRepo) GrantedTo(ctx context.Context, userID string, names []string) ([]string, error) {
	out := []string{}
	if len(names) == 0 {
		return out, nil
	}
	err := r.granted(ctx, userID).
		Where("permissions.name IN ?", names).
		Distinct().
		Pluck("permissions.name", &out).Error
	return out, err
}

func (r *PermissionRepo) ForUser(ctx context.Context, userID string) ([]string, error) {
	out := []string{}
	err := r.granted(ctx, userID).
		Distinct().
		Order("permissions.name").
		Pluck("permissions.name", &out).Error
	return out, err
}
