package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"learnhub-auth/internal/domain"
)

type RoleRepo struct{ db *gorm.DB }

func NewRoleRepo(db *gorm.DB) *RoleRepo { return &RoleRepo{db: db} }

func (r *RoleRepo) Create(ctx context.Context, role *domain.Role) error {
	return translate(dbFrom(ctx, r.db).Create(role).Error)
}

func (r *RoleRepo) FindByID(ctx context.Context, id string) (*domain.Role, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *RoleRepo) FindByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.first(ctx, "name = ?", name)
}

func (r *RoleRepo) first(ctx context.Context, cond string, arg any) (*domain.Role, error) {
	var role domain.Role
	err := dbFrom(ctx, r.db).Where(cond, arg).First(&role).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepo) List(ctx context.Context) ([]domain.Role, error) {
	var roles []domain.Role
	err := dbFrom(ctx, r.db).Order("name").Find(&roles).Error
	return roles, err
}

func (r *RoleRepo) Update(ctx context.Context, role *domain.Role) error {
	return translate(dbFrom(ctx, r.db).Save(role).Error)
}

// Delete removes the role together with its user and permission assignments.
// Users for whom it is the only role block the delete.
func (r *RoleRepo) Delete(ctx context.Context, id string) error {
	return dbFrom(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var sole int64
		err := tx.Table("user_roles AS ur").
			Where("ur.role_id = ?", id).
			Where("NOT EXISTS (SELECT 1 FROM user_roles AS o WHERE o.user_id = ur.user_id AND o.role_id <> ur.role_id)").
			Count(&sole).Error
		if err != nil {
			return err
		}
		if sole > 0 {
			return domain.ErrRoleInUse
		}
		if err := tx.Where("role_id = ?", id).Delete(&domain.UserRole{}).Error; err != nil {
			return err
		}
		if err := tx.Where("role_id = ?", id).Delete(&domain.RolePermission{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&domain.Role{}).Error
	})
}

func (r *RoleRepo) HasPermission(ctx context.Context, roleID, permissionID string) (bool, error) {
	var n int64
	err := dbFrom(ctx, r.db).Model(&domain.RolePermission{}).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Count(&n).Error
	return n > 0, err
}

func (r *RoleRepo) AddPermission(ctx context.Context, rp *domain.RolePermission) error {
	return translate(dbFrom(ctx, r.db).Create(rp).Error)
}

func (r *RoleRepo) RemovePermission(ctx context.Context, roleID, permissionID string) (bool, error) {
	res := dbFrom(ctx, r.db).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Delete(&domain.RolePermission{})
	return res.RowsAffected > 0, res.Error
}

func (r *RoleRepo) ReplacePermissions(ctx context.Context, roleID string, permissionIDs []string, assignedBy string, at time.Time) error {
	return dbFrom(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", roleID).Delete(&domain.RolePermission{}).Error; err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}
		rows := make([]domain.RolePermission, 0, len(permissionIDs))
		for _, pid := range permissionIDs {
			rows = append(rows, domain.RolePermission{
				RoleID:       roleID,
				PermissionID: pid,
				AssignedBy:   assignedBy,
				AssignedAt:   at,
			})
		}
		return translate(tx.Create(&rows).Error)
	})
}

func (r *RoleRepo) Permissions(ctx context.Context, roleID string) ([]domain.Permission, error) {
	var perms []domain.Permission
	err := dbFrom(ctx, r.db).
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Where("role_permissions.role_id = ?", roleID).
		Order("permissions.name").
		Find(&perms).Error
	return perms, err
}
