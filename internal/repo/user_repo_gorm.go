package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"learnhub-auth/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	return translate(dbFrom(ctx, r.db).Create(u).Error)
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.first(dbFrom(ctx, r.db), "id = ?", id)
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(dbFrom(ctx, r.db), "email = ?", email)
}

func (r *UserRepo) LockByID(ctx context.Context, id string) (*domain.User, error) {
	q := dbFrom(ctx, r.db)
	if inTx(ctx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.first(q, "id = ?", id)
}

func (r *UserRepo) first(q *gorm.DB, cond string, arg any) (*domain.User, error) {
	var u domain.User
	err := q.Where(cond, arg).First(&u).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context, offset, limit int) ([]domain.User, int64, error) {
	var users []domain.User
	var total int64
	if err := dbFrom(ctx, r.db).Model(&domain.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := dbFrom(ctx, r.db).Order("created_at desc").Offset(offset).Limit(limit).Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	return translate(dbFrom(ctx, r.db).Save(u).Error)
}

func (r *UserRepo) RoleNames(ctx context.Context, userID string) ([]string, error) {
	names := []string{}
	err := dbFrom(ctx, r.db).
		Table("roles").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Order("roles.name").
		Pluck("roles.name", &names).Error
	return names, err
}

func (r *UserRepo) HasRole(ctx context.Context, userID, roleID string) (bool, error) {
	var n int64
	err := dbFrom(ctx, r.db).Model(&domain.UserRole{}).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Count(&n).Error
	return n > 0, err
}

func (r *UserRepo) AddRole(ctx context.Context, a *domain.UserRole) error {
	return translate(dbFrom(ctx, r.db).Create(a).Error)
}

func (r *UserRepo) RemoveRole(ctx context.Context, userID, roleID string) (bool, error) {
	res := dbFrom(ctx, r.db).
		Where("user_id = ? AND role_id = ?", userID, roleID).
		Delete(&domain.UserRole{})
	return res.RowsAffected > 0, res.Error
}
