package repo

import (
	"context"

	"gorm.io/gorm"

	"learnhub-auth/internal/domain"
)

type OAuthConnectionRepo struct{ db *gorm.DB }

func NewOAuthConnectionRepo(db *gorm.DB) *OAuthConnectionRepo {
	return &OAuthConnectionRepo{db: db}
}

func (r *OAuthConnectionRepo) Create(ctx context.Context, c *domain.OAuthConnection) error {
	return translate(dbFrom(ctx, r.db).Create(c).Error)
}

func (r *OAuthConnectionRepo) FindByProviderUserID(ctx context.Context, p domain.Provider, providerUserID string) (*domain.OAuthConnection, error) {
	return r.first(ctx, "provider = ? AND provider_user_id = ?", p, providerUserID)
}

func (r *OAuthConnectionRepo) FindByUserAndProvider(ctx context.Context, userID string, p domain.Provider) (*domain.OAuthConnection, error) {
	return r.first(ctx, "user_id = ? AND provider = ?", userID, p)
}

func (r *OAuthConnectionRepo) first(ctx context.Context, cond string, args ...any) (*domain.OAuthConnection, error) {
	var c domain.OAuthConnection
	err := dbFrom(ctx, r.db).Where(cond, args...).First(&c).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *OAuthConnectionRepo) ListByUser(ctx context.Context, userID string) ([]domain.OAuthConnection, error) {
	var out []domain.OAuthConnection
	err := dbFrom(ctx, r.db).Where("user_id = ?", userID).Order("linked_at").Find(&out).Error
	return out, err
}

func (r *OAuthConnectionRepo) CountByUser(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := dbFrom(ctx, r.db).Model(&domain.OAuthConnection{}).Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

func (r *OAuthConnectionRepo) Update(ctx context.Context, c *domain.OAuthConnection) error {
	return translate(dbFrom(ctx, r.db).Save(c).Error)
}

func (r *OAuthConnectionRepo) Delete(ctx context.Context, id string) error {
	return dbFrom(ctx, r.db).Where("id = ?", id).Delete(&domain.OAuthConnection{}).Error
}
