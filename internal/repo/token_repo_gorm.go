package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"learnhub-auth/internal/domain"
)

type RefreshTokenRepo struct{ db *gorm.DB }

func NewRefreshTokenRepo(db *gorm.DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

func (r *RefreshTokenRepo) Create(ctx context.Context, t *domain.RefreshToken) error {
	return translate(dbFrom(ctx, r.db).Create(t).Error)
}

func (r *RefreshTokenRepo) FindByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := dbFrom(ctx, r.db).Where("token_hash = ?", hash).First(&t).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// revokeActive is the conditional update every rotation hinges on: only one
// caller can flip an active row.
func revokeActive(q *gorm.DB, now time.Time, replacedBy string) *gorm.DB {
	set := map[string]any{"revoked": true, "revoked_at": now}
	if replacedBy != "" {
		set["replaced_by"] = replacedBy
	}
	return q.Model(&domain.RefreshToken{}).
		Where("revoked = ? AND expires_at > ?", false, now).
		Updates(set)
}

func (r *RefreshTokenRepo) Rotate(ctx context.Context, oldID string, now time.Time, next *domain.RefreshToken) error {
	return dbFrom(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		res := revokeActive(tx.Where("id = ?", oldID), now, next.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrRefreshTokenRevoked
		}
		return translate(tx.Create(next).Error)
	})
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, hash string, now time.Time) (bool, error) {
	res := revokeActive(dbFrom(ctx, r.db).Where("token_hash = ?", hash), now, "")
	return res.RowsAffected > 0, res.Error
}

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	res := revokeActive(dbFrom(ctx, r.db).Where("user_id = ?", userID), now, "")
	return res.RowsAffected, res.Error
}

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := dbFrom(ctx, r.db).Where("expires_at <= ?", before).Delete(&domain.RefreshToken{})
	return res.RowsAffected, res.Error
}
