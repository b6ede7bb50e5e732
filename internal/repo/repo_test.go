package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"learnhub-auth/internal/domain"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 logger.Discard,
	})
	require.NoError(t, err)
	return db, mock
}

func TestRotateRevokesAndInserts(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewRefreshTokenRepo(db)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "refresh_tokens" SET .*WHERE id = .*revoked = .*expires_at >`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "refresh_tokens"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	next := &domain.RefreshToken{ID: "next", TokenHash: "h2", UserID: "u1", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, r.Rotate(context.Background(), "old", now, next))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateLosesRace(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewRefreshTokenRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "refresh_tokens" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	next := &domain.RefreshToken{ID: "next", TokenHash: "h2", UserID: "u1"}
	err := r.Rotate(context.Background(), "old", time.Now(), next)
	assert.ErrorIs(t, err, domain.ErrRefreshTokenRevoked)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeIsConditional(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewRefreshTokenRepo(db)

	mock.ExpectExec(`UPDATE "refresh_tokens" SET .*WHERE token_hash = `).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := r.Revoke(context.Background(), "h1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByHashMissing(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewRefreshTokenRepo(db)

	mock.ExpectQuery(`SELECT \* FROM "refresh_tokens" WHERE token_hash = `).
		WillReturnRows(sqlmock.NewRows([]string{"id", "token_hash"}))

	got, err := r.FindByHash(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReplacePermissionsIsAllOrNothing(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewRoleRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "role_permissions" WHERE role_id = `).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`INSERT INTO "role_permissions"`).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "role_permissions_pkey"`))
	mock.ExpectRollback()

	err := r.ReplacePermissions(context.Background(), "r1", []string{"p1", "p1"}, "admin", time.Now())
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRoleBlockedBySoleHolders(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewRoleRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM user_roles AS ur WHERE ur.role_id = .*NOT EXISTS`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	err := r.Delete(context.Background(), "r1")
	assert.ErrorIs(t, err, domain.ErrRoleInUse)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRoleDropsAssignments(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewRoleRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT count\(\*\) FROM user_roles AS ur`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`DELETE FROM "user_roles" WHERE role_id = `).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM "role_permissions" WHERE role_id = `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "roles" WHERE id = `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, r.Delete(context.Background(), "r1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)
	r := NewUserRepo(db)

	mock.ExpectExec(`INSERT INTO "users"`).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_users_email"`))

	err := r.Create(context.Background(), &domain.User{ID: "u1", Email: "a@b.co", Active: true})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestTransactorSharesTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	tx := NewTransactor(db)
	tokens := NewRefreshTokenRepo(db)
	conns := NewOAuthConnectionRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "refresh_tokens" SET .*WHERE user_id = `).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`DELETE FROM "oauth_connections" WHERE id = `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error {
		n, err := tokens.RevokeAllForUser(ctx, "u1", time.Now())
		if err != nil {
			return err
		}
		assert.EqualValues(t, 2, n)
		return conns.Delete(ctx, "c1")
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactorRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	tx := NewTransactor(db)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := tx.WithinTransaction(context.Background(), func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
