package domain

import (
	"context"
	"time"
)

// Lookups return (nil, nil) when nothing matches. Inserts that collide with a
// unique constraint return an error matching ErrDuplicate.

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	// LockByID is FindByID plus a row lock when called inside a transaction.
	LockByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context, offset, limit int) ([]User, int64, error)
	Update(ctx context.Context, u *User) error

	RoleNames(ctx context.Context, userID string) ([]string, error)
	HasRole(ctx context.Context, userID, roleID string) (bool, error)
	AddRole(ctx context.Context, a *UserRole) error
	RemoveRole(ctx context.Context, userID, roleID string) (bool, error)
}

type RoleRepository interface {
	Create(ctx context.Context, r *Role) error
	FindByID(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]Role, error)
	Update(ctx context.Context, r *Role) error
	// Delete drops the role and its assignments. It fails with ErrRoleInUse
	// while some user holds no other role.
	Delete(ctx context.Context, id string) error

	HasPermission(ctx context.Context, roleID, permissionID string) (bool, error)
	AddPermission(ctx context.Context, rp *RolePermission) error
	RemovePermission(ctx context.Context, roleID, permissionID string) (bool, error)
	// ReplacePermissions swaps the whole set atomically.
	ReplacePermissions(ctx context.Context, roleID string, permissionIDs []string, assignedBy string, at time.Time) error
	Permissions(ctx context.Context, roleID string) ([]Permission, error)
}

type PermissionRepository interface {
	Create(ctx context.Context, p *Permission) error
	FindByName(ctx context.Context, name string) (*Permission, error)
	FindByIDs(ctx context.Context, ids []string) ([]Permission, error)
	List(ctx context.Context) ([]Permission, error)
	// GrantedTo returns the subset of names the user currently holds through any role.
	GrantedTo(ctx context.Context, userID string, names []string) ([]string, error)
	ForUser(ctx context.Context, userID string) ([]string, error)
}

type OAuthConnectionRepository interface {
	Create(ctx context.Context, c *OAuthConnection) error
	FindByProviderUserID(ctx context.Context, provider Provider, providerUserID string) (*OAuthConnection, error)
	FindByUserAndProvider(ctx context.Context, userID string, provider Provider) (*OAuthConnection, error)
	ListByUser(ctx context.Context, userID string) ([]OAuthConnection, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	Update(ctx context.Context, c *OAuthConnection) error
	Delete(ctx context.Context, id string) error
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, t *RefreshToken) error
	FindByHash(ctx context.Context, hash string) (*RefreshToken, error)
	// Rotate revokes oldID only if it is still active at now and inserts next in
	// the same transaction. A lost race returns ErrRefreshTokenRevoked.
	Rotate(ctx context.Context, oldID string, now time.Time, next *RefreshToken) error
	Revoke(ctx context.Context, hash string, now time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Transactor runs fn in one transaction; repositories pick it up from ctx.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
