package domain

import "time"

// RefreshToken is stored by hash; the opaque value only ever lives client side.
// States: active -> revoked, active -> expired. Both are terminal.
type RefreshToken struct {
	ID         string    `gorm:"primaryKey;size:26"`
	TokenHash  string    `gorm:"uniqueIndex;size:64;not null"`
	UserID     string    `gorm:"size:26;not null;index"`
	ExpiresAt  time.Time `gorm:"not null;index"`
	Revoked    bool      `gorm:"not null;default:false"`
	RevokedAt  *time.Time
	// ReplacedBy is set when the token was rotated, as opposed to logged out.
	ReplacedBy string `gorm:"size:26"`
	UserAgent  string `gorm:"size:255"`
	IP         string `gorm:"size:64"`
	CreatedAt  time.Time
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

func (t *RefreshToken) Expired(now time.Time) bool { return !now.Before(t.ExpiresAt) }

func (t *RefreshToken) Active(now time.Time) bool { return !t.Revoked && !t.Expired(now) }

// Rotated reports whether presenting t again is a replay of a used token.
func (t *RefreshToken) Rotated() bool { return t.Revoked && t.ReplacedBy != "" }

// ClientMeta is what the transport knows about the caller.
type ClientMeta struct {
	UserAgent string
	IP        string
}
