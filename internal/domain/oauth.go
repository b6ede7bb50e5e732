package domain

import (
	"strings"
	"time"
)

type Provider string

const (
	ProviderLocal    Provider = "local"
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
	ProviderApple    Provider = "apple"
)

// ParseProvider accepts only the third-party providers; "local" is not an
// OAuth provider and is rejected too.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderGoogle, ProviderFacebook, ProviderApple:
		return p, nil
	default:
		return "", ErrUnknownProvider
	}
}

// OAuthConnection links a local user to one provider account.
// Unique per (provider, provider_user_id) and per (user_id, provider).
type OAuthConnection struct {
	ID             string     `gorm:"primaryKey;size:26" json:"id"`
	UserID         string     `gorm:"size:26;not null;uniqueIndex:idx_oauth_user_provider" json:"userId"`
	Provider       Provider   `gorm:"size:16;not null;uniqueIndex:idx_oauth_user_provider;uniqueIndex:idx_oauth_provider_subject" json:"provider"`
	ProviderUserID string     `gorm:"size:191;not null;uniqueIndex:idx_oauth_provider_subject" json:"providerUserId"`
	Email          string     `gorm:"size:191" json:"email"`
	Name           string     `gorm:"size:128" json:"name"`
	AvatarURL      string     `gorm:"size:512" json:"avatarUrl"`
	AccessToken    string     `gorm:"type:text" json:"-"`
	RefreshToken   string     `gorm:"type:text" json:"-"`
	TokenExpiresAt *time.Time `json:"-"`
	LinkedAt       time.Time  `gorm:"not null" json:"linkedAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (OAuthConnection) TableName() string { return "oauth_connections" }
