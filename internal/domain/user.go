package domain

import (
	"net/mail"
	"strings"
	"time"
)

const MinPasswordLength = 8

// User is the credential-store aggregate. PasswordHash is always populated;
// HasPassword tells whether the owner actually knows it (OAuth sign-ups get
// a random one they never see).
type User struct {
	ID           string    `gorm:"primaryKey;size:26" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:191;not null" json:"email"`
	PasswordHash string    `gorm:"size:100;not null" json:"-"`
	HasPassword  bool      `gorm:"not null;default:false" json:"-"`
	FullName     string    `gorm:"size:128" json:"fullName"`
	Phone        string    `gorm:"size:32" json:"phone"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	Roles        []string  `gorm:"-" json:"roles"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// HasRole reports whether name is among the loaded role names.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r == name {
			return true
		}
	}
	return false
}

// PublicUser is what leaves the service: never the password.
type PublicUser struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"fullName"`
	Phone    string   `json:"phone"`
	Roles    []string `json:"roles"`
}

func (u *User) Public() PublicUser {
	roles := u.Roles
	if roles == nil {
		roles = []string{}
	}
	return PublicUser{ID: u.ID, Email: u.Email, FullName: u.FullName, Phone: u.Phone, Roles: roles}
}

// UserRole records who granted a role to a user and when.
type UserRole struct {
	UserID     string    `gorm:"primaryKey;size:26"`
	RoleID     string    `gorm:"primaryKey;size:26;index"`
	AssignedBy string    `gorm:"size:26"`
	AssignedAt time.Time `gorm:"not null"`
}

func (UserRole) TableName() string { return "user_roles" }

func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// ValidateEmail expects an already-normalized address.
func ValidateEmail(email string) error {
	if email == "" || len(email) > 191 {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.IndexByte(email, '@'):], ".") {
		return ErrInvalidEmail
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}
