package domain

import (
	"regexp"
	"strings"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// SystemRoles are seeded once; their name and existence are immutable.
var SystemRoles = []Role{
	{Name: RoleAdmin, Description: "Full administrative access", IsSystem: true},
	{Name: RoleUser, Description: "Default role for every account", IsSystem: true},
}

var (
	roleNamePattern       = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,49}$`)
	permissionNamePattern = regexp.MustCompile(`^([a-z][a-z0-9_-]{0,49}):([a-z*][a-z0-9_*-]{0,49})$`)
)

type Role struct {
	ID          string    `gorm:"primaryKey;size:26" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	IsSystem    bool      `gorm:"not null;default:false" json:"isSystem"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Role) TableName() string { return "roles" }

// Permission is named resource:action.
type Permission struct {
	ID          string    `gorm:"primaryKey;size:26" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Resource    string    `gorm:"size:64;not null;index" json:"resource"`
	Action      string    `gorm:"size:64;not null" json:"action"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Permission) TableName() string { return "permissions" }

type RolePermission struct {
	RoleID       string    `gorm:"primaryKey;size:26"`
	PermissionID string    `gorm:"primaryKey;size:26;index"`
	AssignedBy   string    `gorm:"size:26"`
	AssignedAt   time.Time `gorm:"not null"`
}

func (RolePermission) TableName() string { return "role_permissions" }

func NormalizeRoleName(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

func ValidateRoleName(name string) error {
	if !roleNamePattern.MatchString(name) {
		return ErrInvalidRoleName
	}
	return nil
}

// ParsePermissionName normalizes and splits "resource:action".
func ParsePermissionName(name string) (resource, action string, err error) {
	m := permissionNamePattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(name)))
	if m == nil {
		return "", "", ErrInvalidPermissionName
	}
	return m[1], m[2], nil
}

// BuiltinPermissions is the catalog seeded alongside the system roles.
var BuiltinPermissions = []string{
	"users:read", "users:write",
	"roles:read", "roles:write",
	"permissions:read", "permissions:write",
	"courses:read", "courses:write",
	"lessons:read", "lessons:write",
	"categories:read", "categories:write",
	"certificates:read", "certificates:write",
	"bundles:read", "bundles:write",
	"exercises:grade",
}
