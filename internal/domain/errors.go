package domain

import "errors"

// Kind classifies a failure so the transport layer can pick a status code
// without knowing about individual operations.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindInvariant:
		return "invariant"
	default:
		return "internal"
	}
}

// MessageKey identifies a user-facing message. Localisation happens at the
// HTTP boundary; the domain only ever returns keys.
type MessageKey string

const (
	KeyInternal  MessageKey = "common.internal_error"
	KeyDuplicate MessageKey = "store.duplicate"

	KeyInvalidEmail       MessageKey = "user.invalid_email"
	KeyPasswordTooShort   MessageKey = "user.password_too_short"
	KeyInvalidID          MessageKey = "common.invalid_id"
	KeyUserNotFound       MessageKey = "user.not_found"
	KeyEmailTaken         MessageKey = "user.email_taken"
	KeyAccountDisabled    MessageKey = "user.account_disabled"
	KeyPasswordAlreadySet MessageKey = "user.password_already_set"

	KeyInvalidCredentials  MessageKey = "auth.invalid_credentials"
	KeyUnauthenticated     MessageKey = "auth.unauthenticated"
	KeyInvalidAccessToken  MessageKey = "auth.invalid_access_token"
	KeyRefreshTokenInvalid MessageKey = "auth.refresh_token_invalid"
	KeyRefreshTokenRevoked MessageKey = "auth.refresh_token_revoked"
	KeyRefreshTokenExpired MessageKey = "auth.refresh_token_expired"

	KeyNotAdmin                 MessageKey = "rbac.not_admin"
	KeyPermissionDenied         MessageKey = "rbac.permission_denied"
	KeyInvalidRoleName          MessageKey = "rbac.invalid_role_name"
	KeyInvalidPermissionName    MessageKey = "rbac.invalid_permission_name"
	KeyRoleNotFound             MessageKey = "rbac.role_not_found"
	KeyPermissionNotFound       MessageKey = "rbac.permission_not_found"
	KeyRoleNameTaken            MessageKey = "rbac.role_name_taken"
	KeyPermissionExists         MessageKey = "rbac.permission_exists"
	KeySystemRoleRename         MessageKey = "rbac.system_role_rename"
	KeySystemRoleDelete         MessageKey = "rbac.system_role_delete"
	KeyRoleAlreadyHasPermission MessageKey = "rbac.role_already_has_permission"
	KeyRoleMissingPermission    MessageKey = "rbac.role_missing_permission"
	KeyUserAlreadyHasRole       MessageKey = "rbac.user_already_has_role"
	KeyUserMissingRole          MessageKey = "rbac.user_missing_role"
	KeyLastRole                 MessageKey = "rbac.last_role"
	KeyRoleInUse                MessageKey = "rbac.role_in_use"

	KeyUnknownProvider         MessageKey = "oauth.unknown_provider"
	KeyProviderDisabled        MessageKey = "oauth.provider_disabled"
	KeyOAuthExchangeFailed     MessageKey = "oauth.exchange_failed"
	KeyOAuthStateInvalid       MessageKey = "oauth.state_invalid"
	KeyConnectionNotFound      MessageKey = "oauth.connection_not_found"
	KeyProviderAlreadyLinked   MessageKey = "oauth.provider_already_linked"
	KeyIdentityLinkedElsewhere MessageKey = "oauth.already_linked_to_another_user"
	KeyOnlyAuthMethod          MessageKey = "oauth.only_auth_method"
)

// Error is the typed failure returned by every domain operation.
type Error struct {
	Kind Kind
	Key  MessageKey
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Key) + ": " + e.Err.Error()
	}
	return string(e.Key)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on the message key so wrapped copies of a sentinel still compare equal.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Key == e.Key
}

func newErr(kind Kind, key MessageKey) *Error { return &Error{Kind: kind, Key: key} }

// Wrap attaches a cause to a sentinel while keeping its kind and key.
func Wrap(sentinel *Error, cause error) error {
	return &Error{Kind: sentinel.Kind, Key: sentinel.Key, Err: cause}
}

// Internal marks an unexpected infrastructure failure.
func Internal(cause error) error {
	if cause == nil {
		return nil
	}
	var de *Error
	if errors.As(cause, &de) {
		return cause
	}
	return &Error{Kind: KindInternal, Key: KeyInternal, Err: cause}
}

// KindOf reports the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// KeyOf reports the message key of err, KeyInternal for foreign errors.
func KeyOf(err error) MessageKey {
	var de *Error
	if errors.As(err, &de) {
		return de.Key
	}
	return KeyInternal
}

var (
	ErrDuplicate = newErr(KindConflict, KeyDuplicate)

	ErrInvalidEmail       = newErr(KindValidation, KeyInvalidEmail)
	ErrPasswordTooShort   = newErr(KindValidation, KeyPasswordTooShort)
	ErrInvalidID          = newErr(KindValidation, KeyInvalidID)
	ErrUserNotFound       = newErr(KindNotFound, KeyUserNotFound)
	ErrEmailTaken         = newErr(KindConflict, KeyEmailTaken)
	ErrAccountDisabled    = newErr(KindForbidden, KeyAccountDisabled)
	ErrPasswordAlreadySet = newErr(KindConflict, KeyPasswordAlreadySet)

	ErrInvalidCredentials  = newErr(KindUnauthorized, KeyInvalidCredentials)
	ErrUnauthenticated     = newErr(KindUnauthorized, KeyUnauthenticated)
	ErrInvalidAccessToken  = newErr(KindUnauthorized, KeyInvalidAccessToken)
	ErrRefreshTokenInvalid = newErr(KindUnauthorized, KeyRefreshTokenInvalid)
	ErrRefreshTokenRevoked = newErr(KindUnauthorized, KeyRefreshTokenRevoked)
	ErrRefreshTokenExpired = newErr(KindUnauthorized, KeyRefreshTokenExpired)

	ErrNotAdmin                 = newErr(KindForbidden, KeyNotAdmin)
	ErrPermissionDenied         = newErr(KindForbidden, KeyPermissionDenied)
	ErrInvalidRoleName          = newErr(KindValidation, KeyInvalidRoleName)
	ErrInvalidPermissionName    = newErr(KindValidation, KeyInvalidPermissionName)
	ErrRoleNotFound             = newErr(KindNotFound, KeyRoleNotFound)
	ErrPermissionNotFound       = newErr(KindNotFound, KeyPermissionNotFound)
	ErrRoleNameTaken            = newErr(KindConflict, KeyRoleNameTaken)
	ErrPermissionExists         = newErr(KindConflict, KeyPermissionExists)
	ErrSystemRoleRename         = newErr(KindInvariant, KeySystemRoleRename)
	ErrSystemRoleDelete         = newErr(KindInvariant, KeySystemRoleDelete)
	ErrRoleAlreadyHasPermission = newErr(KindConflict, KeyRoleAlreadyHasPermission)
	ErrRoleMissingPermission    = newErr(KindNotFound, KeyRoleMissingPermission)
	ErrUserAlreadyHasRole       = newErr(KindConflict, KeyUserAlreadyHasRole)
	ErrUserMissingRole          = newErr(KindNotFound, KeyUserMissingRole)
	ErrLastRole                 = newErr(KindInvariant, KeyLastRole)
	ErrRoleInUse                = newErr(KindInvariant, KeyRoleInUse)

	ErrUnknownProvider         = newErr(KindValidation, KeyUnknownProvider)
	ErrProviderDisabled        = newErr(KindValidation, KeyProviderDisabled)
	ErrOAuthExchangeFailed     = newErr(KindUnauthorized, KeyOAuthExchangeFailed)
	ErrOAuthStateInvalid       = newErr(KindValidation, KeyOAuthStateInvalid)
	ErrConnectionNotFound      = newErr(KindNotFound, KeyConnectionNotFound)
	ErrProviderAlreadyLinked   = newErr(KindConflict, KeyProviderAlreadyLinked)
	ErrIdentityLinkedElsewhere = newErr(KindConflict, KeyIdentityLinkedElsewhere)
	ErrOnlyAuthMethod          = newErr(KindInvariant, KeyOnlyAuthMethod)
)
