package i18n

// Keys used only by the HTTP layer. Domain keys come from domain.MessageKey.
const (
	KeyOK              = "common.ok"
	KeyBadRequest      = "common.bad_request"
	KeyNotFound        = "common.not_found"
	KeyTooManyRequests = "common.too_many_requests"
	KeyServerBusy      = "common.server_busy"
	KeyTimeout         = "common.timeout"
	KeyBodyTooLarge    = "common.body_too_large"
)

var english = map[string]string{
	KeyOK:              "OK",
	KeyBadRequest:      "Bad request",
	KeyNotFound:        "Not found",
	KeyTooManyRequests: "Too many requests",
	KeyServerBusy:      "Server busy, try again later",
	KeyTimeout:         "Request timed out",
	KeyBodyTooLarge:    "Request body too large",

	"common.internal_error": "Internal server error",
	"common.invalid_id":     "Invalid identifier",
	"store.duplicate":       "Resource already exists",

	"user.invalid_email":        "Invalid email address",
	"user.password_too_short":   "Password must be at least 8 characters",
	"user.not_found":            "User not found",
	"user.email_taken":          "Email is already registered",
	"user.account_disabled":     "Account is disabled",
	"user.password_already_set": "A password is already set for this account",

	"auth.invalid_credentials":   "Invalid email or password",
	"auth.unauthenticated":       "Authentication required",
	"auth.invalid_access_token":  "Invalid or expired access token",
	"auth.refresh_token_invalid": "Invalid refresh token",
	"auth.refresh_token_revoked": "Refresh token has been revoked",
	"auth.refresh_token_expired": "Refresh token has expired",

	"rbac.not_admin":                   "Administrator access required",
	"rbac.permission_denied":           "Insufficient permissions",
	"rbac.invalid_role_name":           "Invalid role name",
	"rbac.invalid_permission_name":     "Permission names must look like resource:action",
	"rbac.role_not_found":              "Role not found",
	"rbac.permission_not_found":        "Permission not found",
	"rbac.role_name_taken":             "Role name already exists",
	"rbac.permission_exists":           "Permission already exists",
	"rbac.system_role_rename":          "System roles cannot be renamed",
	"rbac.system_role_delete":          "System roles cannot be deleted",
	"rbac.role_already_has_permission": "Role already has this permission",
	"rbac.role_missing_permission":     "Role does not have this permission",
	"rbac.user_already_has_role":       "User already has this role",
	"rbac.user_missing_role":           "User does not have this role",
	"rbac.last_role":                   "A user must keep at least one role",
	"rbac.role_in_use":                 "Some users hold only this role",

	"oauth.unknown_provider":               "Unknown OAuth provider",
	"oauth.provider_disabled":              "OAuth provider is not enabled",
	"oauth.exchange_failed":                "Could not complete sign-in with the provider",
	"oauth.state_invalid":                  "OAuth state is invalid or expired",
	"oauth.connection_not_found":           "No linked account for this provider",
	"oauth.provider_already_linked":        "This provider is already linked to your account",
	"oauth.already_linked_to_another_user": "This provider account is linked to another user",
	"oauth.only_auth_method":               "Cannot unlink the only sign-in method; set a password first",
}

var spanish = map[string]string{
	KeyOK:              "OK",
	KeyBadRequest:      "Solicitud incorrecta",
	KeyNotFound:        "No encontrado",
	KeyTooManyRequests: "Demasiadas solicitudes",
	KeyServerBusy:      "Servidor ocupado, inténtalo más tarde",
	KeyTimeout:         "La solicitud ha excedido el tiempo de espera",
	KeyBodyTooLarge:    "El cuerpo de la solicitud es demasiado grande",

	"common.internal_error": "Error interno del servidor",
	"common.invalid_id":     "Identificador no válido",
	"store.duplicate":       "El recurso ya existe",

	"user.invalid_email":        "Correo electrónico no válido",
	"user.password_too_short":   "La contraseña debe tener al menos 8 caracteres",
	"user.not_found":            "Usuario no encontrado",
	"user.email_taken":          "El correo ya está registrado",
	"user.account_disabled":     "La cuenta está desactivada",
	"user.password_already_set": "Esta cuenta ya tiene una contraseña",

	"auth.invalid_credentials":   "Correo o contraseña incorrectos",
	"auth.unauthenticated":       "Se requiere autenticación",
	"auth.invalid_access_token":  "Token de acceso no válido o caducado",
	"auth.refresh_token_invalid": "Token de actualización no válido",
	"auth.refresh_token_revoked": "El token de actualización ha sido revocado",
	"auth.refresh_token_expired": "El token de actualización ha caducado",

	"rbac.not_admin":                   "Se requiere acceso de administrador",
	"rbac.permission_denied":           "Permisos insuficientes",
	"rbac.invalid_role_name":           "Nombre de rol no válido",
	"rbac.invalid_permission_name":     "Los permisos deben tener la forma recurso:acción",
	"rbac.role_not_found":              "Rol no encontrado",
	"rbac.permission_not_found":        "Permiso no encontrado",
	"rbac.role_name_taken":             "El nombre del rol ya existe",
	"rbac.permission_exists":           "El permiso ya existe",
	"rbac.system_role_rename":          "Los roles del sistema no se pueden renombrar",
	"rbac.system_role_delete":          "Los roles del sistema no se pueden eliminar",
	"rbac.role_already_has_permission": "El rol ya tiene este permiso",
	"rbac.role_missing_permission":     "El rol no tiene este permiso",
	"rbac.user_already_has_role":       "El usuario ya tiene este rol",
	"rbac.user_missing_role":           "El usuario no tiene este rol",
	"rbac.last_role":                   "Un usuario debe conservar al menos un rol",
	"rbac.role_in_use":                 "Hay usuarios cuyo único rol es este",

	"oauth.unknown_provider":               "Proveedor OAuth desconocido",
	"oauth.provider_disabled":              "El proveedor OAuth no está habilitado",
	"oauth.exchange_failed":                "No se pudo completar el inicio de sesión con el proveedor",
	"oauth.state_invalid":                  "El estado OAuth no es válido o ha caducado",
	"oauth.connection_not_found":           "No hay ninguna cuenta vinculada para este proveedor",
	"oauth.provider_already_linked":        "Este proveedor ya está vinculado a tu cuenta",
	"oauth.already_linked_to_another_user": "Esta cuenta del proveedor está vinculada a otro usuario",
	"oauth.only_auth_method":               "No puedes desvincular el único método de acceso; establece una contraseña primero",
}
