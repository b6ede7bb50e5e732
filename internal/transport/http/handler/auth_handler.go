package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub-auth/internal/domain"
	"learnhub-auth/internal/service"
	"learnhub-auth/internal/transport/http/ez"
	"learnhub-auth/internal/transport/http/middleware"
	resp "learnhub-auth/internal/transport/http/response"
)

// AuthHandler serves registration, sessions and the caller's own account.
type AuthHandler struct {
	users    *service.UserService
	auth     *service.AuthService
	rbac     *service.RBACService
	w        *resp.Writer
	jar      CookieJar
	verifier middleware.TokenVerifier
	// throttle guards the credential endpoints.
	throttle gin.HandlerFunc
}

func NewAuthHandler(svc *service.Services, w *resp.Writer, jar CookieJar, v middleware.TokenVerifier, throttle gin.HandlerFunc) *AuthHandler {
	if throttle == nil {
		throttle = func(c *gin.Context) { c.Next() }
	}
	return &AuthHandler{users: svc.Users, auth: svc.Auth, rbac: svc.RBAC, w: w, jar: jar, verifier: v, throttle: throttle}
}

type registerIn struct {
	Email    string `json:"email"    binding:"required,max=191"`
	Password string `json:"password" binding:"required,max=128"`
	FullName string `json:"fullName" binding:"max=128"`
	Phone    string `json:"phone"    binding:"max=32"`
}

type loginIn struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshIn struct {
	RefreshToken string `json:"refreshToken"`
}

type logoutIn struct {
	RefreshToken string `json:"refreshToken"`
	LogoutAll    bool   `json:"logoutAll"`
}

type logoutOut struct {
	Revoked int64 `json:"revoked"`
}

type profileIn struct {
	FullName *string `json:"fullName" binding:"omitempty,max=128"`
	Phone    *string `json:"phone"    binding:"omitempty,max=32"`
}

type changePasswordIn struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword"     binding:"required,max=128"`
}

type setPasswordIn struct {
	Password string `json:"password" binding:"required,max=128"`
}

func (h *AuthHandler) MountAPI(public, authed *gin.RouterGroup) {
	ez.Register(public, h.w, ez.Action[registerIn, domain.PublicUser]{
		Method:     http.MethodPost,
		Path:       "/auth/register",
		Binder:     ez.BindJSON,
		Status:     http.StatusCreated,
		Middleware: []gin.HandlerFunc{h.throttle},
		Handler:    h.register,
	})
	ez.Register(public, h.w, ez.Action[loginIn, *service.Session]{
		Method:     http.MethodPost,
		Path:       "/auth/login",
		Binder:     ez.BindJSON,
		Middleware: []gin.HandlerFunc{h.throttle},
		Handler:    h.login,
	})
	ez.Register(public, h.w, ez.Action[ez.Empty, *service.Session]{
		Method:     http.MethodPost,
		Path:       "/auth/refresh",
		Binder:     ez.BindNone,
		Middleware: []gin.HandlerFunc{h.throttle},
		Handler:    h.refresh,
	})
	ez.Register(public, h.w, ez.Action[ez.Empty, logoutOut]{
		Method:     http.MethodPost,
		Path:       "/auth/logout",
		Binder:     ez.BindNone,
		Middleware: []gin.HandlerFunc{middleware.OptionalAuthenticate(h.verifier)},
		Handler:    h.logout,
	})

	ez.Register(authed, h.w, ez.Action[ez.Empty, domain.PublicUser]{
		Method:  http.MethodGet,
		Path:    "/auth/me",
		Binder:  ez.BindNone,
		Handler: h.me,
	})
	ez.Register(authed, h.w, ez.Action[profileIn, domain.PublicUser]{
		Method:  http.MethodPut,
		Path:    "/auth/me",
		Binder:  ez.BindJSON,
		Handler: h.updateProfile,
	})
	ez.Register(authed, h.w, ez.Action[ez.Empty, []string]{
		Method: http.MethodGet,
		Path:   "/auth/me/permissions",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *ez.Empty) ([]string, error) {
			return h.rbac.GetUserPermissions(c.Request.Context(), actor(c), actor(c))
		},
	})
	ez.Register(authed, h.w, ez.Action[changePasswordIn, ez.Empty]{
		Method:     http.MethodPost,
		Path:       "/auth/password/change",
		Binder:     ez.BindJSON,
		Middleware: []gin.HandlerFunc{h.throttle},
		Handler:    h.changePassword,
	})
	ez.Register(authed, h.w, ez.Action[setPasswordIn, ez.Empty]{
		Method:  http.MethodPost,
		Path:    "/auth/password/set",
		Binder:  ez.BindJSON,
		Handler: h.setPassword,
	})
}

func (h *AuthHandler) register(c *gin.Context, in *registerIn) (domain.PublicUser, error) {
	u, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		Email:    in.Email,
		Password: in.Password,
		FullName: in.FullName,
		Phone:    in.Phone,
	})
	if err != nil {
		return domain.PublicUser{}, err
	}
	return u.Public(), nil
}

func (h *AuthHandler) login(c *gin.Context, in *loginIn) (*service.Session, error) {
	s, err := h.auth.Login(c.Request.Context(), in.Email, in.Password, meta(c))
	if err != nil {
		return nil, err
	}
	h.jar.Set(c, s.RefreshToken, s.RefreshExpiresAt)
	return s, nil
}

// refresh reads the cookie first and falls back to {"refreshToken": ...}.
func (h *AuthHandler) refresh(c *gin.Context, _ *ez.Empty) (*service.Session, error) {
	raw := h.jar.Read(c)
	if raw == "" {
		var in refreshIn
		if err := bindOptionalJSON(c, &in); err != nil {
			return nil, domain.ErrRefreshTokenInvalid
		}
		raw = in.RefreshToken
	}
	if raw == "" {
		return nil, domain.ErrRefreshTokenInvalid
	}
	s, err := h.auth.Refresh(c.Request.Context(), raw, meta(c))
	if err != nil {
		if domain.KindOf(err) == domain.KindUnauthorized {
			h.jar.Clear(c)
		}
		return nil, err
	}
	h.jar.Set(c, s.RefreshToken, s.RefreshExpiresAt)
	return s, nil
}

func (h *AuthHandler) logout(c *gin.Context, _ *ez.Empty) (logoutOut, error) {
	var in logoutIn
	_ = bindOptionalJSON(c, &in)
	raw := h.jar.Read(c)
	if raw == "" {
		raw = in.RefreshToken
	}
	// the presented token is revoked even when logoutAll is refused
	if err := h.auth.Logout(c.Request.Context(), raw); err != nil {
		return logoutOut{}, err
	}
	h.jar.Clear(c)

	if !in.LogoutAll {
		return logoutOut{}, nil
	}
	uid := actor(c)
	if uid == "" {
		return logoutOut{}, domain.ErrUnauthenticated
	}
	n, err := h.auth.LogoutAll(c.Request.Context(), uid)
	return logoutOut{Revoked: n}, err
}

func (h *AuthHandler) me(c *gin.Context, _ *ez.Empty) (domain.PublicUser, error) {
	u, err := h.users.GetProfile(c.Request.Context(), actor(c))
	if err != nil {
		return domain.PublicUser{}, err
	}
	return u.Public(), nil
}

func (h *AuthHandler) updateProfile(c *gin.Context, in *profileIn) (domain.PublicUser, error) {
	u, err := h.users.UpdateProfile(c.Request.Context(), actor(c), service.ProfileUpdate{
		FullName: in.FullName,
		Phone:    in.Phone,
	})
	if err != nil {
		return domain.PublicUser{}, err
	}
	return u.Public(), nil
}

// Password changes revoke every session, so the cookie goes too.
func (h *AuthHandler) changePassword(c *gin.Context, in *changePasswordIn) (ez.Empty, error) {
	if err := h.users.ChangePassword(c.Request.Context(), actor(c), in.CurrentPassword, in.NewPassword); err != nil {
		return ez.Empty{}, err
	}
	h.jar.Clear(c)
	return ez.Empty{}, nil
}

func (h *AuthHandler) setPassword(c *gin.Context, in *setPasswordIn) (ez.Empty, error) {
	if err := h.users.SetPassword(c.Request.Context(), actor(c), in.Password); err != nil {
		return ez.Empty{}, err
	}
	h.jar.Clear(c)
	return ez.Empty{}, nil
}
