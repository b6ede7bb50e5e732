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

// RBACHandler is the role and permission admin surface. The admin guard
// runs in front of it and every service call checks again.
type RBACHandler struct {
	rbac *service.RBACService
	w    *resp.Writer
}

func NewRBACHandler(svc *service.Services, w *resp.Writer) *RBACHandler {
	return &RBACHandler{rbac: svc.RBAC, w: w}
}

func (h *RBACHandler) need(name string) []gin.HandlerFunc {
	return []gin.HandlerFunc{middleware.RequirePermission(h.rbac, h.w, name)}
}

type roleIn struct {
	Name        string `json:"name"        binding:"required,max=64"`
	Description string `json:"description" binding:"max=255"`
}

type roleUpdateIn struct {
	ID          string  `uri:"id"           json:"-"`
	Name        *string `json:"name"        binding:"omitempty,max=64"`
	Description *string `json:"description" binding:"omitempty,max=255"`
}

type rolePermissionIn struct {
	ID         string `uri:"id"         json:"-"`
	Permission string `json:"permission" binding:"required"`
}

type rolePermissionURI struct {
	ID         string `uri:"id"         binding:"required"`
	Permission string `uri:"permission" binding:"required"`
}

type setPermissionsIn struct {
	ID            string   `uri:"id"            json:"-"`
	PermissionIDs []string `json:"permissionIds"`
}

type userRoleIn struct {
	ID   string `uri:"id"   json:"-"`
	Role string `json:"role" binding:"required"`
}

type userRoleURI struct {
	ID   string `uri:"id"   binding:"required"`
	Role string `uri:"role" binding:"required"`
}

type permissionIn struct {
	Name        string `json:"name"        binding:"required,max=128"`
	Description string `json:"description" binding:"max=255"`
}

// MountAdmin registers the admin routes on g. Callers put the admin guard on g.
func (h *RBACHandler) MountAdmin(g *gin.RouterGroup) {
	ez.Register(g, h.w, ez.Action[ez.Empty, []domain.Role]{
		Method:     http.MethodGet,
		Path:       "/roles",
		Middleware: h.need("roles:read"),
		Binder:     ez.BindNone,
		Handler: func(c *gin.Context, _ *ez.Empty) ([]domain.Role, error) {
			return h.rbac.ListRoles(c.Request.Context(), actor(c))
		},
	})
	ez.Register(g, h.w, ez.Action[roleIn, *domain.Role]{
		Method:     http.MethodPost,
		Path:       "/roles",
		Middleware: h.need("roles:write"),
		Binder:     ez.BindJSON,
		Status:     http.StatusCreated,
		Handler: func(c *gin.Context, in *roleIn) (*domain.Role, error) {
			return h.rbac.CreateRole(c.Request.Context(), actor(c), in.Name, in.Description)
		},
	})
	ez.Register(g, h.w, ez.Action[idURI, *domain.Role]{
		Method:     http.MethodGet,
		Path:       "/roles/:id",
		Middleware: h.need("roles:read"),
		Binder:     ez.BindURI,
		Handler: func(c *gin.Context, in *idURI) (*domain.Role, error) {
			return h.rbac.GetRole(c.Request.Context(), actor(c), in.ID)
		},
	})
	ez.Register(g, h.w, ez.Action[roleUpdateIn, *domain.Role]{
		Method:     http.MethodPut,
		Path:       "/roles/:id",
		Middleware: h.need("roles:write"),
		Binder:     ez.BindURIJSON,
		Handler: func(c *gin.Context, in *roleUpdateIn) (*domain.Role, error) {
			return h.rbac.UpdateRole(c.Request.Context(), actor(c), in.ID, service.RoleUpdate{
				Name:        in.Name,
				Description: in.Description,
			})
		},
	})
	ez.Register(g, h.w, ez.Action[idURI, ez.Empty]{
		Method:     http.MethodDelete,
		Path:       "/roles/:id",
		Middleware: h.need("roles:write"),
		Binder:     ez.BindURI,
		Handler: func(c *gin.Context, in *idURI) (ez.Empty, error) {
			return ez.Empty{}, h.rbac.DeleteRole(c.Request.Context(), actor(c), in.ID)
		},
	})

	ez.Register(g, h.w, ez.Action[idURI, []domain.Permission]{
		Method:     http.MethodGet,
		Path:       "/roles/:id/permissions",
		Middleware: h.need("roles:read"),
		Binder:     ez.BindURI,
		Handler: func(c *gin.Context, in *idURI) ([]domain.Permission, error) {
			return h.rbac.GetRolePermissions(c.Request.Context(), actor(c), in.ID)
		},
	})
	ez.Register(g, h.w, ez.Action[rolePermissionIn, ez.Empty]{
		Method:     http.MethodPost,
		Path:       "/roles/:id/permissions",
		Middleware: h.need("roles:write"),
		Binder:     ez.BindURIJSON,
		Status:     http.StatusCreated,
		Handler: func(c *gin.Context, in *rolePermissionIn) (ez.Empty, error) {
			return ez.Empty{}, h.rbac.AssignPermissionToRole(c.Request.Context(), actor(c), in.ID, in.Permission)
		},
	})
	ez.Register(g, h.w, ez.Action[setPermissionsIn, []domain.Permission]{
		Method:     http.MethodPut,
		Path:       "/roles/:id/permissions",
		Middleware: h.need("roles:write"),
		Binder:     ez.BindURIJSON,
		Handler: func(c *gin.Context, in *setPermissionsIn) ([]domain.Permission, error) {
			return h.rbac.SetRolePermissions(c.Request.Context(), actor(c), in.ID, in.PermissionIDs)
		},
	})
	ez.Register(g, h.w, ez.Action[rolePermissionURI, ez.Empty]{
		Method:     http.MethodDelete,
		Path:       "/roles/:id/permissions/:permission",
		Middleware: h.need("roles:write"),
		Binder:     ez.BindURI,
		Handler: func(c *gin.Context, in *rolePermissionURI) (ez.Empty, error) {
			return ez.Empty{}, h.rbac.RemovePermissionFromRole(c.Request.Context(), actor(c), in.ID, in.Permission)
		},
	})

	ez.Register(g, h.w, ez.Action[userRoleIn, ez.Empty]{
		Method:     http.MethodPost,
		Path:       "/users/:id/roles",
		Middleware: []gin.HandlerFunc{middleware.RequireAllPermissions(h.rbac, h.w, "users:write", "roles:read")},
		Binder:     ez.BindURIJSON,
		Status:     http.StatusCreated,
		Handler: func(c *gin.Context, in *userRoleIn) (ez.Empty, error) {
			return ez.Empty{}, h.rbac.AssignRoleToUser(c.Request.Context(), actor(c), in.ID, in.Role)
		},
	})
	ez.Register(g, h.w, ez.Action[userRoleURI, ez.Empty]{
		Method:     http.MethodDelete,
		Path:       "/users/:id/roles/:role",
		Middleware: []gin.HandlerFunc{middleware.RequireAllPermissions(h.rbac, h.w, "users:write", "roles:read")},
		Binder:     ez.BindURI,
		Handler: func(c *gin.Context, in *userRoleURI) (ez.Empty, error) {
			return ez.Empty{}, h.rbac.RemoveRoleFromUser(c.Request.Context(), actor(c), in.ID, in.Role)
		},
	})

	ez.Register(g, h.w, ez.Action[ez.Empty, []domain.Permission]{
		Method:     http.MethodGet,
		Path:       "/permissions",
		Middleware: []gin.HandlerFunc{middleware.RequireAnyPermission(h.rbac, h.w, "permissions:read", "roles:write")},
		Binder:     ez.BindNone,
		Handler: func(c *gin.Context, _ *ez.Empty) ([]domain.Permission, error) {
			return h.rbac.ListPermissions(c.Request.Context(), actor(c))
		},
	})
	ez.Register(g, h.w, ez.Action[permissionIn, *domain.Permission]{
		Method:     http.MethodPost,
		Path:       "/permissions",
		Middleware: h.need("permissions:write"),
		Binder:     ez.BindJSON,
		Status:     http.StatusCreated,
		Handler: func(c *gin.Context, in *permissionIn) (*domain.Permission, error) {
			return h.rbac.CreatePermission(c.Request.Context(), actor(c), in.Name, in.Description)
		},
	})
}

// MountAPI registers routes any signed-in user may call; the service
// decides between self and admin access.
func (h *RBACHandler) MountAPI(_, authed *gin.RouterGroup) {
	ez.Register(authed, h.w, ez.Action[idURI, []string]{
		Method: http.MethodGet,
		Path:   "/users/:id/permissions",
		Binder: ez.BindURI,
		Handler: func(c *gin.Context, in *idURI) ([]string, error) {
			return h.rbac.GetUserPermissions(c.Request.Context(), middleware.UserID(c), in.ID)
		},
	})
}
