package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub-auth/internal/service"
	"learnhub-auth/internal/transport/http/ez"
	"learnhub-auth/internal/transport/http/middleware"
	resp "learnhub-auth/internal/transport/http/response"
)

// AdminHandler is user management for administrators.
type AdminHandler struct {
	users *service.UserService
	authz middleware.Authorizer
	w     *resp.Writer
}

func NewAdminHandler(svc *service.Services, w *resp.Writer) *AdminHandler {
	return &AdminHandler{users: svc.Users, authz: svc.RBAC, w: w}
}

type listQ struct {
	Page int `form:"page,default=1"`
	Size int `form:"size,default=20"`
}

type deactivateOut struct {
	ID string `json:"id"`
}

// MountAdmin expects g to be admin-guarded already; each route also needs
// its users permission.
func (h *AdminHandler) MountAdmin(g *gin.RouterGroup) {
	ez.Register(g, h.w, ez.Action[listQ, *service.UserPage]{
		Method:     http.MethodGet,
		Path:       "/users",
		Middleware: []gin.HandlerFunc{middleware.RequirePermission(h.authz, h.w, "users:read")},
		Binder:     ez.BindQuery,
		Handler: func(c *gin.Context, in *listQ) (*service.UserPage, error) {
			return h.users.ListUsers(c.Request.Context(), actor(c), in.Page, in.Size)
		},
	})
	ez.Register(g, h.w, ez.Action[idURI, deactivateOut]{
		Method:     http.MethodPost,
		Path:       "/users/:id/deactivate",
		Middleware: []gin.HandlerFunc{middleware.RequirePermission(h.authz, h.w, "users:write")},
		Binder:     ez.BindURI,
		Handler: func(c *gin.Context, in *idURI) (deactivateOut, error) {
			if err := h.users.Deactivate(c.Request.Context(), actor(c), in.ID); err != nil {
				return deactivateOut{}, err
			}
			return deactivateOut{ID: in.ID}, nil
		},
	})
}
