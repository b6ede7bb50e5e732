package router

import (
	"github.com/gin-gonic/gin"

	"learnhub-auth/internal/transport/http/handler"
	mdw "learnhub-auth/internal/transport/http/middleware"
)

// NewAdminEngine is the internal back-office server. Everything under
// /admin/v1 requires a live admin.
func NewAdminEngine(d Deps) *gin.Engine {
	d.defaults()
	r := base(&d, d.Config.App.Admin, "admin_")

	admin := r.Group("/admin/v1",
		mdw.Authenticate(d.JWT, d.Writer),
		mdw.RequireAdmin(d.Services.RBAC, d.Writer),
	)
	mountAdmin(admin, []AdminModule{
		handler.NewAdminHandler(d.Services, d.Writer),
		handler.NewRBACHandler(d.Services, d.Writer),
	})
	return r
}
