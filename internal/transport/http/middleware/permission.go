package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub-auth/internal/domain"
	"learnhub-auth/internal/service"
	resp "learnhub-auth/internal/transport/http/response"
)

// Authorizer answers role and permission questions against live data, so a
// revoked grant takes effect before the caller's access token expires.
type Authorizer interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
	Check(ctx context.Context, userID string, names []string, mode service.Match) error
}

// RequireAdmin ignores the roles claim and asks the store.
func RequireAdmin(a Authorizer, w *resp.Writer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := a.IsAdmin(c.Request.Context(), UserID(c))
		if err != nil {
			w.Fail(c, err)
			return
		}
		if !ok {
			w.Abort(c, http.StatusForbidden, string(domain.KeyNotAdmin))
			return
		}
		c.Next()
	}
}

func requirePermissions(a Authorizer, w *resp.Writer, mode service.Match, names []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := a.Check(c.Request.Context(), UserID(c), names, mode); err != nil {
			w.Fail(c, err)
			return
		}
		c.Next()
	}
}

func RequirePermission(a Authorizer, w *resp.Writer, name string) gin.HandlerFunc {
	return requirePermissions(a, w, service.MatchAll, []string{name})
}

func RequireAllPermissions(a Authorizer, w *resp.Writer, names ...string) gin.HandlerFunc {
	return requirePermissions(a, w, service.MatchAll, names)
}

func RequireAnyPermission(a Authorizer, w *resp.Writer, names ...string) gin.HandlerFunc {
	return requirePermissions(a, w, service.MatchAny, names)
}
