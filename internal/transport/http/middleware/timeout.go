package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"learnhub-auth/internal/transport/http/i18n"
	resp "learnhub-auth/internal/transport/http/response"
)

// Timeout bounds the request context. Handlers observe it through ctx; the
// 504 is written only if nothing was written yet.
func Timeout(d time.Duration, w *resp.Writer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			w.Abort(c, http.StatusGatewayTimeout, i18n.KeyTimeout)
		}
	}
}
