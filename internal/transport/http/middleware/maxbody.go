package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub-auth/internal/transport/http/i18n"
	resp "learnhub-auth/internal/transport/http/response"
)

// MaxBodyBytes rejects declared oversize bodies up front and caps the rest
// while they are read; ez maps the read error to 413.
func MaxBodyBytes(n int64, w *resp.Writer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			w.Abort(c, http.StatusRequestEntityTooLarge, i18n.KeyBodyTooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
