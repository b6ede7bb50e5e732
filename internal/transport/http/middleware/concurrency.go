package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"learnhub-auth/internal/transport/http/i18n"
	resp "learnhub-auth/internal/transport/http/response"
)

// ConcurrencyLimit caps in-flight requests to protect the database. Requests
// wait for a slot until their context ends.
func ConcurrencyLimit(max int64, w *resp.Writer) gin.HandlerFunc {
	sem := semaphore.NewWeighted(max)
	return func(c *gin.Context) {
		if err := sem.Acquire(c.Request.Context(), 1); err != nil {
			w.Abort(c, http.StatusServiceUnavailable, i18n.KeyServerBusy)
			return
		}
		defer sem.Release(1)
		c.Next()
	}
}
