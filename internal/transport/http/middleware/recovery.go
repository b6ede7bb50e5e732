package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"learnhub-auth/internal/domain"
	resp "learnhub-auth/internal/transport/http/response"
)

// Recovered answers a recovered panic with the standard 500 envelope. The
// panic itself is logged by the zap recovery middleware that calls it.
func Recovered(w *resp.Writer) gin.RecoveryFunc {
	return func(c *gin.Context, _ any) {
		w.Abort(c, http.StatusInternalServerError, string(domain.KeyInternal))
	}
}
