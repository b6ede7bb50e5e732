package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"learnhub-auth/internal/core/auth"
	"learnhub-auth/internal/domain"
	resp "learnhub-auth/internal/transport/http/response"
)

const (
	CtxUserID = "userId"
	CtxClaims = "claims"
)

type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

// Authenticate requires a valid bearer access token. It only proves identity;
// authorisation is left to the role and permission guards.
func Authenticate(v TokenVerifier, w *resp.Writer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			w.Abort(c, http.StatusUnauthorized, string(domain.KeyUnauthenticated))
			return
		}
		claims, err := v.VerifyAccessToken(strings.TrimSpace(strings.TrimPrefix(ah, "Bearer ")))
		if err != nil {
			w.Abort(c, http.StatusUnauthorized, string(domain.KeyInvalidAccessToken))
			return
		}
		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxClaims, claims)
		c.Next()
	}
}

func UserID(c *gin.Context) string { return c.GetString(CtxUserID) }

func Claims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(CtxClaims); ok {
		if cl, ok := v.(*auth.Claims); ok {
			return cl
		}
	}
	return nil
}

// OptionalAuthenticate records the caller when a valid bearer token is
// present and lets anonymous requests through.
func OptionalAuthenticate(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if strings.HasPrefix(ah, "Bearer ") {
			if claims, err := v.VerifyAccessToken(strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))); err == nil {
				c.Set(CtxUserID, claims.UserID)
				c.Set(CtxClaims, claims)
			}
		}
		c.Next()
	}
}
