// Package handler holds the HTTP endpoints. Each handler mounts its routes
// on the groups the router hands it and delegates to the services.
package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"learnhub-auth/internal/core/config"
	"learnhub-auth/internal/domain"
	"learnhub-auth/internal/transport/http/middleware"
)

func meta(c *gin.Context) domain.ClientMeta {
	return domain.ClientMeta{UserAgent: c.Request.UserAgent(), IP: c.ClientIP()}
}

func actor(c *gin.Context) string { return middleware.UserID(c) }

// bindOptionalJSON accepts an empty body.
func bindOptionalJSON(c *gin.Context, v any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type idURI struct {
	ID string `uri:"id" binding:"required"`
}

type providerURI struct {
	Provider string `uri:"provider" binding:"required"`
}

// CookieJar writes the refresh token cookie with the configured attributes.
type CookieJar struct {
	cfg config.Cookie
}

func NewCookieJar(cfg config.Cookie) CookieJar {
	if cfg.Name == "" {
		cfg.Name = "refresh_token"
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	return CookieJar{cfg: cfg}
}

func (j CookieJar) sameSite() http.SameSite {
	switch strings.ToLower(j.cfg.SameSite) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

func (j CookieJar) write(c *gin.Context, value string, expires time.Time, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     j.cfg.Name,
		Value:    value,
		Path:     j.cfg.Path,
		Domain:   j.cfg.Domain,
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   j.cfg.Secure || j.sameSite() == http.SameSiteNoneMode,
		SameSite: j.sameSite(),
	})
}

func (j CookieJar) Set(c *gin.Context, token string, expires time.Time) {
	maxAge := int(time.Until(expires).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	j.write(c, token, expires, maxAge)
}

func (j CookieJar) Clear(c *gin.Context) {
	j.write(c, "", time.Unix(0, 0), -1)
}

func (j CookieJar) Read(c *gin.Context) string {
	v, err := c.Cookie(j.cfg.Name)
	if err != nil {
		return ""
	}
	return v
}
