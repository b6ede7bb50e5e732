package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// Probe reports whether one dependency is usable.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler serves liveness and readiness. Readiness runs every probe
// concurrently under one deadline.
type HealthHandler struct {
	probes  []Probe
	timeout time.Duration
}

func NewHealthHandler(timeout time.Duration, probes ...Probe) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{probes: probes, timeout: timeout}
}

func (h *HealthHandler) Mount(r gin.IRoutes) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/ready", h.ready)
}

func (h *HealthHandler) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	results := make([]string, len(h.probes))
	var g errgroup.Group
	for i, p := range h.probes {
		g.Go(func() error {
			if err := p.Check(ctx); err != nil {
				results[i] = "down"
				return err
			}
			results[i] = "ok"
			return nil
		})
	}
	err := g.Wait()

	checks := make(gin.H, len(h.probes))
	for i, p := range h.probes {
		checks[p.Name] = results[i]
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": err == nil, "checks": checks})
}
