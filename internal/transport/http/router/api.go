package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"learnhub-auth/internal/core/config"
	"learnhub-auth/internal/core/server"
	"learnhub-auth/internal/service"
	"learnhub-auth/internal/transport/http/handler"
	"learnhub-auth/internal/transport/http/i18n"
	mdw "learnhub-auth/internal/transport/http/middleware"
	resp "learnhub-auth/internal/transport/http/response"
)

// Deps is what both engines are built from.
type Deps struct {
	Log      *zap.Logger
	Config   *config.Config
	Services *service.Services
	JWT      mdw.TokenVerifier
	Writer   *resp.Writer
	// Metrics is registered with HTTP collectors and served on /metrics.
	Metrics *prometheus.Registry
	Probes  []handler.Probe
	// IPLimiter throttles credential endpoints; swept by the caller.
	IPLimiter *mdw.IPLimiter
}

func (d *Deps) defaults() {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Config == nil {
		d.Config = config.Default()
	}
	if d.Writer == nil {
		d.Writer = resp.NewWriter(i18n.New(), d.Log)
	}
	if d.Metrics == nil {
		d.Metrics = prometheus.NewRegistry()
	}
	if d.IPLimiter == nil {
		sec := d.Config.Security
		d.IPLimiter = mdw.NewIPLimiter(rate.Limit(sec.AuthRPS), sec.AuthBurst)
	}
}

// base is the engine with the shared middleware chain, health and metrics.
func base(d *Deps, hc config.HTTP, metricsPrefix string) *gin.Engine {
	mode := gin.ReleaseMode
	if d.Config.App.Env == "local" || d.Config.App.Env == "dev" {
		mode = gin.DebugMode
	}
	r := server.NewRouter(d.Log, server.Options{
		Mode:        mode,
		CORSOrigins: hc.CORSOrigins,
		Recovery:    mdw.Recovered(d.Writer),
	})

	sec := d.Config.Security
	timeout := hc.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	reg := prometheus.WrapRegistererWithPrefix(metricsPrefix, d.Metrics)
	r.Use(
		mdw.RequestID(),
		d.Writer.T.Middleware(),
		mdw.AccessLog(d.Log.Named("access")),
		mdw.Metrics(reg),
		mdw.RateLimit(rate.Limit(sec.GlobalRPS), sec.GlobalBurst, d.Writer),
		mdw.ConcurrencyLimit(sec.MaxInFlight, d.Writer),
		mdw.MaxBodyBytes(sec.MaxBodyBytes, d.Writer),
		mdw.Timeout(timeout, d.Writer),
	)
	r.NoRoute(func(c *gin.Context) { d.Writer.Abort(c, http.StatusNotFound, i18n.KeyNotFound) })

	handler.NewHealthHandler(2*time.Second, d.Probes...).Mount(r)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{})))
	return r
}

// NewAPIEngine is the public server: auth, account, oauth and the
// admin-gated role surface under /api/v1.
func NewAPIEngine(d Deps) *gin.Engine {
	d.defaults()
	r := base(&d, d.Config.App.HTTP, "api_")

	jar := handler.NewCookieJar(d.Config.Cookie)
	throttle := mdw.RateLimitPerIP(d.IPLimiter, d.Writer)

	public := r.Group("/api/v1")
	authed := public.Group("", mdw.Authenticate(d.JWT, d.Writer))
	admin := authed.Group("", mdw.RequireAdmin(d.Services.RBAC, d.Writer))

	rbac := handler.NewRBACHandler(d.Services, d.Writer)
	mountAPI(public, authed, []APIModule{
		handler.NewAuthHandler(d.Services, d.Writer, jar, d.JWT, throttle),
		handler.NewOAuthHandler(d.Services, d.Writer, jar, throttle),
		rbac,
	})
	mountAdmin(admin, []AdminModule{rbac})
	return r
}
