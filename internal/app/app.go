// Package app wires the process-wide dependencies shared by cmd/api and
// cmd/admin.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"learnhub-auth/internal/core/auth"
	"learnhub-auth/internal/core/cache"
	"learnhub-auth/internal/core/config"
	"learnhub-auth/internal/core/database"
	"learnhub-auth/internal/core/logger"
	"learnhub-auth/internal/events"
	"learnhub-auth/internal/oauth"
	"learnhub-auth/internal/repo"
	"learnhub-auth/internal/service"
	"learnhub-auth/internal/transport/http/handler"
	mdw "learnhub-auth/internal/transport/http/middleware"
	"learnhub-auth/internal/transport/http/router"
	"learnhub-auth/pkg/utils"
)

// App holds the opened resources. Close releases them in reverse order.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Cache    *cache.Cache
	JWT      *auth.JWTer
	Bus      *events.Bus
	Metrics  *prometheus.Registry
	Services *service.Services

	closers []func()
}

// NewLogger builds the process logger tagged with the binary name.
func NewLogger(cfg *config.Config, binary string) (*zap.Logger, func()) {
	return logger.New(cfg.Log,
		zap.String("service", cfg.App.Name),
		zap.String("bin", binary),
		zap.String("env", cfg.App.Env),
	)
}

// New opens the database and redis, migrates when configured and seeds the
// system roles and permission catalog.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Logger:             log,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	a.DB = db
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	}
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	if cfg.DB.AutoMigrate {
		if err := database.AutoMigrate(ctx, db); err != nil {
			a.Close()
			return nil, fmt.Errorf("automigrate: %w", err)
		}
		log.Info("automigrate done")
	}

	a.Cache = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	a.closers = append(a.closers, func() { _ = a.Cache.Close() })

	a.JWT = &auth.JWTer{
		Secret:     []byte(cfg.JWT.Secret),
		Issuer:     cfg.JWT.Issuer,
		TTL:        cfg.JWT.AccessTTL(),
		RefreshTTL: cfg.JWT.RefreshTTL(),
	}

	a.Metrics = prometheus.NewRegistry()
	a.Metrics.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a.Bus = events.NewBus(log)
	a.Bus.Subscribe("", events.NewMetrics(a.Metrics).Handle)
	a.Bus.Subscribe("", events.LogHandler(log.Named("audit")))
	a.closers = append(a.closers, a.Bus.Close)

	a.Services = service.New(service.Deps{
		Users:       repo.NewUserRepo(db),
		Roles:       repo.NewRoleRepo(db),
		Permissions: repo.NewPermissionRepo(db),
		Connections: repo.NewOAuthConnectionRepo(db),
		Tokens:      repo.NewRefreshTokenRepo(db),
		Tx:          repo.NewTransactor(db),
		Hasher:      utils.NewBcryptHasher(cfg.Security.BcryptCost),
		JWT:         a.JWT,
		OAuth:       oauth.NewRegistry(&http.Client{Timeout: 10 * time.Second}, log, oauth.FromConfig(cfg.OAuth)...),
		States:      cache.NewStateStore(a.Cache, cfg.OAuth.StateTTL),
		Bus:         a.Bus,
		Log:         log,
	})

	if err := a.Services.RBAC.Seed(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("seed: %w", err)
	}
	return a, nil
}

// Probes backs /ready with the database and redis.
func (a *App) Probes() []handler.Probe {
	return []handler.Probe{
		{Name: "db", Check: func(ctx context.Context) error { return database.Ping(ctx, a.DB) }},
		{Name: "redis", Check: a.Cache.Ping},
	}
}

// RouterDeps is the engine input. The IP limiter is returned inside it so
// the caller can sweep idle buckets.
func (a *App) RouterDeps() router.Deps {
	sec := a.Config.Security
	return router.Deps{
		Log:       a.Log,
		Config:    a.Config,
		Services:  a.Services,
		JWT:       a.JWT,
		Metrics:   a.Metrics,
		Probes:    a.Probes(),
		IPLimiter: mdw.NewIPLimiter(rate.Limit(sec.AuthRPS), sec.AuthBurst),
	}
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
