package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"learnhub-auth/internal/app"
	"learnhub-auth/internal/core/config"
	"learnhub-auth/internal/core/logger"
	"learnhub-auth/internal/core/server"
	"learnhub-auth/internal/transport/http/router"
)

func main() {
	var (
		promote = flag.String("promote", "", "grant the admin role to this email and exit")
		gcOnce  = flag.Bool("gc", false, "purge expired refresh tokens once and exit")
		setup   = flag.Bool("setup", false, "migrate, seed and exit")
	)
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	if *setup {
		cfg.DB.AutoMigrate = true
	}
	log, cleanup := app.NewLogger(cfg, "admin")
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.Close()

	switch {
	case *setup:
		log.Info("schema migrated and catalog seeded")
		return
	case *promote != "":
		u, err := a.Services.RBAC.Promote(ctx, *promote)
		if err != nil {
			log.Error("promote failed", zap.String("email", *promote), zap.Error(err))
			return
		}
		log.Info("promoted", zap.String("userId", u.ID), zap.Strings("roles", u.Roles))
		return
	case *gcOnce:
		n, err := a.Services.Auth.PurgeExpired(ctx)
		if err != nil {
			log.Error("token gc failed", zap.Error(err))
			return
		}
		log.Info("token gc done", zap.Int64("purged", n))
		return
	}

	deps := a.RouterDeps()
	r := router.NewAdminEngine(deps)

	hc := cfg.App.Admin
	addr := server.Addr(hc.Host, hc.Port)
	srv := server.BuildServer(addr, r,
		time.Duration(hc.ReadTimeoutSec)*time.Second,
		time.Duration(hc.WriteTimeoutSec)*time.Second,
		time.Duration(hc.IdleTimeoutSec)*time.Second,
		log,
	)

	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(logger.ToStdLogger(log.Named("cron"), zapcore.DebugLevel))))
	if _, err := c.AddFunc(cfg.Maintenance.TokenGCCron, func() {
		n, err := a.Services.Auth.PurgeExpired(context.Background())
		if err != nil {
			log.Error("token gc failed", zap.Error(err))
			return
		}
		log.Info("token gc done", zap.Int64("purged", n))
	}); err != nil {
		log.Fatal("bad token gc schedule", zap.String("schedule", cfg.Maintenance.TokenGCCron), zap.Error(err))
	}
	c.Start()
	defer c.Stop()

	host4human := hc.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(hc.Port)
	log.Info("admin api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("admin_v1", baseURL+"/admin/v1"),
	)

	errc := make(chan error, 1)
	go func() { errc <- server.StartHTTP(srv, log) }()

	select {
	case err := <-errc:
		if err != nil {
			log.Error("admin api start FAILED", zap.Error(err))
		}
	case <-ctx.Done():
	}
	if err := server.Shutdown(srv, 10*time.Second); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
	log.Info("admin api stopped gracefully")
}
