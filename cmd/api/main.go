package main

import (
	"context"
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
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := app.NewLogger(cfg, "api")
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}
	defer a.Close()

	deps := a.RouterDeps()
	r := router.NewAPIEngine(deps)

	hc := cfg.App.HTTP
	addr := server.Addr(hc.Host, hc.Port)
	srv := server.BuildServer(addr, r,
		time.Duration(hc.ReadTimeoutSec)*time.Second,
		time.Duration(hc.WriteTimeoutSec)*time.Second,
		time.Duration(hc.IdleTimeoutSec)*time.Second,
		log,
	)

	// idle per-IP buckets
	c := cron.New()
	_, _ = c.AddFunc("@every 5m", func() {
		if n := deps.IPLimiter.Sweep(time.Now().Add(-10 * time.Minute)); n > 0 {
			log.Debug("rate limiter swept", zap.Int("buckets", n))
		}
	})
	c.Start()
	defer c.Stop()

	host4human := hc.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(hc.Port)
	log.Info("auth api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/api/v1"),
	)

	errc := make(chan error, 1)
	go func() { errc <- server.StartHTTP(srv, log) }()

	select {
	case err := <-errc:
		if err != nil {
			log.Error("auth api start FAILED", zap.Error(err))
		}
	case <-ctx.Done():
	}
	if err := server.Shutdown(srv, 10*time.Second); err != nil {
		log.Warn("shutdown", zap.Error(err))
	}
	log.Info("auth api stopped gracefully")
}
