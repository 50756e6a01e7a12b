// cmd/sync-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tenantgate/internal/encoder"
	"tenantgate/internal/jobs"
	"tenantgate/internal/reconciler"
	"tenantgate/pkg/config"
	"tenantgate/pkg/db"
	"tenantgate/pkg/directory"
	"tenantgate/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	if err := cfg.ApplyRealm(); err != nil {
		log.Fatalw("realm config", "err", err)
	}
	if err := cfg.Mapping.Validate(); err != nil {
		log.Fatalw("config", "err", err)
	}

	var store directory.Store
	if pool := db.MustConnect(cfg, log); pool != nil {
		if err := directory.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		store = directory.NewPostgresStore(pool, log)
	} else {
		store = directory.NewMemoryStore()
	}

	enc := encoder.New(store, cfg.Mapping, log, prometheus.DefaultRegisterer)
	rec := reconciler.New(store, cfg.Mapping, log, prometheus.DefaultRegisterer)
	pol := jobs.RetryPolicy{MaxAttempts: cfg.RetryMaxAttempts, BackoffBase: cfg.RetryBackoffBase}

	ctx, cancel := context.WithCancel(context.Background())
	go jobs.RunPeriodic(ctx, "encoder", cfg.SyncInterval, pol, log, enc.Sync)
	go jobs.RunPeriodic(ctx, "reconciler", cfg.ReconcileInterval, pol, log, rec.Cycle)

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.SyncAddr, Handler: r}
	go func() {
		log.Infow("sync-service listening", "addr", cfg.SyncAddr,
			"sync_interval", cfg.SyncInterval, "reconcile_interval", cfg.ReconcileInterval)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	cancel()
	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	_ = srv.Shutdown(sctx)
	fmt.Println("sync-service stopped")
}
