// cmd/gateway-service/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"tenantgate/internal/gateway"
	"tenantgate/pkg/config"
	"tenantgate/pkg/db"
	"tenantgate/pkg/introspect"
	"tenantgate/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	if err := cfg.ApplyRealm(); err != nil {
		log.Fatalw("realm config", "err", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalw("config", "err", err)
	}
	if cfg.UpstreamURL == "" {
		log.Fatalw("config", "err", "UPSTREAM_URL not set")
	}

	rdb := db.MustRedis(cfg, log)
	metrics := introspect.NewMetrics(prometheus.DefaultRegisterer)
	v := gateway.NewValidator(cfg, gateway.Deps{Log: log, Metrics: metrics, Redis: rdb})

	r, err := gateway.NewRouter(cfg, v, log)
	if err != nil {
		log.Fatalw("router", "err", err)
	}

	srv := &http.Server{Addr: cfg.GatewayAddr, Handler: r}
	go func() {
		log.Infow("gateway-service listening", "addr", cfg.GatewayAddr, "upstream", cfg.UpstreamURL, "auth_mode", cfg.AuthMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("gateway-service stopped")
}
