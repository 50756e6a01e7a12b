// internal/gateway/app.go
package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tenantgate/pkg/config"
	"tenantgate/pkg/introspect"
	"tenantgate/pkg/middleware"
)

// NewRouter assembles the edge: request-id, panic recovery, tracing, the
// identity middleware, then a reverse proxy to the upstream backend. By the
// time a request reaches the proxy it carries the identity header and (by
// default) no Authorization header.
func NewRouter(cfg config.Config, v introspect.Validator, log *zap.SugaredLogger) (http.Handler, error) {
	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil || target.Host == "" {
		return nil, fmt.Errorf("invalid UPSTREAM_URL %q", cfg.UpstreamURL)
	}
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Errorw("upstream unreachable", "err", err, "path", r.URL.Path)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing())
	r.Use(middleware.Identity(cfg, v, log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Handle("/*", proxy)
	return r, nil
}

// NewValidator builds the configured validator chain: introspection client
// or local JWT validation, wrapped in the outcome cache when a TTL is set.
func NewValidator(cfg config.Config, deps Deps) introspect.Validator {
	var v introspect.Validator
	switch cfg.AuthMode {
	case "jwt":
		v = introspect.NewJWTValidator(cfg.Issuer, cfg.JWKSURL, deps.Log, deps.Metrics)
	default:
		v = introspect.NewClient(cfg.IntrospectionURL, cfg.IntrospectionTimeout, deps.Log, deps.Metrics)
	}
	if cfg.TokenCacheTTL > 0 {
		v = introspect.NewCachedValidator(v, cfg.TokenCacheTTL, deps.Redis, deps.Log, deps.Metrics)
	}
	return v
}

// Deps carries the process-level collaborators into the validator chain.
// Redis may be nil; the cache then falls back to its in-process store.
type Deps struct {
	Log     *zap.SugaredLogger
	Metrics *introspect.Metrics
	Redis   *redis.Client
}
