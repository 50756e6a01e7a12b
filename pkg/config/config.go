// pkg/config/config.go
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMisconfiguredPrefix is returned by Validate when the synthetic group
// prefixes are empty or ambiguous. It is fatal at startup.
var ErrMisconfiguredPrefix = errors.New("misconfigured group prefix")

// Mapping holds the per-realm attribute/prefix configuration shared by the
// claims extractor, the claim encoder and the reconciler.
type Mapping struct {
	OrgAttribute     string `yaml:"orgAttributeName"`
	AccountAttribute string `yaml:"accountAttributeName"`
	OrgPrefix        string `yaml:"orgGroupPrefix"`
	AccountPrefix    string `yaml:"accountGroupPrefix"`
}

// Validate enforces the prefix invariants: both prefixes non-empty and
// mutually non-overlapping, so prefix matching stays unambiguous and
// extraction strips exactly len(prefix) bytes.
func (m Mapping) Validate() error {
	if m.OrgPrefix == "" || m.AccountPrefix == "" {
		return fmt.Errorf("%w: prefix must not be empty", ErrMisconfiguredPrefix)
	}
	if strings.HasPrefix(m.OrgPrefix, m.AccountPrefix) || strings.HasPrefix(m.AccountPrefix, m.OrgPrefix) {
		return fmt.Errorf("%w: org prefix %q and account prefix %q overlap", ErrMisconfiguredPrefix, m.OrgPrefix, m.AccountPrefix)
	}
	if m.OrgAttribute == "" || m.AccountAttribute == "" {
		return fmt.Errorf("%w: source attribute names must not be empty", ErrMisconfiguredPrefix)
	}
	return nil
}

type Config struct {
	Env         string
	GatewayAddr string // gateway-service
	SyncAddr    string // sync-service health/metrics listener

	// Upstream backend the gateway forwards authenticated requests to.
	UpstreamURL string

	// Token validation. Mode "introspect" calls the external introspection
	// authority; mode "jwt" validates bearers locally against a JWKS endpoint.
	AuthMode             string
	IntrospectionURL     string
	IntrospectionTimeout time.Duration
	Issuer               string
	JWKSURL              string
	TokenCacheTTL        time.Duration

	// Identity header construction.
	IdentityHeader     string
	Capability         string
	AdminGroup         string
	DuplicateRootOrgID bool
	StripAuthorization bool

	// Realm / claim mapping.
	Realm     string
	RealmFile string
	Mapping   Mapping

	// Background jobs.
	ReconcileInterval time.Duration
	SyncInterval      time.Duration
	RetryMaxAttempts  int
	RetryBackoffBase  time.Duration

	// Redis & Postgres
	RedisURL    string
	DatabaseURL string
}

func Load() Config {
	_ = godotenv.Load()
	cfg := Config{
		Env:                  env("TENANTGATE_ENV", "dev"),
		GatewayAddr:          env("TENANTGATE_HTTP_ADDR", ":8080"),
		SyncAddr:             env("TENANTGATE_SYNC_ADDR", ":8081"),
		UpstreamURL:          env("UPSTREAM_URL", ""),
		AuthMode:             env("AUTH_MODE", "introspect"),
		IntrospectionURL:     env("INTROSPECTION_URL", ""),
		IntrospectionTimeout: envDur("INTROSPECTION_TIMEOUT_MS", 2000) * time.Millisecond,
		Issuer:               env("OIDC_ISSUER", ""),
		JWKSURL:              env("JWKS_URL", ""),
		TokenCacheTTL:        envDur("TOKEN_CACHE_TTL_SEC", 60) * time.Second,
		IdentityHeader:       env("IDENTITY_HEADER", "x-rh-identity"),
		Capability:           env("ENTITLEMENT_CAPABILITY", "cost_management"),
		AdminGroup:           env("ADMIN_GROUP", ""),
		DuplicateRootOrgID:   envBool("DUPLICATE_ROOT_ORG_ID", true),
		StripAuthorization:   envBool("STRIP_AUTHORIZATION", true),
		Realm:                env("REALM", ""),
		RealmFile:            env("REALM_FILE", ""),
		Mapping: Mapping{
			OrgAttribute:     env("ORG_ATTRIBUTE_NAME", "org_id"),
			AccountAttribute: env("ACCOUNT_ATTRIBUTE_NAME", "account_number"),
			OrgPrefix:        env("ORG_GROUP_PREFIX", "cost-mgmt-org-"),
			AccountPrefix:    env("ACCOUNT_GROUP_PREFIX", "cost-mgmt-account-"),
		},
		ReconcileInterval: envDur("RECONCILE_INTERVAL_SECONDS", 900) * time.Second,
		SyncInterval:      envDur("SYNC_INTERVAL_SECONDS", 300) * time.Second,
		RetryMaxAttempts:  envInt("RETRY_MAX_ATTEMPTS", 3),
		RetryBackoffBase:  envDur("RETRY_BACKOFF_BASE_MS", 500) * time.Millisecond,
		RedisURL:          env("REDIS_URL", ""),
		DatabaseURL:       env("DATABASE_URL", ""),
	}
	if cfg.DatabaseURL == "" {
		log.Println("[WARN] DATABASE_URL not set — using in-memory directory store for dev")
	}
	return cfg
}

// Validate checks the configuration that cannot be defaulted safely. Fatal
// at startup: a gateway that comes up with a bad prefix emits corrupted
// identities for every request.
func (c Config) Validate() error {
	if err := c.Mapping.Validate(); err != nil {
		return err
	}
	switch c.AuthMode {
	case "introspect":
		if c.IntrospectionURL == "" {
			return errors.New("INTROSPECTION_URL required in introspect mode")
		}
	case "jwt":
		if c.Issuer == "" || c.JWKSURL == "" {
			return errors.New("OIDC_ISSUER and JWKS_URL required in jwt mode")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	if c.IntrospectionTimeout <= 0 {
		return errors.New("introspection timeout must be positive")
	}
	return nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, _ := strconv.ParseBool(v)
		return b
	}
	return def
}
func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return i
	}
	return def
}
func envDur(k string, def int) time.Duration {
	if v := os.Getenv(k); v != "" {
		i, _ := strconv.Atoi(v)
		return time.Duration(i)
	}
	return time.Duration(def)
}
