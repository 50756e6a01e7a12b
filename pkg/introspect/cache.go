// pkg/introspect/cache.go
package introspect

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tenantgate/pkg/identity"
)

// CachedValidator wraps a Validator and remembers successful outcomes. Each
// entry lives for min(configured TTL, remaining token lifetime) when the
// inner validator knows the token's expiry; only opaque tokens, whose
// lifetime is unknowable here, fall back to the flat TTL. Keys are SHA-256
// hashes of the token, never the token itself. Failures are never cached: a
// token denied because the authority was briefly unreachable must be
// retryable on the next request.
//
// Redis-backed when a client is supplied so that replicas share the cache;
// otherwise an in-process store is used.
type CachedValidator struct {
	inner Validator
	ttl   time.Duration
	rdb   *redis.Client
	local *gocache.Cache
	log   *zap.SugaredLogger
	m     *Metrics
}

func NewCachedValidator(inner Validator, ttl time.Duration, rdb *redis.Client, log *zap.SugaredLogger, m *Metrics) *CachedValidator {
	c := &CachedValidator{inner: inner, ttl: ttl, rdb: rdb, log: log, m: m}
	if rdb == nil {
		c.local = gocache.New(ttl, 2*ttl)
	}
	return c
}

func (c *CachedValidator) Validate(ctx context.Context, token string) (identity.Principal, error) {
	key := cacheKey(token)
	if p, ok := c.lookup(ctx, key); ok {
		if c.m != nil {
			c.m.Validations.WithLabelValues("cache_hit").Inc()
		}
		return p, nil
	}
	p, err := c.inner.Validate(ctx, token)
	if err != nil {
		return identity.Principal{}, err
	}
	c.store(ctx, key, p)
	return p, nil
}

// entryTTL bounds the cache TTL by the token's remaining lifetime. Zero or
// negative means the entry must not be stored at all.
func (c *CachedValidator) entryTTL(p identity.Principal) time.Duration {
	ttl := c.ttl
	if !p.ExpiresAt.IsZero() {
		if remaining := time.Until(p.ExpiresAt); remaining < ttl {
			ttl = remaining
		}
	}
	return ttl
}

func (c *CachedValidator) lookup(ctx context.Context, key string) (identity.Principal, bool) {
	var p identity.Principal
	if c.rdb != nil {
		raw, err := c.rdb.Get(ctx, key).Bytes()
		if err != nil {
			return identity.Principal{}, false
		}
		if err := json.Unmarshal(raw, &p); err != nil {
			return identity.Principal{}, false
		}
	} else {
		v, ok := c.local.Get(key)
		if !ok {
			return identity.Principal{}, false
		}
		p = v.(identity.Principal)
	}
	// Store TTLs already track the token lifetime; this guards against
	// clock drift between the cache backend and this process.
	if !p.ExpiresAt.IsZero() && time.Now().After(p.ExpiresAt) {
		return identity.Principal{}, false
	}
	return p, true
}

func (c *CachedValidator) store(ctx context.Context, key string, p identity.Principal) {
	ttl := c.entryTTL(p)
	if ttl <= 0 {
		return
	}
	if c.rdb != nil {
		raw, err := json.Marshal(p)
		if err != nil {
			return
		}
		if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
			c.log.Warnw("token cache write failed", "err", err)
		}
		return
	}
	c.local.Set(key, p, ttl)
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "tg:token:" + hex.EncodeToString(sum[:])
}
