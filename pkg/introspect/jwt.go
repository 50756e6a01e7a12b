// pkg/introspect/jwt.go
package introspect

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"

	"tenantgate/pkg/identity"
)

// jwksCache caches JWKS sets per URL.
type jwksCache struct {
	mu   sync.RWMutex
	sets map[string]cachedJWKS
}

type cachedJWKS struct {
	set     jwk.Set
	expires time.Time
}

func (c *jwksCache) get(ctx context.Context, url string, ttl time.Duration) (jwk.Set, error) {
	c.mu.RLock()
	if e, ok := c.sets[url]; ok && time.Now().Before(e.expires) {
		c.mu.RUnlock()
		return e.set, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sets == nil {
		c.sets = map[string]cachedJWKS{}
	}
	if e, ok := c.sets[url]; ok && time.Now().Before(e.expires) {
		return e.set, nil
	}
	set, err := jwk.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	c.sets[url] = cachedJWKS{set: set, expires: time.Now().Add(ttl)}
	return set, nil
}

// JWTValidator validates bearers locally against the issuer's JWKS instead
// of calling the introspection authority. Deployments whose issuer exposes
// the groups claim in the access token can skip the extra network hop.
// JWKS metadata is cached; per-token outcomes are not.
type JWTValidator struct {
	issuer  string
	jwksURL string
	cache   *jwksCache
	jwksTTL time.Duration
	log     *zap.SugaredLogger
	metrics *Metrics
}

func NewJWTValidator(issuer, jwksURL string, log *zap.SugaredLogger, m *Metrics) *JWTValidator {
	return &JWTValidator{
		issuer:  strings.TrimRight(issuer, "/"),
		jwksURL: jwksURL,
		cache:   &jwksCache{},
		jwksTTL: 6 * time.Hour,
		log:     log,
		metrics: m,
	}
}

func (v *JWTValidator) Validate(ctx context.Context, token string) (identity.Principal, error) {
	if token == "" {
		return identity.Principal{}, fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}
	set, err := v.cache.get(ctx, v.jwksURL, v.jwksTTL)
	if err != nil {
		v.count("transport_error")
		v.log.Warnw("jwks fetch failed", "err", err)
		return identity.Principal{}, fmt.Errorf("%w: jwks unavailable", ErrTokenInvalid)
	}
	jt, err := jwt.Parse([]byte(token),
		jwt.WithKeySet(set),
		jwt.WithIssuer(v.issuer),
		jwt.WithValidate(true),
		jwt.WithVerify(true),
	)
	if err != nil {
		v.count("denied")
		return identity.Principal{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	p := identity.Principal{UID: jt.Subject(), ExpiresAt: jt.Expiration()}
	if u, ok := jt.Get("preferred_username"); ok {
		p.Username, _ = u.(string)
	}
	if p.Username == "" {
		p.Username = jt.Subject()
	}
	if g, ok := jt.Get("groups"); ok {
		switch vals := g.(type) {
		case []string:
			p.Groups = vals
		case []interface{}:
			for _, e := range vals {
				if s, ok := e.(string); ok {
					p.Groups = append(p.Groups, s)
				}
			}
		}
	}
	v.count("ok")
	return p, nil
}

func (v *JWTValidator) count(outcome string) {
	if v.metrics != nil {
		v.metrics.Validations.WithLabelValues(outcome).Inc()
	}
}
