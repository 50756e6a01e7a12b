// pkg/introspect/client.go
package introspect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"tenantgate/pkg/identity"
)

// Client validates tokens against the external introspection authority.
// Fails closed: any transport failure, non-200 status or authenticated:false
// result rejects the token. Per-request timeout is bounded by the configured
// introspection timeout; outcomes are never cached here (see CachedValidator).
type Client struct {
	url     string
	httpc   *http.Client
	log     *zap.SugaredLogger
	metrics *Metrics
}

func NewClient(url string, timeout time.Duration, log *zap.SugaredLogger, m *Metrics) *Client {
	return &Client{
		url:     url,
		httpc:   &http.Client{Timeout: timeout},
		log:     log,
		metrics: m,
	}
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Authenticated bool     `json:"authenticated"`
	Username      string   `json:"username"`
	UID           string   `json:"uid"`
	Groups        []string `json:"groups"`
}

func (c *Client) Validate(ctx context.Context, token string) (identity.Principal, error) {
	if token == "" {
		return identity.Principal{}, fmt.Errorf("%w: empty token", ErrTokenInvalid)
	}
	body, err := json.Marshal(validateRequest{Token: token})
	if err != nil {
		return identity.Principal{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return identity.Principal{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		c.count("transport_error")
		c.log.Warnw("introspection unreachable", "err", err)
		return identity.Principal{}, fmt.Errorf("%w: introspection unreachable", ErrTokenInvalid)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.count("bad_status")
		c.log.Warnw("introspection rejected", "status", resp.StatusCode)
		return identity.Principal{}, fmt.Errorf("%w: introspection status %d", ErrTokenInvalid, resp.StatusCode)
	}
	var vr validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		c.count("bad_body")
		return identity.Principal{}, fmt.Errorf("%w: malformed introspection response", ErrTokenInvalid)
	}
	if !vr.Authenticated {
		c.count("denied")
		return identity.Principal{}, fmt.Errorf("%w: not authenticated", ErrTokenInvalid)
	}
	c.count("ok")
	return identity.Principal{
		Username: vr.Username,
		UID:      vr.UID,
		Groups:   vr.Groups,
	}, nil
}

func (c *Client) count(outcome string) {
	if c.metrics != nil {
		c.metrics.Validations.WithLabelValues(outcome).Inc()
	}
}
