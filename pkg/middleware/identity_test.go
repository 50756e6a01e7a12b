package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tenantgate/pkg/config"
	"tenantgate/pkg/identity"
	"tenantgate/pkg/introspect"
)

type stubValidator struct {
	p   identity.Principal
	err error
}

func (s stubValidator) Validate(context.Context, string) (identity.Principal, error) {
	return s.p, s.err
}

func testConfig() config.Config {
	return config.Config{
		IntrospectionTimeout: time.Second,
		IdentityHeader:       "x-rh-identity",
		Capability:           "cost_management",
		DuplicateRootOrgID:   true,
		StripAuthorization:   true,
		Mapping: config.Mapping{
			OrgAttribute:     "org_id",
			AccountAttribute: "account_number",
			OrgPrefix:        "cost-mgmt-org-",
			AccountPrefix:    "cost-mgmt-account-",
		},
	}
}

func serve(cfg config.Config, v introspect.Validator, next http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	Identity(cfg, v, zap.NewNop().Sugar())(next).ServeHTTP(rr, req)
	return rr
}

func TestIdentity_EndToEnd(t *testing.T) {
	v := stubValidator{p: identity.Principal{
		Username: "jdoe",
		UID:      "u-1",
		Groups:   []string{"cost-mgmt-org-1234567", "cost-mgmt-account-9876543", "system:authenticated"},
	}}

	var forwarded *http.Request
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		forwarded = r
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	req.Header.Set("Authorization", "Bearer opaque-token")
	rr := serve(testConfig(), v, next, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, forwarded)
	doc, err := identity.DecodeHeader(forwarded.Header.Get("x-rh-identity"))
	require.NoError(t, err)
	assert.Equal(t, "1234567", doc.Identity.OrgID)
	assert.Equal(t, "9876543", doc.Identity.AccountNumber)
	assert.Equal(t, "jdoe", doc.Identity.User.Username)
	assert.Empty(t, forwarded.Header.Get("Authorization"), "bearer must not reach the backend")

	p, ok := PrincipalFrom(forwarded.Context())
	require.True(t, ok)
	assert.Equal(t, "jdoe", p.Username)
}

func TestIdentity_RejectsMissingBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := serve(testConfig(), stubValidator{}, http.NotFoundHandler(), req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestIdentity_FailsClosedOnValidatorError(t *testing.T) {
	v := stubValidator{err: fmt.Errorf("%w: denied", introspect.ErrTokenInvalid)}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")

	called := false
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true })
	rr := serve(testConfig(), v, next, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called, "no identity header is ever constructed for a rejected token")
	assert.NotContains(t, rr.Body.String(), "cost-mgmt", "error bodies must not leak the naming scheme")
}

func TestIdentity_RejectsWhenTenantAttributeMissing(t *testing.T) {
	v := stubValidator{p: identity.Principal{
		Username: "jdoe",
		Groups:   []string{"cost-mgmt-org-1234567"}, // no account group
	}}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer opaque-token")
	rr := serve(testConfig(), v, http.NotFoundHandler(), req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestIdentity_DropsSpoofedInboundHeader(t *testing.T) {
	v := stubValidator{err: fmt.Errorf("%w", introspect.ErrTokenInvalid)}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad")
	req.Header.Set("x-rh-identity", "forged")

	rr := serve(testConfig(), v, http.NotFoundHandler(), req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestIdentity_SpoofedHeaderReplacedOnSuccess(t *testing.T) {
	v := stubValidator{p: identity.Principal{
		Username: "jdoe",
		Groups:   []string{"cost-mgmt-org-1", "cost-mgmt-account-2"},
	}}
	var forwarded *http.Request
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { forwarded = r })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer opaque-token")
	req.Header.Set("x-rh-identity", "forged")
	serve(testConfig(), v, next, req)

	require.NotNil(t, forwarded)
	vals := forwarded.Header.Values("x-rh-identity")
	require.Len(t, vals, 1)
	doc, err := identity.DecodeHeader(vals[0])
	require.NoError(t, err)
	assert.Equal(t, "1", doc.Identity.OrgID)
}

func TestIdentity_BypassesHealthAndMetrics(t *testing.T) {
	for _, path := range []string{"/healthz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
		rr := serve(testConfig(), stubValidator{}, next, req)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
}
