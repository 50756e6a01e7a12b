package introspect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func TestClient_Validate_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"authenticated":true,"username":"jdoe","uid":"u-1",
		  "groups":["cost-mgmt-org-1234567","cost-mgmt-account-9876543","system:authenticated"]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, testLogger(), nil)
	p, err := c.Validate(context.Background(), "opaque-token")
	require.NoError(t, err)
	assert.Equal(t, "jdoe", p.Username)
	assert.Equal(t, "u-1", p.UID)
	assert.Equal(t, []string{"cost-mgmt-org-1234567", "cost-mgmt-account-9876543", "system:authenticated"}, p.Groups)
}

func TestClient_Validate_NotAuthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"authenticated":false}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, testLogger(), nil)
	_, err := c.Validate(context.Background(), "opaque-token")
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestClient_Validate_FailsClosedOnBadStatus(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusInternalServerError, http.StatusBadGateway} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		c := NewClient(srv.URL, time.Second, testLogger(), nil)
		_, err := c.Validate(context.Background(), "opaque-token")
		require.ErrorIs(t, err, ErrTokenInvalid, "status %d", status)
		srv.Close()
	}
}

func TestClient_Validate_FailsClosedOnTransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1/validate", 100*time.Millisecond, testLogger(), nil)
	_, err := c.Validate(context.Background(), "opaque-token")
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestClient_Validate_FailsClosedOnTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"authenticated":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 50*time.Millisecond, testLogger(), nil)
	start := time.Now()
	_, err := c.Validate(context.Background(), "opaque-token")
	require.ErrorIs(t, err, ErrTokenInvalid)
	assert.Less(t, time.Since(start), 250*time.Millisecond, "timeout must be bounded")
}

func TestClient_Validate_FailsClosedOnMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"authenticated":`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second, testLogger(), nil)
	_, err := c.Validate(context.Background(), "opaque-token")
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestClient_Validate_EmptyToken(t *testing.T) {
	c := NewClient("http://unused", time.Second, testLogger(), nil)
	_, err := c.Validate(context.Background(), "")
	require.ErrorIs(t, err, ErrTokenInvalid)
}
