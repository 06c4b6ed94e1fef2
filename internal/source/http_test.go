package source

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestAdaptiveLimiter_Bounds(t *testing.T) {
	a := NewAdaptiveLimiter(10, 10)

	for range 10 {
		a.OnSuccess()
	}
	assert.InDelta(t, 20, float64(a.Limit()), 1e-9)

	for range 10 {
		a.OnRateLimit()
	}
	assert.InDelta(t, 2.5, float64(a.Limit()), 1e-9)
}

func TestAdaptiveLimiter_Step(t *testing.T) {
	a := NewAdaptiveLimiter(rate.Limit(10), 1)
	a.OnSuccess()
	assert.InDelta(t, 12, float64(a.Limit()), 1e-9)
	a.OnRateLimit()
	assert.InDelta(t, 6, float64(a.Limit()), 1e-9)
}

func TestClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "custom/2", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(HTTPOptions{UserAgent: "custom/2", RequestsPerSecond: 100})
	body, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer body.Close() //nolint:errcheck
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		isRate bool
	}{
		{name: "too many requests", status: http.StatusTooManyRequests, isRate: true},
		{name: "server error", status: http.StatusBadGateway},
		{name: "not found", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewClient(HTTPOptions{RequestsPerSecond: 100})
			_, err := c.Get(context.Background(), srv.URL)
			require.Error(t, err)
			assert.Equal(t, tt.isRate, errors.Is(err, ErrRateLimited))
		})
	}
}

func TestClient_RateLimitReducesHostRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(HTTPOptions{RequestsPerSecond: 100})
	_, _ = c.Get(context.Background(), srv.URL)

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	assert.InDelta(t, 50, float64(c.limiterFor(req.URL).Limit()), 1e-9)
}
