package httpmiddleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func newRequest(remote string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remote
	return req
}

func TestLimiter_SlidingWindow(t *testing.T) {
	l := NewLimiter(4, time.Minute)
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	for i := range 4 {
		ok, remaining, _ := l.Allow("k", start.Add(time.Duration(i)*time.Second))
		require.True(t, ok)
		assert.Equal(t, 3-i, remaining)
	}
	ok, _, reset := l.Allow("k", start.Add(5*time.Second))
	assert.False(t, ok)
	assert.Equal(t, start.Add(time.Minute), reset)

	// Halfway into the next window half of the previous count still weighs in.
	ok, _, _ = l.Allow("k", start.Add(90*time.Second))
	assert.True(t, ok)
	ok, _, _ = l.Allow("k", start.Add(91*time.Second))
	assert.True(t, ok)
	ok, _, _ = l.Allow("k", start.Add(92*time.Second))
	assert.True(t, ok)
	ok, _, _ = l.Allow("k", start.Add(93*time.Second))
	assert.False(t, ok)

	// Two idle windows reset the client.
	ok, remaining, _ := l.Allow("k", start.Add(5*time.Minute))
	assert.True(t, ok)
	assert.Equal(t, 3, remaining)
}

func TestLimiter_Sweep(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	now := time.Now()
	l.Allow("a", now)
	l.Allow("b", now.Add(2*time.Minute))

	l.Sweep(now.Add(2*time.Minute + time.Second))
	assert.NotContains(t, l.windows, "a")
	assert.Contains(t, l.windows, "b")
}

func TestRateLimit_OverLimit(t *testing.T) {
	handler := limit(NewLimiter(2, time.Minute), nil)(okHandler())

	for range 2 {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, newRequest("10.0.0.1:9999"))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newRequest("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body struct {
		Notice struct {
			Level   string `json:"level"`
			Message string `json:"message"`
		} `json:"notice"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "error", body.Notice.Level)
	assert.Equal(t, "Rate limit exceeded", body.Notice.Message)

	// Another client is unaffected.
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, newRequest("10.0.0.2:1234"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit_CustomKey(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := RateLimit(ctx, RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		Key:    func(r *http.Request) string { return r.Header.Get("api_key") },
	})(okHandler())

	send := func(key string) int {
		req := newRequest("192.168.1.1:4444")
		req.Header.Set("api_key", key)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}
	assert.Equal(t, http.StatusOK, send("key-a"))
	assert.Equal(t, http.StatusTooManyRequests, send("key-a"))
	assert.Equal(t, http.StatusOK, send("key-b"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		remote string
		want   string
	}{
		{"forwarded", map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}, "192.168.1.1:1", "203.0.113.50"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "192.168.1.1:1", "198.51.100.7"},
		{"remote", nil, "192.168.1.1:4444", "192.168.1.1"},
		{"remote without port", nil, "pipe", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newRequest(tt.remote)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
