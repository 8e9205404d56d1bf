package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type response struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func probe(t *testing.T, endpoint http.HandlerFunc) (int, response) {
	t.Helper()
	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func ok(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.Add(Liveness, "goroutines", time.Second, ok)
	h.Add(Liveness, "db", time.Second, failing("connection refused"))

	code, body := probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "checks start healthy")
	assert.Equal(t, "ok", body.Status)

	db := h.checks[1]
	db.run(context.Background())
	db.run(context.Background())
	code, _ = probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "two failures stay below the threshold")

	db.run(context.Background())
	code, body = probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, map[string]string{"db": "connection refused"}, body.Checks)
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.Add(Readiness, "postgres", time.Second, ok)
	h.Add(Liveness, "broken", time.Second, failing("ignored"))
	for range failAfter {
		h.checks[1].run(context.Background())
	}

	code, body := probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "_readiness")
	assert.NotContains(t, body.Checks, "broken", "liveness checks do not affect readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, _ = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	code, _ = probe(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestCheck_Recovers(t *testing.T) {
	down := true
	h := New()
	h.Add(Readiness, "flaky", time.Second, func(context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	})
	h.SetReady(true)
	c := h.checks[0]

	for range failAfter {
		c.run(context.Background())
	}
	assert.False(t, h.IsReady())

	down = false
	c.run(context.Background())
	assert.True(t, h.IsReady())
	assert.Nil(t, c.lastErr.Load())
}

func TestCheck_Timeout(t *testing.T) {
	h := New()
	h.Add(Liveness, "slow", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	c := h.checks[0]
	for range failAfter {
		c.run(context.Background())
	}
	msg, failed := c.failure()
	assert.True(t, failed)
	assert.Equal(t, context.DeadlineExceeded.Error(), msg)
}

func TestStartStop(t *testing.T) {
	h := New()
	h.Add(Liveness, "broken", time.Second, failing("err"))
	h.Add(Readiness, "postgres", time.Second, PingCheck("postgres", stubPinger{}))
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				probe(t, h.LiveEndpoint)
				probe(t, h.ReadyEndpoint)
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return len(h.failures(Liveness)) == 1
	}, time.Second, 5*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck("postgres", stubPinger{})(context.Background()))

	err := PingCheck("postgres", stubPinger{err: errors.New("refused")})(context.Background())
	assert.EqualError(t, err, "ping postgres: refused")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "limit 0")
}
