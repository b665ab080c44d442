package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, perMinute int) (*Limiter, *clock) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerMinute: perMinute, CleanupInterval: time.Hour})
	t.Cleanup(rl.Stop)
	c := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	rl.now = c.now
	return rl, c
}

func TestLimiter_Allow(t *testing.T) {
	rl, c := newTestLimiter(t, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.1.1.1") {
			t.Fatalf("request %d rejected", i+1)
		}
	}
	if rl.Allow("1.1.1.1") {
		t.Fatal("fourth request in the window should be rejected")
	}
	if !rl.Allow("2.2.2.2") {
		t.Fatal("other clients have their own window")
	}

	c.advance(time.Minute)
	if !rl.Allow("1.1.1.1") {
		t.Fatal("new window should allow again")
	}

	if m := rl.GetMetrics(); m.Rejected != 1 || m.ClientCount != 2 {
		t.Errorf("metrics = %+v", m)
	}
}

func TestLimiter_RetryAfter(t *testing.T) {
	rl, c := newTestLimiter(t, 1)
	rl.Allow("ip")
	c.advance(20*time.Second + 500*time.Millisecond)

	if got := rl.retryAfter("ip"); got != 40 {
		t.Errorf("retryAfter = %d, want 40", got)
	}
	if got := rl.retryAfter("unknown"); got != 0 {
		t.Errorf("retryAfter unknown = %d", got)
	}
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	rl, c := newTestLimiter(t, 5)
	rl.Allow("old")
	c.advance(9 * time.Minute)
	rl.Allow("recent")
	c.advance(2 * time.Minute)

	rl.cleanupStaleEntries()
	if m := rl.GetMetrics(); m.ClientCount != 1 {
		t.Errorf("clients = %d, want 1", m.ClientCount)
	}
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	ip := func(*http.Request) string { return "9.9.9.9" }

	tests := []struct {
		name    string
		onLimit func(http.ResponseWriter, *http.Request)
		want    int
	}{
		{"first passes", nil, http.StatusNoContent},
		{"plain 429", nil, http.StatusTooManyRequests},
		{"custom handler", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rl.Middleware(ip, tt.onLimit)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want != http.StatusNoContent && rec.Header().Get("Retry-After") != "60" {
				t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestLimiter_StopTwice(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}
