package worker

import (
	"context"
	"testing"
	"time"

	"github.com/ppiankov/poseprep/internal/model"
)

func TestNewLimiter_Defaults(t *testing.T) {
	l := NewLimiter(model.RateLimitConfig{RequestsPerSecond: 10, BurstSize: -1})
	if l.burst != 1 {
		t.Errorf("expected burst 1 for negative input, got %d", l.burst)
	}

	unlimited := NewLimiter(model.RateLimitConfig{})
	lim := unlimited.forHost("example.com")
	for i := 0; i < 100; i++ {
		if !lim.Allow() {
			t.Fatalf("request %d refused with rate limiting disabled", i)
		}
	}
}

func TestLimiter_Wait(t *testing.T) {
	l := NewLimiter(model.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 1})
	ctx := context.Background()

	if err := l.Wait(ctx, "http://example.com/a.zip"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := l.Wait(ctx, "http://mirror.example.org/a.zip"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := l.Wait(ctx, "::invalid"); err == nil {
		t.Error("expected error for invalid URL")
	}
}

func waitBriefly(l *Limiter, rawURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	return l.Wait(ctx, rawURL)
}

func TestLimiter_WaitCancelled(t *testing.T) {
	l := NewLimiter(model.RateLimitConfig{RequestsPerSecond: 0.01, BurstSize: 1})
	url := "http://slow.example.com/data.zip"
	if err := waitBriefly(l, url); err != nil {
		t.Fatalf("first request should pass: %v", err)
	}
	if err := waitBriefly(l, url); err == nil {
		t.Error("expected wait to fail once the context expires")
	}
}

func TestLimiter_PerHost(t *testing.T) {
	l := NewLimiter(model.RateLimitConfig{RequestsPerSecond: 0.01, BurstSize: 1})

	if err := waitBriefly(l, "http://example.com/a"); err != nil {
		t.Errorf("first request should pass: %v", err)
	}
	if err := waitBriefly(l, "http://EXAMPLE.com/b"); err == nil {
		t.Error("second request to the same host should wait")
	}
	if err := waitBriefly(l, "http://other.com/a"); err != nil {
		t.Errorf("other host should pass: %v", err)
	}
}

func TestLimiter_HostOverrides(t *testing.T) {
	l := NewLimiter(model.RateLimitConfig{
		RequestsPerSecond: 10,
		BurstSize:         10,
		Hosts: []model.HostRateLimit{
			{Host: "Slow.com", RequestsPerSecond: 0.01, BurstSize: 1},
			{Host: "free.com"},
		},
	})

	if err := waitBriefly(l, "http://slow.com/x"); err != nil {
		t.Errorf("first request should pass: %v", err)
	}
	if err := waitBriefly(l, "http://slow.com/x"); err == nil {
		t.Error("second request to the throttled host should wait")
	}
	for i := 0; i < 50; i++ {
		if err := waitBriefly(l, "http://free.com/x"); err != nil {
			t.Fatalf("request %d to the unthrottled host failed: %v", i, err)
		}
	}
	if err := waitBriefly(l, "http://fast.com/x"); err != nil {
		t.Errorf("other host should pass: %v", err)
	}
}
