package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/stream-donation-hub/internal/config"
)

func rateCtx(method, path string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.0.0.9:4444"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath(path)
	return c
}

func TestBuildRateKeyStrategies(t *testing.T) {
	cases := []struct {
		strategy string
		want     string
	}{
		{"ip", "rl:ip:10.0.0.9"},
		{"route", "rl:route:POST /v1/timer/start"},
		{"ip_route", "rl:ip:10.0.0.9:route:POST /v1/timer/start"},
		{"unknown", "rl:ip:10.0.0.9:route:POST /v1/timer/start"},
	}
	for _, tc := range cases {
		c := rateCtx("POST", "/v1/timer/start")
		cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: tc.strategy}
		if got := buildRateKey(cfg, c); got != tc.want {
			t.Errorf("strategy %q: key = %q, want %q", tc.strategy, got, tc.want)
		}
	}
}

func TestBuildRateKeyBucketsByAccount(t *testing.T) {
	c := rateCtx("POST", "/v1/timer/start")
	c.Set("streamer_id", uint64(42))

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user_route"}
	if got, want := buildRateKey(cfg, c), "rl:user:42:route:POST /v1/timer/start"; got != want {
		t.Errorf("key = %q, want %q", got, want)
	}

	cfg.KeyStrategy = "user"
	if got, want := buildRateKey(cfg, c), "rl:user:42"; got != want {
		t.Errorf("key = %q, want %q", got, want)
	}

	// Two accounts behind the same address land in separate buckets.
	other := rateCtx("POST", "/v1/timer/start")
	other.Set("streamer_id", uint64(7))
	cfg.KeyStrategy = "user_route"
	if a, b := buildRateKey(cfg, c), buildRateKey(cfg, other); a == b {
		t.Errorf("accounts 42 and 7 share bucket %q", a)
	}
}

func TestBuildRateKeyUserFallsBackToAddress(t *testing.T) {
	c := rateCtx("GET", "/v1/donations")
	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}
	if got, want := buildRateKey(cfg, c), "rl:user:ip:10.0.0.9"; got != want {
		t.Errorf("key = %q, want %q", got, want)
	}
}
