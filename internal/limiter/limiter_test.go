package limiter

import (
	"fmt"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(quota int, window time.Duration, capacity int) (*Limiter, *time.Time) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(map[string]ClassConfig{
		ClassWebhook: {Quota: quota, Window: window},
	}, capacity)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestCheckQuotaBoundary(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute, 0)

	for i := 0; i < 3; i++ {
		res := l.Check("1.2.3.4", ClassWebhook)
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		if res.Remaining != 3-(i+1) {
			t.Fatalf("request %d remaining mismatch: %d", i+1, res.Remaining)
		}
	}

	res := l.Check("1.2.3.4", ClassWebhook)
	if res.Allowed {
		t.Fatalf("request over quota should be rejected")
	}
	if res.RetryAfter <= 0 {
		t.Fatalf("rejected request should carry a retry-after, got %v", res.RetryAfter)
	}
}

func TestCheckWindowReset(t *testing.T) {
	l, now := newTestLimiter(1, time.Minute, 0)

	if !l.Check("1.2.3.4", ClassWebhook).Allowed {
		t.Fatalf("first request should be allowed")
	}
	if l.Check("1.2.3.4", ClassWebhook).Allowed {
		t.Fatalf("second request in window should be rejected")
	}

	*now = now.Add(time.Minute + time.Second)
	if !l.Check("1.2.3.4", ClassWebhook).Allowed {
		t.Fatalf("request after window rollover should be allowed")
	}
}

func TestCheckClassesIndependent(t *testing.T) {
	l := New(map[string]ClassConfig{
		ClassWebhook: {Quota: 1, Window: time.Minute},
		ClassUpload:  {Quota: 1, Window: time.Minute},
	}, 0)

	if !l.Check("1.2.3.4", ClassWebhook).Allowed {
		t.Fatalf("webhook request should be allowed")
	}
	if !l.Check("1.2.3.4", ClassUpload).Allowed {
		t.Fatalf("upload request should not share the webhook budget")
	}
}

func TestCheckUnknownClassFailsOpen(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute, 0)
	for i := 0; i < 10; i++ {
		if !l.Check("1.2.3.4", "no-such-class").Allowed {
			t.Fatalf("unknown class must admit")
		}
	}
}

func TestEvictionBoundsCache(t *testing.T) {
	l, _ := newTestLimiter(10, time.Minute, 50)

	for i := 0; i < 120; i++ {
		l.Check(fmt.Sprintf("client-%d", i), ClassWebhook)
	}

	if l.Len() > 50 {
		t.Fatalf("cache exceeded capacity: %d entries", l.Len())
	}
}

func TestClientIDResolution(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	r.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
	r.RemoteAddr = "10.0.0.2:4444"
	if got := ClientID(r); got != "9.9.9.9" {
		t.Fatalf("forwarded-for first hop expected, got %q", got)
	}

	r = httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = "10.0.0.2:4444"
	if got := ClientID(r); got != "10.0.0.2" {
		t.Fatalf("remote addr host expected, got %q", got)
	}

	r = httptest.NewRequest("POST", "/", nil)
	r.RemoteAddr = ""
	r.Header.Set("User-Agent", "probe")
	got := ClientID(r)
	if got == "" {
		t.Fatalf("headerless client should still get an identity")
	}
	again := ClientID(r)
	if got != again {
		t.Fatalf("fallback identity should be stable: %q != %q", got, again)
	}
}
