package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newRequest(remoteAddr string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = remoteAddr
	return r
}

func TestAllowIsPerIP(t *testing.T) {
	l := NewIPRateLimiter(rate.Every(time.Hour), 2, time.Hour)
	defer l.Stop()

	a := newRequest("10.0.0.1:1000")
	b := newRequest("10.0.0.2:1000")

	assert.True(t, l.Allow(a))
	assert.True(t, l.Allow(a))
	assert.False(t, l.Allow(a), "third request from the same IP must be limited")
	assert.True(t, l.Allow(b), "other IPs keep their own bucket")
	assert.Equal(t, 2, l.tracked())
}

func TestSweepDropsFullBuckets(t *testing.T) {
	l := NewIPRateLimiter(rate.Every(time.Hour), 1, time.Hour)
	defer l.Stop()

	l.GetLimiter("10.0.0.1")
	assert.True(t, l.GetLimiter("10.0.0.2").Allow())

	removed := l.sweep(time.Now())

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, l.tracked())
}

func TestMiddlewareRespondsTooManyRequests(t *testing.T) {
	l := NewIPRateLimiter(rate.Every(time.Hour), 1, time.Hour)
	defer l.Stop()

	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, newRequest("10.0.0.1:1"))
	assert.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, newRequest("10.0.0.1:2"))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	other := httptest.NewRecorder()
	h.ServeHTTP(other, newRequest("10.0.0.2:1"))
	assert.Equal(t, http.StatusNoContent, other.Code)
}

func TestStopIsIdempotent(t *testing.T) {
	l := NewIPRateLimiter(rate.Every(time.Hour), 1, time.Millisecond)

	l.Stop()
	l.Stop()

	select {
	case <-l.stop:
	default:
		t.Fatal("stop channel not closed")
	}
	assert.True(t, l.GetLimiter("10.0.0.1").Allow(), "a stopped limiter still hands out buckets")
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "10.1.2.3", ClientIP(newRequest("10.1.2.3:4567")))
	assert.Equal(t, "garbage", ClientIP(newRequest("garbage")))
	assert.Equal(t, "unknown_ip", ClientIP(newRequest("")))
}
