package relay

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/odvcencio/scribe/assistant"
)

const (
	limitWindow      = time.Minute
	limitPerWindow   = 100
	maxTrackedAddrs  = 10000
	limitMessageBody = "Too many requests, please try again later"
)

// ipLimiter enforces a per-client request budget. Limiters are kept in the
// LRU cache with a TTL of twice the window so idle clients age out.
type ipLimiter struct {
	limiters *assistant.Cache[*rate.Limiter]
	limit    int
	window   time.Duration
}

func newIPLimiter() *ipLimiter {
	return &ipLimiter{
		limiters: assistant.NewCache[*rate.Limiter](maxTrackedAddrs, 2*limitWindow),
		limit:    limitPerWindow,
		window:   limitWindow,
	}
}

// allow records a request from the address, writes the rate-limit headers,
// and reports whether the request may proceed.
func (l *ipLimiter) allow(w http.ResponseWriter, r *http.Request) bool {
	addr := clientAddr(r)
	lim, ok := l.limiters.Get(addr)
	if !ok {
		lim = rate.NewLimiter(rate.Every(l.window/time.Duration(l.limit)), l.limit)
		l.limiters.Set(addr, lim)
	}

	allowed := lim.Allow()
	remaining := int(lim.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	reset := int(l.window.Seconds())

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(reset))
	if !allowed {
		w.Header().Set("Retry-After", strconv.Itoa(reset))
	}
	return allowed
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
