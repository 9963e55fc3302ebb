package api

import (
	"net/http"
	"sync"

	"github.com/star/depthscale/internal/httputil"
)

// conversionLimiter caps in-flight conversions per client and in total.
type conversionLimiter struct {
	mu       sync.Mutex
	inFlight map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newConversionLimiter(maxPerIP, maxTotal int) *conversionLimiter {
	return &conversionLimiter{
		inFlight: make(map[string]int),
		maxPerIP: maxPerIP,
		maxTotal: maxTotal,
	}
}

// acquire reserves a slot for ip. It returns false when either cap is reached.
func (l *conversionLimiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.total >= l.maxTotal || l.inFlight[ip] >= l.maxPerIP {
		return false
	}
	l.inFlight[ip]++
	l.total++
	return true
}

func (l *conversionLimiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.inFlight[ip]--
	l.total--
	if l.inFlight[ip] <= 0 {
		delete(l.inFlight, ip)
	}
}

func (l *conversionLimiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inFlight[ip]
}

// limit wraps a conversion handler with the limiter. Rejected requests get 429.
func (h *handlers) limit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := httputil.ClientIP(r, h.cfg.TrustProxy)
		if !h.limiter.acquire(ip) {
			h.logger.Warn("conversion limit reached",
				"remote_ip", ip,
				"in_flight", h.limiter.count(ip),
			)
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many concurrent conversions")
			return
		}
		defer h.limiter.release(ip)
		next(w, r)
	}
}
