package syncer

import (
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// stableAfter is how long a connection must stay up before the backoff
// schedule starts over.
const stableAfter = 60 * time.Second

// reconnector computes exponential backoff with jitter between push
// connection attempts.
type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int

	mu          sync.Mutex
	attempt     int
	connectedAt time.Time
	now         func() time.Time
}

func newReconnector(base, maxDelay time.Duration, maxAttempts int) *reconnector {
	return &reconnector{
		baseDelay:   base,
		maxDelay:    maxDelay,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// shouldReconnect reports whether another attempt is allowed. Zero
// maxAttempts retries forever.
func (r *reconnector) shouldReconnect() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxAttempts == 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.mu.Lock()
	r.connectedAt = r.now()
	r.mu.Unlock()
}

// nextDelay returns the wait before the next attempt and counts it.
func (r *reconnector) nextDelay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.connectedAt.IsZero() && r.now().Sub(r.connectedAt) > stableAfter {
		r.attempt = 0
	}
	r.connectedAt = time.Time{}

	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay
}

func (r *reconnector) attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempt
}

func (r *reconnector) reset() {
	r.mu.Lock()
	r.attempt = 0
	r.connectedAt = time.Time{}
	r.mu.Unlock()
}
