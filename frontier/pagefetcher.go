package frontier

import (
	"sync"
	"time"
)

// PageFetcher is the external collaborator consulted by the dispatcher for
// per-host politeness (Section 6). The frontier never fetches anything
// itself; it only asks when a host may be used next, and brackets a claim
// with Select/Unselect.
type PageFetcher interface {
	// NextFetchTime returns the earliest time a request to host is allowed.
	NextFetchTime(host string) time.Time
	// Select is called when a URL for host is dispatched to a worker.
	Select(rec URLRecord)
	// Unselect is called when a dispatched URL is abandoned, restoring the
	// politeness window that Select consumed.
	Unselect(rec URLRecord)
}

// domainBucket tracks token-bucket state for one host.
type domainBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time

	nextFetch     time.Time
	preSelectNext time.Time // saved so Unselect can restore it
}

// TokenBucketPageFetcher is the default PageFetcher: a politeness delay
// enforced per host through NextFetchTime, alongside per-host token-bucket
// state grounded on indexer.RateLimiter's domainLimiter but reshaped from a
// blocking Wait into the NextFetchTime/Select/Unselect trio the frontier
// needs so it can suspend on its own wakeup channel instead of a second
// blocking call. Select refills and draws from the bucket, but the bucket's
// level does not affect NextFetchTime, which depends on the politeness
// delay alone.
type TokenBucketPageFetcher struct {
	mu      sync.Mutex
	domains map[string]*domainBucket

	politenessDelay time.Duration
	defaultRate     float64
	defaultBurst    int

	now func() time.Time
}

// NewTokenBucketPageFetcher builds a PageFetcher enforcing politenessDelay
// between consecutive selects of the same host. It also keeps a per-host
// token bucket of the given sustained rate and burst size; the bucket is
// drawn down by Select but does not delay dispatch.
func NewTokenBucketPageFetcher(politenessDelay time.Duration, requestsPerSecond float64, burst int) *TokenBucketPageFetcher {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucketPageFetcher{
		domains:         make(map[string]*domainBucket),
		politenessDelay: politenessDelay,
		defaultRate:     requestsPerSecond,
		defaultBurst:    burst,
		now:             time.Now,
	}
}

func (f *TokenBucketPageFetcher) bucket(host string) *domainBucket {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.domains[host]
	if !ok {
		now := f.now()
		b = &domainBucket{
			tokens:     float64(f.defaultBurst),
			maxTokens:  float64(f.defaultBurst),
			refillRate: f.defaultRate,
			lastRefill: now,
			nextFetch:  now,
		}
		f.domains[host] = b
	}
	return b
}

func (f *TokenBucketPageFetcher) NextFetchTime(host string) time.Time {
	b := f.bucket(host)
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextFetch
}

func (f *TokenBucketPageFetcher) Select(rec URLRecord) {
	b := f.bucket(rec.Host)
	b.mu.Lock()
	defer b.mu.Unlock()

	now := f.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.maxTokens {
		b.tokens = b.maxTokens
	}
	b.lastRefill = now
	if b.tokens >= 1 {
		b.tokens--
	}

	b.preSelectNext = b.nextFetch
	b.nextFetch = now.Add(f.politenessDelay)
}

func (f *TokenBucketPageFetcher) Unselect(rec URLRecord) {
	b := f.bucket(rec.Host)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextFetch = b.preSelectNext
}
