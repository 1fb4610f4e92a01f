package identity

import (
	"math/rand"
	"sync"
)

// Identity is the (proxy, user agent) pair presented for one network attempt.
// An empty Proxy means a direct connection.
type Identity struct {
	Proxy     string
	UserAgent string
}

// userAgentPool is a fixed pool of realistic browser user-agent strings.
var userAgentPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
}

// Rotator cycles through proxies and picks random user agents per attempt.
// The proxy list always contains the direct-connection entry first.
type Rotator struct {
	mu      sync.Mutex
	proxies []string
	cursor  int
	pick    func(n int) int
}

// NewRotator builds a rotator over the configured proxies. The direct
// connection is always included as the first rotation entry.
func NewRotator(proxies []string) *Rotator {
	list := make([]string, 0, len(proxies)+1)
	list = append(list, "")
	for _, proxy := range proxies {
		if proxy != "" {
			list = append(list, proxy)
		}
	}

	return &Rotator{
		proxies: list,
		pick:    rand.Intn,
	}
}

// NextProxy returns the next proxy in the cyclic list and advances the cursor.
func (r *Rotator) NextProxy() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	proxy := r.proxies[r.cursor%len(r.proxies)]
	r.cursor++
	return proxy
}

// RandomUserAgent returns a uniformly random pick from the user-agent pool.
func (r *Rotator) RandomUserAgent() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return userAgentPool[r.pick(len(userAgentPool))]
}

// Next returns a full identity for one network attempt.
func (r *Rotator) Next() Identity {
	return Identity{
		Proxy:     r.NextProxy(),
		UserAgent: r.RandomUserAgent(),
	}
}

// DefaultUserAgent returns the first pool entry for collaborators that need a
// stable browser identity rather than a rotating one.
func DefaultUserAgent() string {
	return userAgentPool[0]
}

// NewRotatorForTests builds a rotator with a deterministic picker.
func NewRotatorForTests(proxies []string, pick func(n int) int) *Rotator {
	r := NewRotator(proxies)
	r.pick = pick
	return r
}
