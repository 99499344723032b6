package interclient

import (
	"net/http"
	"sync"
	"time"
)

// ServiceClient is one cached outbound client for a (target, caller) pair.
// The transport keeps its connections alive for the life of the process, so
// repeat calls to the same service reuse the same TCP connections.
type ServiceClient struct {
	BaseURL    string
	Identity   string
	HTTPClient *http.Client
	CreatedAt  time.Time
}

type poolKey struct {
	baseURL  string
	identity string
}

// Pool caches one ServiceClient per (base URL, caller identity) pair. It is
// owned by the service's composition root and injected into callers; there
// is no ambient global cache.
//
// GetOrCreate is the one place in the system where concurrent callers race,
// so the check-and-insert is done under a single mutex: the first caller
// for a pair builds the client, every later or concurrent caller gets the
// same instance back.
type Pool struct {
	mu      sync.Mutex
	clients map[poolKey]*ServiceClient
	timeout time.Duration

	// newClient is swappable in tests to observe construction counts.
	newClient func(baseURL, identity string) *ServiceClient
}

// DefaultCallTimeout bounds one outbound inter-service call. Matches the
// 30s the gateway has always used; a timed-out call fails, the cached
// client stays.
const DefaultCallTimeout = 30 * time.Second

// NewPool creates an empty pool. A non-positive timeout falls back to
// DefaultCallTimeout.
func NewPool(timeout time.Duration) *Pool {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	p := &Pool{
		clients: make(map[poolKey]*ServiceClient),
		timeout: timeout,
	}
	p.newClient = p.buildClient
	return p
}

// GetOrCreate returns the cached client for the pair, constructing it on
// first use. Construction never performs network I/O; dial failures surface
// on the first actual call through the client.
func (p *Pool) GetOrCreate(baseURL, identity string) *ServiceClient {
	key := poolKey{baseURL: baseURL, identity: identity}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[key]; ok {
		return c
	}

	c := p.newClient(baseURL, identity)
	p.clients[key] = c
	return c
}

// Clear disposes all cached clients. The next GetOrCreate for any pair
// performs setup again. Used for test isolation and operational resets.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.clients {
		c.HTTPClient.CloseIdleConnections()
	}
	p.clients = make(map[poolKey]*ServiceClient)
}

// Size reports how many clients are currently cached.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

func (p *Pool) buildClient(baseURL, identity string) *ServiceClient {
	return &ServiceClient{
		BaseURL:  baseURL,
		Identity: identity,
		HTTPClient: &http.Client{
			Timeout: p.timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		CreatedAt: time.Now().UTC(),
	}
}
