package interclient

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateReturnsSameClient(t *testing.T) {
	p := NewPool(time.Second)

	a := p.GetOrCreate("http://userd:3001", "gateway")
	b := p.GetOrCreate("http://userd:3001", "gateway")
	require.Same(t, a, b)

	// Different identity or target means a different client.
	c := p.GetOrCreate("http://userd:3001", "presenced")
	d := p.GetOrCreate("http://notifyd:3003", "gateway")
	assert.NotSame(t, a, c)
	assert.NotSame(t, a, d)
	assert.Equal(t, 3, p.Size())
}

func TestGetOrCreateConcurrentSingleConstruction(t *testing.T) {
	p := NewPool(time.Second)

	var constructions atomic.Int64
	inner := p.newClient
	p.newClient = func(baseURL, identity string) *ServiceClient {
		constructions.Add(1)
		// Widen the race window so duplicate setups would actually show.
		time.Sleep(5 * time.Millisecond)
		return inner(baseURL, identity)
	}

	const callers = 100
	clients := make([]*ServiceClient, callers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			clients[i] = p.GetOrCreate("http://userd:3001", "gateway")
		}(i)
	}
	close(start)
	wg.Wait()

	require.EqualValues(t, 1, constructions.Load(), "concurrent first use must construct exactly once")
	for _, c := range clients {
		require.Same(t, clients[0], c)
	}
}

func TestClearForcesRebuild(t *testing.T) {
	p := NewPool(time.Second)

	var constructions atomic.Int64
	inner := p.newClient
	p.newClient = func(baseURL, identity string) *ServiceClient {
		constructions.Add(1)
		return inner(baseURL, identity)
	}

	first := p.GetOrCreate("http://userd:3001", "gateway")
	p.Clear()
	require.Equal(t, 0, p.Size())

	second := p.GetOrCreate("http://userd:3001", "gateway")
	assert.NotSame(t, first, second)
	assert.EqualValues(t, 2, constructions.Load())
}

func TestPoolDefaultTimeout(t *testing.T) {
	p := NewPool(0)
	c := p.GetOrCreate("http://userd:3001", "gateway")
	assert.Equal(t, DefaultCallTimeout, c.HTTPClient.Timeout)
}
