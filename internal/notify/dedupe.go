package notify

import (
	"container/list"
	"sync"
	"time"
)

// Dedupe is a TTL-bounded, size-bounded set of already-processed event
// keys. The queue guarantees at-least-once delivery, so a crash between
// side effect and ack redelivers an event the user was already notified
// about; this cache is what makes reprocessing a no-op.
type Dedupe struct {
	mu      sync.Mutex
	seen    map[string]*dedupeEntry
	order   *list.List // keys oldest-first for O(1) eviction
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	once    sync.Once
}

type dedupeEntry struct {
	at      time.Time
	element *list.Element
}

// NewDedupe creates a cache and starts a background sweep for expired
// entries. Close stops the sweep.
func NewDedupe(ttl time.Duration, maxSize int) *Dedupe {
	d := &Dedupe{
		seen:    make(map[string]*dedupeEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go d.sweep()
	return d
}

// CheckAndMark atomically reports whether key was already seen and marks
// it if not. Atomic so two checks of the same redelivered event can never
// both come back "new".
func (d *Dedupe) CheckAndMark(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.seen[key]; ok && time.Since(e.at) < d.ttl {
		return true
	}
	d.mark(key)
	return false
}

// Forget drops a key, making it "new" again. Used when processing failed
// and the delivery will come back.
func (d *Dedupe) Forget(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if e, ok := d.seen[key]; ok {
		d.order.Remove(e.element)
		delete(d.seen, key)
	}
}

// Close stops the background sweep.
func (d *Dedupe) Close() {
	d.once.Do(func() { close(d.done) })
}

// mark must be called with mu held.
func (d *Dedupe) mark(key string) {
	if e, ok := d.seen[key]; ok {
		e.at = time.Now()
		d.order.MoveToBack(e.element)
		return
	}

	if len(d.seen) >= d.maxSize {
		if front := d.order.Front(); front != nil {
			old, _ := front.Value.(string)
			d.order.Remove(front)
			delete(d.seen, old)
		}
	}

	d.seen[key] = &dedupeEntry{at: time.Now(), element: d.order.PushBack(key)}
}

func (d *Dedupe) sweep() {
	ticker := time.NewTicker(d.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.mu.Lock()
			for front := d.order.Front(); front != nil; {
				key, _ := front.Value.(string)
				e := d.seen[key]
				if time.Since(e.at) < d.ttl {
					break
				}
				next := front.Next()
				d.order.Remove(front)
				delete(d.seen, key)
				front = next
			}
			d.mu.Unlock()
		}
	}
}
