package telegram

import (
	"container/list"
	"sync"
)

// dedupSet remembers recently seen update ids up to a fixed capacity.
// When full, the oldest id is evicted. Webhook deliveries are retried by
// the transport, so the same update can arrive more than once.
type dedupSet struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	seen     map[int64]*list.Element
}

func newDedupSet(capacity int) *dedupSet {
	if capacity <= 0 {
		capacity = 512
	}
	return &dedupSet{
		capacity: capacity,
		order:    list.New(),
		seen:     make(map[int64]*list.Element, capacity),
	}
}

// Seen records the id and reports whether it was already present.
func (d *dedupSet) Seen(id int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}
	d.seen[id] = d.order.PushBack(id)
	if d.order.Len() > d.capacity {
		oldest := d.order.Front()
		d.order.Remove(oldest)
		delete(d.seen, oldest.Value.(int64))
	}
	return false
}

// Len returns the number of remembered ids.
func (d *dedupSet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.order.Len()
}
