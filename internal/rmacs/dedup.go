package rmacs

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// dedupExpiry is the retention window for a processed message_id. A
// BCQI alert is resent twice per socket across at most a handful of
// interfaces, so 10 minutes is comfortably larger than any
// duplicate-delivery cluster.
const dedupExpiry = 10 * time.Minute

// dedupCapacity bounds the set's memory footprint independent of TTL.
// A cluster is bounded by (sockets × 2 resends); 10,000 entries covers
// mesh deployments far larger than this protocol is designed for.
const dedupCapacity = 10_000

// Dedup suppresses messages whose message_id has already been seen,
// guarded internally so it can be shared across multiple receive
// goroutines.
type Dedup struct {
	mu   sync.Mutex
	seen *lru.LRU[string, struct{}]
}

// NewDedup creates an empty, time-and-size-bounded processed-ID set.
func NewDedup() *Dedup {
	return &Dedup{seen: lru.NewLRU[string, struct{}](dedupCapacity, nil, dedupExpiry)}
}

// Accept returns true the first time id is seen and false on every
// subsequent call within the expiry window. The check and insert happen
// under a single lock: the LRU's own internal locking does not cover a
// separate Get-then-Add pair, which would race two concurrent receivers
// of the same message_id.
func (d *Dedup) Accept(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen.Get(id); ok {
		return false
	}
	d.seen.Add(id, struct{}{})
	return true
}

// Len reports the number of message IDs currently tracked, exposed for
// the operator status endpoint.
func (d *Dedup) Len() int {
	return d.seen.Len()
}
