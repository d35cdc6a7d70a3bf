package lock

import (
	"sync"
	"sync/atomic"

	"github.com/outofforest/mass"
)

const requestChunkSize = 1024

// Txn is the locking state of one transaction: the single request it is
// blocked on, its sleep/wake machinery, the requests it currently holds and
// its recycling pools.
type Txn struct {
	// The request this transaction is blocked on, nil when not waiting.
	// Published before deadlock detection runs so that a racing transaction
	// always sees at least one closed edge of a forming cycle.
	conflict atomic.Pointer[Request]

	mu   sync.Mutex
	cond *sync.Cond

	// Waits on the manager's global mutex instead of mu when the manager
	// runs in global-mutex mode.
	globalCond *sync.Cond

	// Requests acquired by the running transaction, in acquisition order.
	locks []*Request

	// Recycling pools keyed by record id, plus the arena fresh nodes come
	// from. Owner-only, so no synchronization.
	pools    map[int64][]*Request
	requests *mass.Mass[Request]
}

// NewTxn creates the locking state for one transaction owner.
func (m *Manager) NewTxn() *Txn {
	t := &Txn{
		pools:    map[int64][]*Request{},
		requests: mass.New[Request](requestChunkSize),
	}
	t.cond = sync.NewCond(&t.mu)
	if m.global != nil {
		t.globalCond = sync.NewCond(m.global)
	}
	return t
}

// Reset clears the conflict pointer and the acquired-request list. Called at
// transaction begin; the pools survive so requests keep being recycled.
func (t *Txn) Reset() {
	t.conflict.Store(nil)
	t.locks = t.locks[:0]
}

// Held returns the requests acquired by the running transaction, in order.
func (t *Txn) Held() []*Request {
	return t.locks
}
