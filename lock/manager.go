package lock

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Manager maintains the lock table: one record per id, each with its FIFO
// queue of requests. The record table is built once and never mutated, so
// lookups run without any latch.
type Manager struct {
	records map[int64]*Record

	// Non-nil selects the single-global-mutex reference mode.
	global *sync.Mutex

	recycled atomic.Int64
	total    atomic.Int64
}

// NewManager creates the lock table for records 1..recordCount. With global
// set, acquire/release run under one mutex protecting the whole table.
func NewManager(recordCount int64, global bool) *Manager {
	m := &Manager{
		records: make(map[int64]*Record, recordCount),
	}
	for id := int64(1); id <= recordCount; id++ {
		m.records[id] = &Record{id: id, value: InitialRecordValue}
	}
	if global {
		m.global = &sync.Mutex{}
	}
	return m
}

// Acquire inserts a request of the given mode on the record's queue and
// blocks until it is compatible with everything before it. Returns ok=false
// iff a deadlock cycle was detected involving this request; the caller must
// abort its transaction.
func (m *Manager) Acquire(mode Mode, recordID int64, txn *Txn) (*Request, bool) {
	if m.global != nil {
		return m.acquireGlobal(mode, recordID, txn)
	}
	return m.acquire(mode, recordID, txn)
}

// Release logically removes the request from its queue, advances the head
// past obsolete nodes and wakes the successors that became compatible.
func (m *Manager) Release(r *Request) {
	if m.global != nil {
		m.releaseGlobal(r)
		return
	}
	m.release(r)
}

// Read returns the value of the record locked by r.
func (m *Manager) Read(r *Request) int64 {
	if r.getState() == Obsolete {
		panic(errors.Errorf("record %d read through an obsolete request", r.recordID))
	}
	return m.records[r.recordID].value
}

// Apply changes the record locked by r by diff, remembers the diff on the
// request for rollback and returns the new value.
func (m *Manager) Apply(r *Request, diff int64) int64 {
	if r.mode != Exclusive || r.getState() == Obsolete {
		panic(errors.Errorf("record %d changed without a live exclusive request", r.recordID))
	}
	r.diff = diff
	rec := m.records[r.recordID]
	rec.value += diff
	return rec.value
}

// RecycleStats returns how many acquisitions were served from recycling
// pools out of how many ran in total.
func (m *Manager) RecycleStats() (recycled, total int64) {
	return m.recycled.Load(), m.total.Load()
}
