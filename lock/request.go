package lock

import (
	"math"
	"sync/atomic"
)

// Mode of a lock request.
type Mode uint32

// Request modes.
const (
	Shared Mode = iota
	Exclusive
)

// State of a lock request on its record queue.
type State uint32

// Request states.
const (
	Active State = iota
	Wait
	Obsolete
)

const unassignedID = uint64(math.MaxUint64)

// Request is a node on a record's FIFO lock queue. Requests are recycled by
// their owning transaction, never freed. Because memory is reused, a node's
// physical identity is unstable; the logical id plus the idPassed/headPassed
// guards prove a node is unreachable from any live traversal before reuse.
type Request struct {
	recordID int64
	owner    *Txn

	mode  Mode
	state atomic.Uint32

	// Logical position on the record queue, stable under recycling.
	lockID atomic.Uint64
	next   atomic.Pointer[Request]

	// Amount applied to the record by an Exclusive holder, kept for rollback.
	diff int64

	// This request handed its successor the successor's lock id.
	idPassed atomic.Bool
	// The record head moved past this request.
	headPassed atomic.Bool
	// The owner was woken for this request.
	signaled atomic.Bool
}

// RecordID returns the id of the record this request locks.
func (r *Request) RecordID() int64 {
	return r.recordID
}

// Mode returns the request mode.
func (r *Request) Mode() Mode {
	return r.mode
}

// Obsolete reports whether the request has been released.
func (r *Request) Obsolete() bool {
	return r.getState() == Obsolete
}

// Diff returns the amount the request applied to its record.
func (r *Request) Diff() int64 {
	return r.diff
}

func (r *Request) setState(s State) {
	r.state.Store(uint32(s))
}

func (r *Request) getState() State {
	return State(r.state.Load())
}

// reinit prepares a recycled or fresh node for a queue-mode acquisition.
func (r *Request) reinit(mode Mode) {
	r.lockID.Store(unassignedID)
	r.next.Store(nil)
	r.mode = mode
	r.diff = 0
	r.setState(Active)
	r.idPassed.Store(false)
	r.headPassed.Store(false)
	r.signaled.Store(false)
}

// reinitGlobal prepares a node for a global-mutex acquisition. Lock ids and
// id passing play no role there, the global mutex orders everything.
func (r *Request) reinitGlobal(mode Mode) {
	r.next.Store(nil)
	r.mode = mode
	r.diff = 0
	r.setState(Active)
	r.headPassed.Store(false)
	r.signaled.Store(false)
}
