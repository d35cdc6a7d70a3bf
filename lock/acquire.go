package lock

import "runtime"

func (m *Manager) acquire(mode Mode, recordID int64, txn *Txn) (*Request, bool) {
	rec := m.records[recordID]

	r := m.nextRequest(txn, recordID, true)
	r.reinit(mode)
	txn.locks = append(txn.locks, r)

	// Install at the tail, then link through the previous tail. Linking
	// before assigning the id guarantees traversals always see a connected
	// list even while the id is still pending.
	prev := rec.tail.Swap(r)
	if prev != nil {
		prev.next.Store(r)

		for prev.lockID.Load() == unassignedID || rec.head.Load() == nil {
			runtime.Gosched()
		}

		r.lockID.Store(prev.lockID.Load() + 1)
		prev.idPassed.Store(true)
	} else {
		r.lockID.Store(0)
		rec.head.Store(r)
	}

	// The conflict pointer is published after insertion and before any
	// deadlock check, and stays fixed until the check is done. A racing
	// transaction closing a cycle through us is then guaranteed to see
	// this edge even if our own check misses the one it is creating.
	txn.conflict.Store(r)

	waiting := m.collectPredecessors(rec, r)

	for i := len(waiting) - 1; i >= 0; i-- {
		target := waiting[i]

		if target.getState() == Obsolete || target.lockID.Load() > r.lockID.Load() {
			continue
		}

		if r.mode == Exclusive || target.mode == Exclusive {
			r.setState(Wait)

			// The target may have been released or recycled since the
			// collection; then there is nothing to wait for here.
			if target.getState() == Obsolete || target.lockID.Load() > r.lockID.Load() {
				r.setState(Active)
				continue
			}

			if m.isDeadlock(txn, waiting) {
				r.setState(Obsolete)
				txn.conflict.Store(nil)
				return nil, false
			}
			break
		}
	}

	if r.getState() == Wait {
		txn.mu.Lock()
		if !r.signaled.Load() {
			txn.cond.Wait()
		}
		txn.mu.Unlock()
		r.setState(Active)
	}

	txn.conflict.Store(nil)
	return r, true
}

// collectPredecessors walks from the head to r, gathering every request that
// may be logically before r. A target whose id jumped past r's, or whose
// next pointer was observed nil mid-list, was recycled under the walk; the
// collection is discarded and restarted from the current head. The result is
// a superset of the requests logically before r.
func (m *Manager) collectPredecessors(rec *Record, r *Request) []*Request {
	waiting := make([]*Request, 0, 8)

	target := rec.head.Load()
	for target != r {
		if target.lockID.Load() > r.lockID.Load() {
			waiting = waiting[:0]
			target = rec.head.Load()
			continue
		}

		waiting = append(waiting, target)

		target = target.next.Load()
		if target == nil {
			waiting = waiting[:0]
			target = rec.head.Load()
		}
	}
	return waiting
}
