package lock

// Global-mutex reference mode. One mutex protects the whole lock table, the
// queues need none of the id or stall-and-restart machinery, and waiters
// sleep on the global mutex itself. Externally the behavior is identical to
// the queue mode.

func (m *Manager) acquireGlobal(mode Mode, recordID int64, txn *Txn) (*Request, bool) {
	rec := m.records[recordID]

	m.global.Lock()
	defer m.global.Unlock()

	r := m.nextRequest(txn, recordID, false)
	r.reinitGlobal(mode)
	txn.locks = append(txn.locks, r)

	if prev := rec.tail.Load(); prev != nil {
		prev.next.Store(r)
	} else {
		rec.head.Store(r)
	}
	rec.tail.Store(r)

	txn.conflict.Store(r)

	waiting := make([]*Request, 0, 8)
	for target := rec.head.Load(); target != r; target = target.next.Load() {
		waiting = append(waiting, target)
	}

	for i := len(waiting) - 1; i >= 0; i-- {
		target := waiting[i]

		if target.getState() == Obsolete {
			continue
		}

		if r.mode == Exclusive || target.mode == Exclusive {
			r.setState(Wait)

			if m.isDeadlockGlobal(txn, waiting) {
				r.setState(Obsolete)
				txn.conflict.Store(nil)
				return nil, false
			}
			break
		}
	}

	if r.getState() == Wait {
		if !r.signaled.Load() {
			txn.globalCond.Wait()
		}
		r.setState(Active)
	}

	txn.conflict.Store(nil)
	return r, true
}

func (m *Manager) releaseGlobal(r *Request) {
	rec := m.records[r.recordID]

	m.global.Lock()
	defer m.global.Unlock()

	r.setState(Obsolete)

	target := rec.head.Load()
	if target.getState() != Obsolete {
		return
	}

	for {
		prev := target
		target = target.next.Load()
		if target == nil {
			return
		}

		rec.head.Store(target)
		prev.headPassed.Store(true)

		if target.getState() != Obsolete {
			break
		}
	}

	m.wakeGlobal(target)

	if target.mode == Shared {
		for next := target.next.Load(); next != nil; next = next.next.Load() {
			if next.getState() == Obsolete {
				continue
			}
			if next.mode == Exclusive {
				break
			}
			m.wakeGlobal(next)
		}
	}
}

func (m *Manager) wakeGlobal(r *Request) {
	if r.getState() == Wait {
		r.owner.globalCond.Signal()
	}
	r.signaled.Store(true)
}

// isDeadlockGlobal is the detector under the global mutex: the graph is
// frozen, so a plain BFS without stability checks suffices.
func (m *Manager) isDeadlockGlobal(self *Txn, waiting []*Request) bool {
	queue := make([]*Request, 0, len(waiting))
	for i := len(waiting) - 1; i >= 0; i-- {
		if waiting[i].getState() != Obsolete {
			queue = append(queue, waiting[i])
		}
	}

	visited := map[*Txn]struct{}{}

	for len(queue) > 0 {
		target := queue[0]
		queue = queue[1:]

		if _, ok := visited[target.owner]; ok || target.getState() == Obsolete {
			continue
		}

		txn := target.owner
		conflict := txn.conflict.Load()
		if conflict == nil {
			visited[txn] = struct{}{}
			continue
		}

		rec := m.records[conflict.recordID]
		for node := rec.head.Load(); node != conflict; node = node.next.Load() {
			if node.owner == self && node.getState() != Obsolete {
				return true
			}
			queue = append(queue, node)
		}

		visited[txn] = struct{}{}
	}

	return false
}
