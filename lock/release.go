package lock

func (m *Manager) release(r *Request) {
	rec := m.records[r.recordID]

	r.setState(Obsolete)

	rec.headMu.Lock()
	defer rec.headMu.Unlock()

	target := rec.head.Load()

	// Another releaser will advance the head once this node goes obsolete.
	if target.getState() != Obsolete {
		return
	}

	for {
		prev := target
		target = target.next.Load()
		if target == nil {
			// Queue exhausted; the head stays on the last node so that the
			// next inserter still finds it published.
			return
		}

		rec.head.Store(target)
		prev.headPassed.Store(true)

		if target.getState() != Obsolete {
			break
		}
	}

	m.wake(target)

	// A shared head admits every consecutive shared request behind it.
	if target.mode == Shared {
		for next := target.next.Load(); next != nil; next = next.next.Load() {
			if next.getState() == Obsolete {
				continue
			}
			if next.mode == Exclusive {
				break
			}
			m.wake(next)
		}
	}
}

func (m *Manager) wake(r *Request) {
	txn := r.owner

	txn.mu.Lock()
	if r.getState() == Wait {
		txn.cond.Signal()
	}
	r.signaled.Store(true)
	txn.mu.Unlock()
}
