package lock

// isDeadlock reports whether the caller waiting on the collected predecessors
// closes a cycle back to itself. It BFSes the wait-for graph over conflict
// pointers. The pointers race with the transactions that own them, so every
// walk double-reads for stability and discards itself on divergence: a moved
// conflict means that transaction was not blocked, and if it blocks again
// forming a cycle, its own detection will run against our fixed conflict
// pointer and report the cycle from its side. At least one participant of a
// true cycle always detects it.
func (m *Manager) isDeadlock(self *Txn, waiting []*Request) bool {
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
		conflictID := conflict.lockID.Load()

		rec := m.records[conflict.recordID]

		var collected []*Request
		node := rec.head.Load()
		for node != conflict {
			// The conflict moved under us: that transaction is running, not
			// blocked, so no deadlock goes through this edge.
			if txn.conflict.Load() != conflict || conflict.lockID.Load() != conflictID {
				collected = collected[:0]
				break
			}

			if node.owner == self && node.getState() != Obsolete {
				return true
			}

			collected = append(collected, node)

			node = node.next.Load()
			if node == nil || node.lockID.Load() > conflictID {
				// The walk ran off the list or onto a recycled node;
				// restart from the current head.
				collected = collected[:0]
				node = rec.head.Load()

				// The head overtook the conflict: it was already granted.
				if node.lockID.Load() >= conflictID {
					break
				}
			}
		}

		queue = append(queue, collected...)
		visited[txn] = struct{}{}
	}

	return false
}
