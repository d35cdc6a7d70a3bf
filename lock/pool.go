package lock

// nextRequest returns a recyclable request from the owner's per-record pool,
// or arena-allocates a fresh one and adds it to the pool. In queue mode a
// node is reusable only when it is obsolete, has handed its id to its
// successor and has been passed by the head; in global-mutex mode the id
// guard does not apply.
func (m *Manager) nextRequest(txn *Txn, recordID int64, queueGuards bool) *Request {
	m.total.Add(1)

	pool := txn.pools[recordID]
	for _, r := range pool {
		if r.getState() != Obsolete || !r.headPassed.Load() {
			continue
		}
		if queueGuards && !r.idPassed.Load() {
			continue
		}
		m.recycled.Add(1)
		return r
	}

	r := txn.requests.New()
	r.recordID = recordID
	r.owner = txn
	r.lockID.Store(unassignedID)
	txn.pools[recordID] = append(pool, r)
	return r
}
