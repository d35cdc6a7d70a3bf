package trx

import (
	"github.com/pkg/errors"

	"github.com/outofforest/latch/lock"
)

// ErrConflict is returned by Find and Update when acquiring the lock would
// deadlock. The caller must Abort the transaction and may retry it.
var ErrConflict = errors.New("deadlock detected, transaction must abort")

// ErrCapExceeded is returned by Commit when the commit id allocated for the
// transaction exceeds the configured cap. The transaction is rolled back; the
// caller should treat its workload as complete.
var ErrCapExceeded = errors.New("global commit cap exceeded")

// Trx is one worker's transaction context. It is created once per worker by
// the manager and reused across transactions; Begin starts a fresh one.
type Trx struct {
	m      *Manager
	node   *lock.Txn
	number int
	log    *commitLog
}

// Number returns the 1-based thread number naming the commit log file.
func (t *Trx) Number() int {
	return t.number
}

// Begin starts a new transaction on this context.
func (t *Trx) Begin() {
	t.node.Reset()
}

// Find acquires a shared lock on the record and returns its value.
func (t *Trx) Find(recordID int64) (int64, error) {
	r, ok := t.m.config.Locks.Acquire(lock.Shared, recordID, t.node)
	if !ok {
		return 0, errors.WithStack(ErrConflict)
	}
	return t.m.config.Locks.Read(r), nil
}

// Update acquires an exclusive lock on the record, changes its value by diff
// and returns the new value.
func (t *Trx) Update(recordID, diff int64) (int64, error) {
	r, ok := t.m.config.Locks.Acquire(lock.Exclusive, recordID, t.node)
	if !ok {
		return 0, errors.WithStack(ErrConflict)
	}
	return t.m.config.Locks.Apply(r, diff), nil
}

// Abort undoes every change made by the transaction and releases its locks.
// Must be called after Find or Update returned ErrConflict.
func (t *Trx) Abort() {
	t.rollbackAndRelease()
}

// Commit allocates the transaction's commit id. Past the global cap the
// transaction is rolled back and ErrCapExceeded returned. Otherwise the
// (record, value) pairs are logged to this worker's commit log and the locks
// released.
func (t *Trx) Commit() (int64, error) {
	commitID := t.m.execCount.Add(1)

	if commitID > t.m.config.LastCommitID {
		t.rollbackAndRelease()
		return -1, errors.WithStack(ErrCapExceeded)
	}

	held := t.node.Held()
	ids := make([]int64, 0, len(held))
	values := make([]int64, 0, len(held))
	for _, r := range held {
		ids = append(ids, r.RecordID())
		values = append(values, t.m.config.Locks.Read(r))
		t.m.config.Locks.Release(r)
	}

	if err := t.log.append(commitID, ids, values); err != nil {
		return 0, err
	}
	return commitID, nil
}

func (t *Trx) rollbackAndRelease() {
	for _, r := range t.node.Held() {
		if r.Mode() == lock.Exclusive && !r.Obsolete() {
			t.m.config.Locks.Apply(r, -r.Diff())
		}
		t.m.config.Locks.Release(r)
	}
}
