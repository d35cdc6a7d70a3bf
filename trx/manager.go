package trx

import (
	"sync"
	"sync/atomic"

	"github.com/outofforest/latch/lock"
)

// Config stores transaction manager configuration.
type Config struct {
	// Locks is the lock manager transactions acquire through.
	Locks *lock.Manager
	// LastCommitID caps the total number of commits; a commit allocated past
	// it is rolled back.
	LastCommitID int64
	// LogDir is the directory commit logs are written to.
	LogDir string
}

// Manager drives transactions against a lock manager, allocates commit ids
// against the global cap and owns the per-worker transaction registry.
type Manager struct {
	config Config

	latch    sync.RWMutex
	registry map[uint64]*Trx
	number   int

	execCount atomic.Int64
}

// NewManager creates a transaction manager.
func NewManager(config Config) *Manager {
	return &Manager{
		config:   config,
		registry: map[uint64]*Trx{},
		number:   1,
	}
}

// Trx returns the worker's transaction context, creating it on first use.
// Lookups take the shared latch; only creation takes the exclusive one.
func (m *Manager) Trx(workerID uint64) (*Trx, error) {
	m.latch.RLock()
	t := m.registry[workerID]
	m.latch.RUnlock()

	if t != nil {
		return t, nil
	}

	m.latch.Lock()
	defer m.latch.Unlock()

	if t := m.registry[workerID]; t != nil {
		return t, nil
	}

	log, err := newCommitLog(m.config.LogDir, m.number)
	if err != nil {
		return nil, err
	}

	t = &Trx{
		m:      m,
		node:   m.config.Locks.NewTxn(),
		number: m.number,
		log:    log,
	}
	m.number++
	m.registry[workerID] = t
	return t, nil
}

// Close flushes and closes every worker's commit log.
func (m *Manager) Close() error {
	m.latch.Lock()
	defer m.latch.Unlock()

	var firstErr error
	for _, t := range m.registry {
		if err := t.log.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
