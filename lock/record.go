package lock

import (
	"sync"
	"sync/atomic"
)

// InitialRecordValue is the value every record starts with.
const InitialRecordValue = 100

// Record is one lockable record: its value plus the FIFO queue of requests.
// Inserters touch only the tail, releasers advance only the head, so the two
// words sit on separate cache lines.
type Record struct {
	tail atomic.Pointer[Request]
	_    [120]byte
	head atomic.Pointer[Request]
	_    [120]byte

	// Serializes head advancement among releasers of this record. Inserters
	// and traversals never take it.
	headMu sync.Mutex

	value int64
	id    int64
}
