package snapshot

import "sync/atomic"

// Snapshot is a consistent capture of all registers, owned by its caller.
type Snapshot struct {
	cells []uint64
}

// Value returns the value captured for writer i.
func (s Snapshot) Value(i int) int32 {
	return int32(uint32(s.cells[i] & valueMask))
}

// Len returns the number of captured registers.
func (s Snapshot) Len() int {
	return len(s.cells)
}

// Buffer is one published version of a writer's snapshot. Readers referencing
// it are counted down on the inner counter; once the count reaches zero no
// reader holds the buffer and the writer may reuse it.
type Buffer struct {
	cells      []uint64
	inner      atomic.Int64
	recyclable atomic.Bool
}

func newBuffer(n int) *Buffer {
	return &Buffer{cells: make([]uint64, n)}
}

// Value returns the value captured for writer i.
func (b *Buffer) Value(i int) int32 {
	return int32(uint32(b.cells[i] & valueMask))
}

// Release ends a reader's use of an acquired buffer. The inner count rising
// to zero means the exchange already subtracted the outer count, so this
// reader was the last one out.
func (b *Buffer) Release() {
	if b.inner.Add(1) == 0 {
		b.recyclable.Store(true)
	}
}

// reset subtracts the outer refcount reported by the control-word swap. The
// release-time increments and this subtraction sum to zero exactly when all
// pre-swap readers have departed.
func (b *Buffer) reset(outer int64) {
	if b.inner.Add(-outer) == 0 {
		b.recyclable.Store(true)
	}
}

func (b *Buffer) install(s Snapshot) {
	copy(b.cells, s.cells)
	b.inner.Store(0)
	b.recyclable.Store(false)
}
