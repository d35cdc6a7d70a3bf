package snapshot

import "sync/atomic"

const (
	refcountInc = uint64(1) << 32
	indexMask   = uint64(0xffffffff)
)

// Holder publishes one writer's most recent snapshot to concurrent readers.
// The control word packs (outer refcount, current index) into 64 bits so that
// a single fetch-add both bumps the refcount and reports which buffer it
// landed on. Readers cannot decrement the control word after the writer has
// swung the index away, so the final reader is counted down through the
// buffer's inner counter and reconciled at the next exchange.
type Holder struct {
	control atomic.Uint64
	_       [56]byte
	buffers []*Buffer
	_       [40]byte
}

func (h *Holder) init(writers int) {
	h.buffers = make([]*Buffer, writers+1)
}

// Acquire returns the currently published buffer, protecting it from reuse.
// Wait-free: one fetch-add, no retries.
func (h *Holder) Acquire() *Buffer {
	word := h.control.Add(refcountInc)
	return h.buffers[word&indexMask]
}

// Exchange installs the snapshot as the current version. A free slot always
// exists because the holder owns one more buffer than there are writers able
// to keep one in flight.
func (h *Holder) Exchange(s Snapshot) {
	index := -1
	for i, b := range h.buffers {
		if b == nil || b.recyclable.Load() {
			index = i
			break
		}
	}
	if index < 0 {
		panic("snapshot holder exhausted: no recyclable buffer")
	}

	b := h.buffers[index]
	if b == nil {
		b = newBuffer(s.Len())
		h.buffers[index] = b
	}
	b.install(s)

	old := h.control.Swap(uint64(index))
	oldIndex := int(old & indexMask)
	oldRefcount := int64(old >> 32)
	if oldIndex != index {
		h.buffers[oldIndex].reset(oldRefcount)
	}
}
