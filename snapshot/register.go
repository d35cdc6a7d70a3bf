package snapshot

import "sync/atomic"

const (
	timestampInc  = uint64(1) << 32
	timestampMask = uint64(0xffffffff) << 32
	valueMask     = uint64(0xffffffff)
)

// Register is a single-writer multi-reader cell. The write timestamp and the
// int32 value are packed into one word, so a reader obtains both with a single
// atomic load and the pair is always mutually consistent.
type Register struct {
	word atomic.Uint64
}

// Read returns the current value.
func (r *Register) Read() int32 {
	return int32(uint32(r.word.Load() & valueMask))
}

// Write stores the value under the next timestamp. Only the owning writer may
// call it.
func (r *Register) Write(value int32) {
	newTimestamp := r.word.Load()&timestampMask + timestampInc
	if newTimestamp == 0 {
		panic("register timestamp overflow")
	}
	r.word.Store(newTimestamp | uint64(uint32(value)))
}

func (r *Register) load() uint64 {
	return r.word.Load()
}
