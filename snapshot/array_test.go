package snapshot

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
)

func TestSingleWriterScanSeesUpdate(t *testing.T) {
	requireT := require.New(t)

	a := NewArray(1)
	index := a.Register()
	requireT.Equal(0, index)

	a.Update(7, index)

	snap := a.Scan()
	requireT.Equal(1, snap.Len())
	requireT.Equal(int32(7), snap.Value(0))
}

func TestScanSeesLatestValuePerWriter(t *testing.T) {
	requireT := require.New(t)

	a := NewArray(2)
	w0 := a.Register()
	w1 := a.Register()

	a.Update(10, w0)
	a.Update(20, w0)
	a.Update(30, w1)

	snap := a.Scan()
	requireT.Equal(int32(20), snap.Value(w0))
	requireT.Equal(int32(30), snap.Value(w1))
}

func TestRegisterPanicsPastWriterCount(t *testing.T) {
	requireT := require.New(t)

	a := NewArray(1)
	a.Register()

	requireT.Panics(func() {
		a.Register()
	})
}

func TestUpdatePublishesSnapshotBeforeWriting(t *testing.T) {
	requireT := require.New(t)

	a := NewArray(2)
	w0 := a.Register()

	a.Update(5, w0)
	a.Update(6, w0)

	// The snapshot published with the second update was taken before the
	// write, so it still carries the first value.
	b := a.holders[w0].Acquire()
	requireT.Equal(int32(5), b.Value(w0))
	b.Release()

	requireT.Equal(int32(6), a.registers[w0].Read())
}

// Writers write their own update sequence number, so in every consistently
// captured cell the value equals the timestamp. A torn or mixed-generation
// snapshot breaks the equality; a snapshot travelling backwards between two
// scans of the same reader breaks monotonicity.
func TestScanConsistencyUnderConcurrentWriters(t *testing.T) {
	const (
		writers = 4
		updates = 2000
		scans   = 3000
	)

	requireT := require.New(t)
	ctx := logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig))

	a := NewArray(writers)

	requireT.NoError(parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		for w := range writers {
			spawn(fmt.Sprintf("writer-%02d", w), parallel.Continue, func(ctx context.Context) error {
				index := a.Register()
				for seq := int32(1); seq <= updates; seq++ {
					a.Update(seq, index)
				}
				return nil
			})
		}
		for s := range 2 {
			spawn(fmt.Sprintf("scanner-%02d", s), parallel.Continue, func(ctx context.Context) error {
				last := make([]uint64, writers)
				for range scans {
					snap := a.Scan()
					for i := range writers {
						cell := snap.cells[i]
						if cell>>32 != uint64(uint32(cell)) {
							return errors.Errorf("inconsistent cell %d: timestamp %d, value %d",
								i, cell>>32, uint32(cell))
						}
						if cell>>32 < last[i]>>32 {
							return errors.Errorf("scan went backwards on cell %d", i)
						}
						last[i] = cell
					}
				}
				return nil
			})
		}
		return nil
	}))
}
