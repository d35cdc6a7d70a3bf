package trx_test

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"

	"github.com/outofforest/latch/check"
	"github.com/outofforest/latch/lock"
	"github.com/outofforest/latch/trx"
)

func newManager(t *testing.T, recordCount, lastCommitID int64, global bool) (*trx.Manager, string) {
	dir := t.TempDir()
	locks := lock.NewManager(recordCount, global)
	m := trx.NewManager(trx.Config{
		Locks:        locks,
		LastCommitID: lastCommitID,
		LogDir:       dir,
	})
	return m, dir
}

func TestSingleWorkerDeterministicRun(t *testing.T) {
	requireT := require.New(t)
	m, dir := newManager(t, 3, 1, false)

	tx, err := m.Trx(1)
	requireT.NoError(err)
	requireT.Equal(1, tx.Number())

	tx.Begin()

	vi, err := tx.Find(1)
	requireT.NoError(err)
	requireT.Equal(int64(100), vi)

	vj, err := tx.Update(2, vi+1)
	requireT.NoError(err)
	requireT.Equal(int64(201), vj)

	vk, err := tx.Update(3, -vi)
	requireT.NoError(err)
	requireT.Equal(int64(0), vk)

	commitID, err := tx.Commit()
	requireT.NoError(err)
	requireT.Equal(int64(1), commitID)

	requireT.NoError(m.Close())

	content, err := os.ReadFile(filepath.Join(dir, "thread1.txt"))
	requireT.NoError(err)
	requireT.Equal("1 1 2 3 100 201 0\n", string(content))

	correct, err := check.Verify(dir, 3, 1)
	requireT.NoError(err)
	requireT.True(correct)
}

func TestAbortRollsBack(t *testing.T) {
	requireT := require.New(t)
	m, _ := newManager(t, 2, 100, false)

	tx, err := m.Trx(1)
	requireT.NoError(err)

	tx.Begin()
	v, err := tx.Update(1, 5)
	requireT.NoError(err)
	requireT.Equal(int64(105), v)
	tx.Abort()

	tx.Begin()
	v, err = tx.Find(1)
	requireT.NoError(err)
	requireT.Equal(int64(100), v)
	tx.Abort()
}

func TestCommitPastCapRollsBack(t *testing.T) {
	requireT := require.New(t)
	m, dir := newManager(t, 3, 0, false)

	tx, err := m.Trx(1)
	requireT.NoError(err)

	tx.Begin()
	_, err = tx.Update(1, 7)
	requireT.NoError(err)

	commitID, err := tx.Commit()
	requireT.ErrorIs(err, trx.ErrCapExceeded)
	requireT.Equal(int64(-1), commitID)

	// The transaction left no trace: the value is rolled back and nothing
	// was logged.
	tx.Begin()
	v, err := tx.Find(1)
	requireT.NoError(err)
	requireT.Equal(int64(100), v)
	tx.Abort()

	requireT.NoError(m.Close())

	logs, err := check.ReadLogs(dir)
	requireT.NoError(err)
	requireT.Empty(logs)
}

func TestTrxReturnsSameContextPerWorker(t *testing.T) {
	requireT := require.New(t)
	m, _ := newManager(t, 1, 0, false)

	t1, err := m.Trx(7)
	requireT.NoError(err)
	t2, err := m.Trx(7)
	requireT.NoError(err)
	requireT.Same(t1, t2)

	t3, err := m.Trx(8)
	requireT.NoError(err)
	requireT.NotSame(t1, t3)
	requireT.Equal(t1.Number()+1, t3.Number())
}

func TestConcurrentWorkersProduceCorrectLogs(t *testing.T) {
	tests := []struct {
		name   string
		global bool
	}{
		{name: "queue", global: false},
		{name: "global", global: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			const (
				workers      = 8
				records      = 10
				lastCommitID = 300
			)

			requireT := require.New(t)
			ctx := logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig))

			m, dir := newManager(t, records, lastCommitID, test.global)

			requireT.NoError(parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
				for i := range workers {
					workerID := uint64(i + 1)
					spawn(fmt.Sprintf("worker-%02d", workerID), parallel.Continue, func(ctx context.Context) error {
						tx, err := m.Trx(workerID)
						if err != nil {
							return err
						}
						return runWorker(tx, rand.New(rand.NewSource(int64(workerID))), records)
					})
				}
				return nil
			}))

			requireT.NoError(m.Close())

			logs, err := check.ReadLogs(dir)
			requireT.NoError(err)
			requireT.Len(logs, lastCommitID)

			table, ok := check.Replay(logs, records)
			requireT.True(ok)

			// Each commit adds exactly +1 net to the record set.
			requireT.Equal(int64(records*lock.InitialRecordValue+lastCommitID), lo.Sum(lo.Values(table)))

			correct, err := check.Verify(dir, records, lastCommitID)
			requireT.NoError(err)
			requireT.True(correct)
		})
	}
}

func runWorker(tx *trx.Trx, rnd *rand.Rand, recordCount int64) error {
	for {
		i := rnd.Int63n(recordCount) + 1
		j := rnd.Int63n(recordCount) + 1
		k := rnd.Int63n(recordCount) + 1
		if i == j || i == k || j == k {
			continue
		}

		tx.Begin()

		vi, err := tx.Find(i)
		if err != nil {
			if errors.Is(err, trx.ErrConflict) {
				tx.Abort()
				continue
			}
			return err
		}

		if _, err := tx.Update(j, vi+1); err != nil {
			if errors.Is(err, trx.ErrConflict) {
				tx.Abort()
				continue
			}
			return err
		}

		if _, err := tx.Update(k, -vi); err != nil {
			if errors.Is(err, trx.ErrConflict) {
				tx.Abort()
				continue
			}
			return err
		}

		if _, err := tx.Commit(); err != nil {
			if errors.Is(err, trx.ErrCapExceeded) {
				return nil
			}
			return err
		}
	}
}
