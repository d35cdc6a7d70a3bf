package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	"github.com/cespare/xxhash"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/photon"

	"github.com/outofforest/latch/check"
	"github.com/outofforest/latch/lock"
	"github.com/outofforest/latch/trx"
)

var (
	global = flag.Bool("global", false, "run the lock manager in single-global-mutex mode")
	dir    = flag.String("dir", ".", "directory commit logs are written to")
)

func main() {
	flag.Parse()

	if flag.NArg() < 3 {
		fmt.Fprintln(os.Stderr, "usage: trxbench [flags] <thread count> <record count> <last commit id>")
		os.Exit(2)
	}
	threadCount, err1 := strconv.ParseInt(flag.Arg(0), 10, 64)
	recordCount, err2 := strconv.ParseInt(flag.Arg(1), 10, 64)
	lastCommitID, err3 := strconv.ParseInt(flag.Arg(2), 10, 64)
	if err1 != nil || err2 != nil || err3 != nil || threadCount < 1 || recordCount < 1 || lastCommitID < 0 {
		fmt.Fprintln(os.Stderr, "arguments must be positive integers")
		os.Exit(2)
	}

	ctx := logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig))
	log := logger.Get(ctx)

	locks := lock.NewManager(recordCount, *global)
	trxs := trx.NewManager(trx.Config{
		Locks:        locks,
		LastCommitID: lastCommitID,
		LogDir:       *dir,
	})

	start := time.Now()

	err := parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		for i := range threadCount {
			workerID := uint64(i + 1)
			spawn(fmt.Sprintf("worker-%02d", workerID), parallel.Continue, func(ctx context.Context) error {
				t, err := trxs.Trx(workerID)
				if err != nil {
					return err
				}
				seed := xxhash.Sum64(photon.NewFromValue(&workerID).B)
				return runWorker(ctx, t, rand.New(rand.NewSource(int64(seed))), recordCount)
			})
		}
		return nil
	})
	if err != nil {
		log.Error("benchmark failed", zap.Error(err))
		os.Exit(1)
	}

	elapsed := time.Since(start)

	if err := trxs.Close(); err != nil {
		log.Error("closing commit logs failed", zap.Error(err))
		os.Exit(1)
	}

	correct, err := check.Verify(*dir, recordCount, lastCommitID)
	if err != nil {
		log.Error("correctness check failed", zap.Error(err))
		os.Exit(1)
	}

	recycled, total := locks.RecycleStats()

	fmt.Println("#########################################################################################")
	fmt.Printf("1. The number of threads : %d\n", threadCount)
	fmt.Printf("2. The number of records : %d\n", recordCount)
	fmt.Printf("3. Last commit ID : %d\n", lastCommitID)
	fmt.Printf("4. Throughput (total number of commits / miliseconds) : %f\n",
		float64(lastCommitID)/float64(elapsed.Milliseconds()))
	fmt.Printf("5. Correctness : %t\n", correct)
	fmt.Printf("6. Percentage of Recycled Locks : %f\n", 100*float64(recycled)/float64(total))
	fmt.Println("#########################################################################################")
}

// runWorker loops the benchmark transaction: read Ri, add Ri+1 to Rj,
// subtract Ri from Rk, commit. Deadlocked transactions are aborted and
// retried; the worker stops once the global commit cap is reached.
func runWorker(ctx context.Context, t *trx.Trx, rnd *rand.Rand, recordCount int64) error {
	for {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}

		i := rnd.Int63n(recordCount) + 1
		j := rnd.Int63n(recordCount) + 1
		k := rnd.Int63n(recordCount) + 1
		if i == j || i == k || j == k {
			continue
		}

		t.Begin()

		vi, err := t.Find(i)
		if err != nil {
			if errors.Is(err, trx.ErrConflict) {
				t.Abort()
				continue
			}
			return err
		}

		if _, err := t.Update(j, vi+1); err != nil {
			if errors.Is(err, trx.ErrConflict) {
				t.Abort()
				continue
			}
			return err
		}

		if _, err := t.Update(k, -vi); err != nil {
			if errors.Is(err, trx.ErrConflict) {
				t.Abort()
				continue
			}
			return err
		}

		if _, err := t.Commit(); err != nil {
			if errors.Is(err, trx.ErrCapExceeded) {
				return nil
			}
			return err
		}
	}
}
