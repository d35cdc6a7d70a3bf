package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
	"github.com/outofforest/photon"

	"github.com/outofforest/latch/snapshot"
)

var duration = flag.Duration("duration", 60*time.Second, "how long writers keep updating")

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: snapbench [flags] <thread count>")
		os.Exit(2)
	}
	threadCount, err := strconv.Atoi(flag.Arg(0))
	if err != nil || threadCount < 1 {
		fmt.Fprintln(os.Stderr, "thread count must be a positive integer")
		os.Exit(2)
	}

	ctx := logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig))
	log := logger.Get(ctx)

	fmt.Printf("Total thread count is %d\n", threadCount)

	array := snapshot.NewArray(threadCount)
	deadline := time.Now().Add(*duration)

	var total atomic.Int64

	err = parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		for i := range threadCount {
			spawn(fmt.Sprintf("writer-%02d", i), parallel.Continue, func(ctx context.Context) error {
				index := array.Register()
				seed := xxhash.Sum64(photon.NewFromValue(&index).B)
				rnd := rand.New(rand.NewSource(int64(seed)))

				var count int64
				for time.Now().Before(deadline) {
					array.Update(int32(rnd.Uint32()), index)
					count++
				}
				total.Add(count)
				return nil
			})
		}
		return nil
	})
	if err != nil {
		log.Error("benchmark failed", zap.Error(err))
		os.Exit(1)
	}

	fmt.Printf("Total update count is %d\n", total.Load())
}
