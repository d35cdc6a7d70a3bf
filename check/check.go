// Package check replays commit logs produced by the transaction manager and
// verifies that the logged values match a deterministic re-execution.
package check

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/outofforest/latch/lock"
)

// Log is one committed transaction read back from a thread log: the records
// it touched in order (read i, update j, update k) and the values it
// observed at commit time.
type Log struct {
	CommitID int64
	I, J, K  int64
	VI       int64
	VJ       int64
	VK       int64
}

// ReadLogs parses every thread*.txt in the directory.
func ReadLogs(dir string) ([]Log, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "thread*.txt"))
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var logs []Log
	for _, path := range paths {
		fileLogs, err := readFile(path)
		if err != nil {
			return nil, err
		}
		logs = append(logs, fileLogs...)
	}
	return logs, nil
}

// Replay executes the logs in commit-id order against a fresh record table
// and reports whether every logged value matches. It also returns the final
// table so callers can assert aggregate invariants.
func Replay(logs []Log, recordCount int64) (map[int64]int64, bool) {
	sorted := make([]Log, len(logs))
	copy(sorted, logs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].CommitID < sorted[j].CommitID
	})

	table := make(map[int64]int64, recordCount)
	for id := int64(1); id <= recordCount; id++ {
		table[id] = lock.InitialRecordValue
	}

	for _, l := range sorted {
		table[l.J] += table[l.I] + 1
		table[l.K] -= table[l.I]

		if table[l.I] != l.VI || table[l.J] != l.VJ || table[l.K] != l.VK {
			return table, false
		}
	}
	return table, true
}

// Verify reads the logs from the directory, checks that exactly lastCommitID
// transactions committed and that the replay matches every logged value.
func Verify(dir string, recordCount, lastCommitID int64) (bool, error) {
	logs, err := ReadLogs(dir)
	if err != nil {
		return false, err
	}
	if int64(len(logs)) != lastCommitID {
		return false, nil
	}
	_, ok := Replay(logs, recordCount)
	return ok, nil
}

func readFile(path string) ([]Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	var logs []Log
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 7 {
			return nil, errors.Errorf("malformed commit log line in %q: %q", path, line)
		}

		numbers := make([]int64, len(fields))
		for i, field := range fields {
			n, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "malformed number in %q: %q", path, line)
			}
			numbers[i] = n
		}

		logs = append(logs, Log{
			CommitID: numbers[0],
			I:        numbers[1],
			J:        numbers[2],
			K:        numbers[3],
			VI:       numbers[4],
			VJ:       numbers[5],
			VK:       numbers[6],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return logs, nil
}
