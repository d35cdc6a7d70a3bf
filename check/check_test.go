package check_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/latch/check"
)

func writeLog(t *testing.T, dir, name, content string) {
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestVerifyAcceptsConsistentLogs(t *testing.T) {
	requireT := require.New(t)
	dir := t.TempDir()

	// Two commits: (1,2,3) then (2,1,3) against records starting at 100.
	writeLog(t, dir, "thread1.txt", "1 1 2 3 100 201 0\n")
	writeLog(t, dir, "thread2.txt", "2 2 1 3 201 302 -201\n")

	correct, err := check.Verify(dir, 3, 2)
	requireT.NoError(err)
	requireT.True(correct)
}

func TestVerifyRejectsWrongValue(t *testing.T) {
	requireT := require.New(t)
	dir := t.TempDir()

	writeLog(t, dir, "thread1.txt", "1 1 2 3 100 200 0\n")

	correct, err := check.Verify(dir, 3, 1)
	requireT.NoError(err)
	requireT.False(correct)
}

func TestVerifyRejectsWrongCount(t *testing.T) {
	requireT := require.New(t)
	dir := t.TempDir()

	writeLog(t, dir, "thread1.txt", "1 1 2 3 100 201 0\n")

	correct, err := check.Verify(dir, 3, 2)
	requireT.NoError(err)
	requireT.False(correct)
}

func TestVerifyAcceptsEmptyDirectoryWithZeroCap(t *testing.T) {
	requireT := require.New(t)

	correct, err := check.Verify(t.TempDir(), 3, 0)
	requireT.NoError(err)
	requireT.True(correct)
}

func TestReadLogsMergesFilesAndSkipsBlankLines(t *testing.T) {
	requireT := require.New(t)
	dir := t.TempDir()

	writeLog(t, dir, "thread1.txt", "2 4 5 6 100 201 0\n\n")
	writeLog(t, dir, "thread2.txt", "1 1 2 3 100 201 0\n")

	logs, err := check.ReadLogs(dir)
	requireT.NoError(err)
	requireT.Len(logs, 2)

	table, ok := check.Replay(logs, 6)
	requireT.True(ok)
	requireT.Equal(int64(201), table[2])
	requireT.Equal(int64(201), table[5])
}

func TestReadLogsRejectsMalformedLine(t *testing.T) {
	requireT := require.New(t)
	dir := t.TempDir()

	writeLog(t, dir, "thread1.txt", "1 1 2 3 100 201\n")

	_, err := check.ReadLogs(dir)
	requireT.Error(err)
}
