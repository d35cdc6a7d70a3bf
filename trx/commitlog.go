package trx

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
)

// commitLog appends one line per committed transaction to thread<N>.txt:
// the commit id, the touched record ids in order, then their values. The
// file is owned by a single worker, so lines from different workers can only
// interleave at line boundaries.
type commitLog struct {
	f *os.File
	w *bufio.Writer
}

func newCommitLog(dir string, number int) (*commitLog, error) {
	path := filepath.Join(dir, fmt.Sprintf("thread%d.txt", number))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "opening commit log %q failed", path)
	}
	return &commitLog{f: f, w: bufio.NewWriter(f)}, nil
}

func (l *commitLog) append(commitID int64, ids, values []int64) error {
	buf := strconv.AppendInt(nil, commitID, 10)
	for _, id := range ids {
		buf = append(buf, ' ')
		buf = strconv.AppendInt(buf, id, 10)
	}
	for _, v := range values {
		buf = append(buf, ' ')
		buf = strconv.AppendInt(buf, v, 10)
	}
	buf = append(buf, '\n')

	if _, err := l.w.Write(buf); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(l.w.Flush())
}

func (l *commitLog) close() error {
	if err := l.w.Flush(); err != nil {
		_ = l.f.Close()
		return errors.WithStack(err)
	}
	return errors.WithStack(l.f.Close())
}
