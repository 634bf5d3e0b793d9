package recorder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/analogrec/internal/model"
)

// DefaultPrefix is the file name prefix for new logs.
const DefaultPrefix = "analog_log_"

// maxNameAttempts bounds the sequence suffixes tried when a name is taken.
const maxNameAttempts = 1000

// Log is an append-only CSV record stream for one session.
type Log struct {
	file  *os.File
	w     *csv.Writer
	path  string
	count int
}

func logBase(prefix string, now time.Time) string {
	return prefix + now.Format("20060102_150405")
}

// Create opens a new log in dir. It never overwrites an existing file: when
// the timestamped name is taken a numeric suffix is appended.
func Create(dir, prefix string, now time.Time) (*Log, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	base := logBase(prefix, now)
	for i := 0; i < maxNameAttempts; i++ {
		name := base + ".csv"
		if i > 0 {
			name = fmt.Sprintf("%s_%d.csv", base, i)
		}
		path := filepath.Join(dir, name)
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return nil, fmt.Errorf("failed to create log: %w", err)
		}
		return &Log{file: file, w: csv.NewWriter(file), path: path}, nil
	}
	return nil, fmt.Errorf("failed to create log: no free name for %s in %s", base, dir)
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// Count returns the number of records written.
func (l *Log) Count() int {
	return l.count
}

// Append writes one record for frame observed at ts. The row is flushed
// before returning so write errors surface on the call that caused them.
func (l *Log) Append(frame model.Frame, ts time.Time) error {
	if err := l.w.Write(FormatRecord(NewRecord(frame, ts))); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		return fmt.Errorf("failed to flush record: %w", err)
	}
	l.count++
	return nil
}

// Close flushes and closes the log file.
func (l *Log) Close() error {
	l.w.Flush()
	if err := l.w.Error(); err != nil {
		if cerr := l.file.Close(); cerr != nil {
			// Flush error takes precedence.
			_ = cerr
		}
		return fmt.Errorf("failed to flush log: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("failed to close log: %w", err)
	}
	return nil
}
