package recorder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/verte-zerg/analogrec/internal/model"
)

// ReadLog parses every row of the log at path in order, calling fn for each.
func ReadLog(path string, fn func(model.Record) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only log.
			_ = cerr
		}
	}()
	return ReadRecords(file, fn)
}

// ReadRecords parses CSV rows from r.
func ReadRecords(r io.Reader, fn func(model.Record) error) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 3
	reader.ReuseRecord = true
	for line := 1; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read row %d: %w", line, err)
		}
		rec, err := ParseRecord(fields)
		if err != nil {
			return fmt.Errorf("row %d: %w", line, err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
