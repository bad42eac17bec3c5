// Package records manages the append-only page record log (docs.jsonl).
// Each line is one JSON-encoded PageRecord. The log is written by a single
// writer and never rewritten.
package records

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	dexerrors "github.com/Aman-CERP/pagedex/internal/errors"
)

// maxLineBytes bounds a single record line. Dense pages can exceed
// bufio's 64 KiB default by a wide margin.
const maxLineBytes = 64 * 1024 * 1024

// PageRecord is the unit of extracted content: one non-empty page.
type PageRecord struct {
	ID   int    `json:"id"`
	Doc  string `json:"doc"`
	Page int    `json:"page"` // zero-based
	Text string `json:"text"`
	Norm string `json:"norm"`
}

// Writer appends records to the log.
type Writer struct {
	f       *os.File
	w       *bufio.Writer
	written int64
}

// OpenWriter opens path for appending, creating it and its parent directory.
func OpenWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, dexerrors.PersistenceError("create record log directory", err).WithDetail("path", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, dexerrors.PersistenceError("open record log", err).WithDetail("path", path)
	}
	return &Writer{f: f, w: bufio.NewWriter(f)}, nil
}

// Append writes rec as one line and flushes it, so a crash loses at most the
// record being written. Returns the number of bytes appended.
func (w *Writer) Append(rec PageRecord) (int, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode record %d: %w", rec.ID, err)
	}
	data = append(data, '\n')
	if _, err := w.w.Write(data); err != nil {
		return 0, dexerrors.PersistenceError("append record", err)
	}
	if err := w.w.Flush(); err != nil {
		return 0, dexerrors.PersistenceError("append record", err)
	}
	w.written += int64(len(data))
	return len(data), nil
}

// Written returns the bytes appended through this writer.
func (w *Writer) Written() int64 {
	return w.written
}

// Close flushes and closes the log.
func (w *Writer) Close() error {
	if w.f == nil {
		return nil
	}
	flushErr := w.w.Flush()
	closeErr := w.f.Close()
	w.f = nil
	if flushErr != nil {
		return dexerrors.PersistenceError("flush record log", flushErr)
	}
	if closeErr != nil {
		return dexerrors.PersistenceError("close record log", closeErr)
	}
	return nil
}

// Each reads the log at path line by line and calls fn for every record.
// Blank lines are skipped. A missing file yields ERR_203 and a line that
// does not decode yields ERR_205 with its one-based line number. Returns
// the number of records visited.
func Each(path string, fn func(PageRecord) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, dexerrors.New(dexerrors.ErrCodeRecordLogMissing,
				fmt.Sprintf("record log not found: %s", path), err).
				WithSuggestion("Run 'pagedex extract' first")
		}
		return 0, dexerrors.PersistenceError("open record log", err).WithDetail("path", path)
	}
	defer func() { _ = f.Close() }()

	return each(f, path, fn)
}

func each(r io.Reader, path string, fn func(PageRecord) error) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024*1024), maxLineBytes)

	count := 0
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var rec PageRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return count, dexerrors.New(dexerrors.ErrCodeRecordMalformed,
				fmt.Sprintf("malformed record at %s:%d", path, line), err).
				WithDetail("line", fmt.Sprint(line))
		}
		if err := fn(rec); err != nil {
			return count, err
		}
		count++
	}
	if err := sc.Err(); err != nil {
		return count, dexerrors.PersistenceError("read record log", err).WithDetail("path", path)
	}
	return count, nil
}

// ReadAll loads every record. It fails with ERR_204 when the log holds none.
func ReadAll(path string) ([]PageRecord, error) {
	var recs []PageRecord
	_, err := Each(path, func(rec PageRecord) error {
		recs = append(recs, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, dexerrors.New(dexerrors.ErrCodeRecordLogEmpty,
			fmt.Sprintf("record log is empty: %s", path), nil).
			WithSuggestion("Check errors.log; every page may have failed or been blank")
	}
	return recs, nil
}

// MaxID returns the highest record id in the log, or -1 when the log is
// absent or empty. Malformed lines are skipped: this feeds id
// reconciliation, which must work on a partially written log.
func MaxID(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return -1, nil
		}
		return -1, dexerrors.PersistenceError("open record log", err).WithDetail("path", path)
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1024*1024), maxLineBytes)
	maxID := -1
	for sc.Scan() {
		var head struct {
			ID *int `json:"id"`
		}
		if json.Unmarshal(sc.Bytes(), &head) != nil || head.ID == nil {
			continue
		}
		if *head.ID > maxID {
			maxID = *head.ID
		}
	}
	if err := sc.Err(); err != nil {
		return maxID, dexerrors.PersistenceError("scan record log", err).WithDetail("path", path)
	}
	return maxID, nil
}

// Size returns the log size in bytes, 0 if absent.
func Size(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
