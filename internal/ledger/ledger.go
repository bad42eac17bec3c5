// Package ledger records extraction failures as tab-separated lines:
//
//	<doc>\t<step>\t<reason>
//
// Entries are appended, never deduplicated.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	dexerrors "github.com/Aman-CERP/pagedex/internal/errors"
)

// Step names.
const (
	StepPageCount = "pdfinfo"
)

// PageStep names the text extraction step for a one-based page number.
func PageStep(page int) string {
	return fmt.Sprintf("pdftotext(page=%d)", page)
}

// Entry is one failed step.
type Entry struct {
	Doc    string
	Step   string
	Reason string
}

var fieldSanitizer = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

func (e Entry) line() string {
	return fieldSanitizer.Replace(e.Doc) + "\t" +
		fieldSanitizer.Replace(e.Step) + "\t" +
		fieldSanitizer.Replace(e.Reason) + "\n"
}

// Ledger appends entries to the error log file.
type Ledger struct {
	path  string
	f     *os.File
	count int
}

// Open opens path for appending, creating it and its directory on demand.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, dexerrors.PersistenceError("create ledger directory", err).WithDetail("path", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, dexerrors.PersistenceError("open error ledger", err).WithDetail("path", path)
	}
	return &Ledger{path: path, f: f}, nil
}

// Record appends one entry.
func (l *Ledger) Record(e Entry) error {
	if _, err := l.f.WriteString(e.line()); err != nil {
		return dexerrors.PersistenceError("append error ledger", err).WithDetail("path", l.path)
	}
	l.count++
	return nil
}

// Count returns the entries recorded through this ledger.
func (l *Ledger) Count() int {
	return l.count
}

// Close closes the file.
func (l *Ledger) Close() error {
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// Read parses every entry in the ledger at path. A missing file yields none.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if sc.Text() == "" {
			continue
		}
		parts := strings.SplitN(sc.Text(), "\t", 3)
		for len(parts) < 3 {
			parts = append(parts, "")
		}
		entries = append(entries, Entry{Doc: parts[0], Step: parts[1], Reason: parts[2]})
	}
	return entries, sc.Err()
}
