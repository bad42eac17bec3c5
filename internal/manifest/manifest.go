// Package manifest persists extraction progress: which documents are done and
// the next record id to allocate. A missing or unreadable manifest is
// recovered as the empty state; Reconcile keeps ids unique in that case.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	dexerrors "github.com/Aman-CERP/pagedex/internal/errors"
)

// Document statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// DocStatus is the terminal outcome for one document.
type DocStatus struct {
	Status  string `json:"status"`
	Step    string `json:"step,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Pages   int    `json:"pages,omitempty"`
	Emitted int    `json:"emitted,omitempty"`
}

// MarshalJSON always writes pages and emitted for ok documents, zero or not.
func (d DocStatus) MarshalJSON() ([]byte, error) {
	if d.Status != StatusOK {
		type plain DocStatus
		return json.Marshal(plain(d))
	}
	return json.Marshal(struct {
		Status  string `json:"status"`
		Pages   int    `json:"pages"`
		Emitted int    `json:"emitted"`
	}{d.Status, d.Pages, d.Emitted})
}

// State is the persisted manifest.
type State struct {
	Done map[string]DocStatus `json:"done"`
	// LastID is the next record id to allocate.
	LastID int `json:"lastId"`
}

// NewState returns the empty state.
func NewState() *State {
	return &State{Done: make(map[string]DocStatus)}
}

// IsDone reports whether doc has a terminal status.
func (s *State) IsDone(doc string) bool {
	_, ok := s.Done[doc]
	return ok
}

// Counts returns the number of ok and error documents.
func (s *State) Counts() (ok, failed int) {
	for _, st := range s.Done {
		if st.Status == StatusOK {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}

// MarkOK records a successful document. Entries are never overwritten.
func (s *State) MarkOK(doc string, pages, emitted int) {
	if s.IsDone(doc) {
		return
	}
	s.Done[doc] = DocStatus{Status: StatusOK, Pages: pages, Emitted: emitted}
}

// MarkError records a failed document.
func (s *State) MarkError(doc, step, reason string) {
	if s.IsDone(doc) {
		return
	}
	s.Done[doc] = DocStatus{Status: StatusError, Step: step, Reason: reason}
}

// LoadResult is what Load found on disk.
type LoadResult struct {
	State *State
	// Recovered is set when the file was missing or malformed and the
	// empty state was substituted.
	Recovered bool
	// Reason explains a recovery.
	Reason string
}

// Store reads and writes one manifest file.
type Store struct {
	path string
}

// NewStore creates a store for path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the manifest file path.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted state, or the empty state with Recovered set.
// It never fails.
func (s *Store) Load() LoadResult {
	data, err := os.ReadFile(s.path)
	if err != nil {
		reason := err.Error()
		if errors.Is(err, os.ErrNotExist) {
			reason = "manifest not found"
		}
		return LoadResult{State: NewState(), Recovered: true, Reason: reason}
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return LoadResult{State: NewState(), Recovered: true, Reason: fmt.Sprintf("malformed manifest: %v", err)}
	}
	if st.Done == nil {
		st.Done = make(map[string]DocStatus)
	}
	if st.LastID < 0 {
		st.LastID = 0
	}
	return LoadResult{State: &st}
}

// Save atomically replaces the manifest with st as indented JSON.
func (s *Store) Save(st *State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return dexerrors.PersistenceError("create manifest directory", err).WithDetail("path", s.path)
	}
	if err := renameio.WriteFile(s.path, data, 0o644); err != nil {
		return dexerrors.PersistenceError("save manifest", err).WithDetail("path", s.path)
	}
	return nil
}

// Reconcile bumps st.LastID past maxRecordID when the record log already
// holds ids at or beyond it. Returns true when it adjusted the counter.
func Reconcile(st *State, maxRecordID int) bool {
	if maxRecordID < st.LastID {
		return false
	}
	st.LastID = maxRecordID + 1
	return true
}
