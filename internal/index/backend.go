package index

import (
	"context"
	"fmt"

	"github.com/Aman-CERP/pagedex/internal/records"
)

// Backend names.
const (
	BackendBleve  = "bleve"
	BackendSQLite = "sqlite"
)

// Hit is one search result.
type Hit struct {
	ID    string
	Doc   string
	Page  int
	Text  string
	Score float64
}

// Backend builds and reopens serialized indexes.
type Backend interface {
	// Name is the format recorded in the shard manifest.
	Name() string
	// Build indexes recs and returns the serialized index. workDir holds
	// scratch files and may be removed afterwards.
	Build(ctx context.Context, recs []records.PageRecord, workDir string) ([]byte, error)
	// Open materializes data under workDir for reading.
	Open(data []byte, workDir string) (Reader, error)
}

// Reader queries an opened index.
type Reader interface {
	DocCount() (uint64, error)
	// Search normalizes and tokenizes query; every token must match.
	Search(query string, limit int) ([]Hit, error)
	// Terms lists the indexed vocabulary of the norm field.
	Terms() ([]string, error)
	Close() error
}

// NewBackend returns the backend for name.
func NewBackend(name string) (Backend, error) {
	switch name {
	case BackendBleve, "":
		return &BleveBackend{}, nil
	case BackendSQLite:
		return &SQLiteBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown index backend: %s (valid options: bleve, sqlite)", name)
	}
}
