package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	dexerrors "github.com/Aman-CERP/pagedex/internal/errors"
)

// Scan lists the regular files in opts.Dir whose extension matches
// opts.Extension, sorted lexicographically by name.
// An unreadable or absent directory yields an ERR_201 DiscoveryError.
// An empty result is not an error here; callers decide.
func Scan(opts ScanOptions) ([]Document, error) {
	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		return nil, dexerrors.DiscoveryError(dexerrors.ErrCodeSourceUnreadable,
			fmt.Sprintf("cannot read source directory %s", opts.Dir), err).
			WithDetail("dir", opts.Dir).
			WithSuggestion("Create the directory and copy the documents into it, or set paths.source")
	}

	ext := strings.ToLower(opts.Extension)
	docs := make([]Document, 0, len(entries))
	for _, entry := range entries {
		if !strings.HasSuffix(strings.ToLower(entry.Name()), ext) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Vanished between ReadDir and Info
			continue
		}
		if info.Mode()&os.ModeSymlink != 0 {
			if info, err = os.Stat(filepath.Join(opts.Dir, entry.Name())); err != nil {
				continue
			}
		}
		if !info.Mode().IsRegular() {
			continue
		}
		docs = append(docs, Document{
			Name: entry.Name(),
			Path: filepath.Join(opts.Dir, entry.Name()),
			Size: info.Size(),
		})
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs, nil
}

// Pending returns docs whose names are not in done, preserving order and
// applying limit (0 = unlimited).
func Pending[V any](docs []Document, done map[string]V, limit int) []Document {
	pending := make([]Document, 0, len(docs))
	for _, d := range docs {
		if _, ok := done[d.Name]; ok {
			continue
		}
		pending = append(pending, d)
	}
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending
}
