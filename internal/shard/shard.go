// Package shard splits a serialized index into bounded-size files and
// reassembles them. Shards concatenated in ascending ordinal order reproduce
// the original bytes exactly; the manifest records sizes and xxhash64
// checksums so a consumer can verify each piece.
package shard

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/google/renameio"

	dexerrors "github.com/Aman-CERP/pagedex/internal/errors"
)

// ManifestVersion is the current shard manifest version.
const ManifestVersion = 1

// ManifestName is the shard manifest file name inside the index directory.
const ManifestName = "manifest.json"

var shardPattern = regexp.MustCompile(`^index-(\d+)\.bin$`)

// Manifest describes a sharded index.
type Manifest struct {
	Version    int    `json:"version"`
	TotalBytes int64  `json:"totalBytes"`
	Shards     int    `json:"shards"`
	ShardBytes int    `json:"shardBytes"`
	Format     string `json:"format,omitempty"`
	// Checksums holds the xxhash64 of each shard as 16 hex digits, in order.
	Checksums []string `json:"checksums,omitempty"`
	// Sizes holds each shard's byte length, in order.
	Sizes []int64 `json:"sizes,omitempty"`
}

// FileName returns the file name for shard n (1-based).
func FileName(n int) string {
	return fmt.Sprintf("index-%d.bin", n)
}

// Checksum returns the hex xxhash64 of data.
func Checksum(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// Split partitions data into consecutive chunks of at most size bytes.
// Empty data yields a single empty shard so the index is never absent.
func Split(data []byte, size int) [][]byte {
	if size <= 0 {
		size = len(data)
	}
	if len(data) == 0 {
		return [][]byte{{}}
	}
	parts := make([][]byte, 0, (len(data)+size-1)/size)
	for off := 0; off < len(data); off += size {
		end := min(off+size, len(data))
		parts = append(parts, data[off:end])
	}
	return parts
}

// Write stores data as shards of at most shardBytes in dir, writes the
// manifest and removes shard files left over from a larger previous build.
func Write(dir string, data []byte, shardBytes int, format string) (*Manifest, error) {
	if shardBytes <= 0 {
		return nil, fmt.Errorf("shard size must be positive, got %d", shardBytes)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, dexerrors.PersistenceError("create index directory", err).WithDetail("dir", dir)
	}

	parts := Split(data, shardBytes)
	m := &Manifest{
		Version:    ManifestVersion,
		Shards:     len(parts),
		ShardBytes: shardBytes,
		Format:     format,
		Checksums:  make([]string, 0, len(parts)),
		Sizes:      make([]int64, 0, len(parts)),
	}
	for i, part := range parts {
		name := FileName(i + 1)
		if err := renameio.WriteFile(filepath.Join(dir, name), part, 0o644); err != nil {
			return nil, dexerrors.PersistenceError("write shard", err).WithDetail("shard", name)
		}
		m.TotalBytes += int64(len(part))
		m.Sizes = append(m.Sizes, int64(len(part)))
		m.Checksums = append(m.Checksums, Checksum(part))
		slog.Debug("shard_written", slog.String("file", name), slog.Int("bytes", len(part)))
	}

	if err := removeStale(dir, len(parts)); err != nil {
		return nil, err
	}

	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode shard manifest: %w", err)
	}
	if err := renameio.WriteFile(filepath.Join(dir, ManifestName), raw, 0o644); err != nil {
		return nil, dexerrors.PersistenceError("write shard manifest", err).WithDetail("dir", dir)
	}

	slog.Info("shards_written",
		slog.String("dir", dir),
		slog.Int("shards", m.Shards),
		slog.Int64("total_bytes", m.TotalBytes),
		slog.String("format", format))
	return m, nil
}

// removeStale deletes index-<n>.bin files with n > keep.
func removeStale(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return dexerrors.PersistenceError("list index directory", err).WithDetail("dir", dir)
	}
	for _, e := range entries {
		m := shardPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= keep {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return dexerrors.PersistenceError("remove stale shard", err).WithDetail("shard", e.Name())
		}
		slog.Debug("stale_shard_removed", slog.String("file", e.Name()))
	}
	return nil
}

// ReadManifest loads the shard manifest in dir.
func ReadManifest(dir string) (*Manifest, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, dexerrors.New(dexerrors.ErrCodeShardCorrupt,
				fmt.Sprintf("no shard manifest in %s", dir), err).
				WithSuggestion("Run 'pagedex index' first")
		}
		return nil, dexerrors.PersistenceError("read shard manifest", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, dexerrors.New(dexerrors.ErrCodeShardCorrupt, "malformed shard manifest", err)
	}
	if m.Version != ManifestVersion {
		return nil, dexerrors.New(dexerrors.ErrCodeShardCorrupt,
			fmt.Sprintf("unsupported shard manifest version %d", m.Version), nil)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// validate rejects manifests whose counts cannot describe a real shard set.
func (m *Manifest) validate() error {
	corrupt := func(format string, args ...any) error {
		return dexerrors.New(dexerrors.ErrCodeShardCorrupt, fmt.Sprintf(format, args...), nil).
			WithSuggestion("Rebuild with 'pagedex index'")
	}
	if m.TotalBytes < 0 {
		return corrupt("shard manifest has negative totalBytes %d", m.TotalBytes)
	}
	if m.Shards < 0 {
		return corrupt("shard manifest has negative shard count %d", m.Shards)
	}
	if len(m.Sizes) > 0 && len(m.Sizes) != m.Shards {
		return corrupt("shard manifest lists %d sizes for %d shards", len(m.Sizes), m.Shards)
	}
	if len(m.Checksums) > 0 && len(m.Checksums) != m.Shards {
		return corrupt("shard manifest lists %d checksums for %d shards", len(m.Checksums), m.Shards)
	}
	if len(m.Sizes) > 0 {
		var sum int64
		for i, n := range m.Sizes {
			if n < 0 {
				return corrupt("shard manifest size %d of shard %d is negative", n, i+1)
			}
			sum += n
		}
		if sum != m.TotalBytes {
			return corrupt("shard sizes sum to %d, totalBytes is %d", sum, m.TotalBytes)
		}
	}
	return nil
}

// Reassemble reads every shard in order, verifies sizes and checksums
// against the manifest, and returns the concatenated bytes.
func Reassemble(dir string) ([]byte, *Manifest, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, nil, err
	}

	var capacity int64
	for _, n := range m.Sizes {
		capacity += n
	}
	out := make([]byte, 0, capacity)
	for i := 0; i < m.Shards; i++ {
		name := FileName(i + 1)
		part, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, m, dexerrors.New(dexerrors.ErrCodeShardCorrupt,
				fmt.Sprintf("missing shard %s", name), err)
		}
		if i < len(m.Sizes) && int64(len(part)) != m.Sizes[i] {
			return nil, m, dexerrors.New(dexerrors.ErrCodeShardCorrupt,
				fmt.Sprintf("shard %s is %d bytes, manifest says %d", name, len(part), m.Sizes[i]), nil)
		}
		if len(part) > m.ShardBytes && m.ShardBytes > 0 {
			return nil, m, dexerrors.New(dexerrors.ErrCodeShardCorrupt,
				fmt.Sprintf("shard %s exceeds shard size %d", name, m.ShardBytes), nil)
		}
		if i < len(m.Checksums) && Checksum(part) != m.Checksums[i] {
			return nil, m, dexerrors.New(dexerrors.ErrCodeShardCorrupt,
				fmt.Sprintf("checksum mismatch in %s", name), nil).
				WithSuggestion("Rebuild with 'pagedex index'")
		}
		out = append(out, part...)
	}
	if int64(len(out)) != m.TotalBytes {
		return nil, m, dexerrors.New(dexerrors.ErrCodeShardCorrupt,
			fmt.Sprintf("reassembled %d bytes, manifest says %d", len(out), m.TotalBytes), nil)
	}
	return out, m, nil
}
