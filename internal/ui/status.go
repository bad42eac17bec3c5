package ui

import (
	"encoding/json"
	"fmt"
	"io"
)

// StatusInfo describes the workspace: corpus, extraction progress and shards.
type StatusInfo struct {
	Source      string `json:"source"`
	Discovered  int    `json:"discovered"`
	OK          int    `json:"ok"`
	Failed      int    `json:"failed"`
	Pending     int    `json:"pending"`
	NextID      int    `json:"next_id"`
	ManifestOK  bool   `json:"manifest_ok"`
	ManifestErr string `json:"manifest_error,omitempty"`

	RecordLogPath  string `json:"record_log_path"`
	RecordLogBytes int64  `json:"record_log_bytes"`
	LedgerEntries  int    `json:"ledger_entries"`

	IndexDir    string `json:"index_dir"`
	Shards      int    `json:"shards"`
	IndexBytes  int64  `json:"index_bytes"`
	IndexFormat string `json:"index_format,omitempty"`
}

// StatusRenderer displays workspace status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Corpus: "+info.Source))

	_, _ = fmt.Fprintf(r.out, "  Documents:  %d\n", info.Discovered)
	_, _ = fmt.Fprintf(r.out, "    ok:       %s\n", r.styles.Success.Render(fmt.Sprint(info.OK)))
	if info.Failed > 0 {
		_, _ = fmt.Fprintf(r.out, "    error:    %s\n", r.styles.Error.Render(fmt.Sprint(info.Failed)))
	} else {
		_, _ = fmt.Fprintf(r.out, "    error:    0\n")
	}
	_, _ = fmt.Fprintf(r.out, "    pending:  %d\n", info.Pending)
	_, _ = fmt.Fprintf(r.out, "  Next id:    %d\n", info.NextID)
	if !info.ManifestOK {
		_, _ = fmt.Fprintf(r.out, "  Manifest:   %s\n", r.styles.Warning.Render(info.ManifestErr))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintf(r.out, "  Records:    %s (%s)\n", info.RecordLogPath, FormatBytes(info.RecordLogBytes))
	_, _ = fmt.Fprintf(r.out, "  Failures:   %d ledger entries\n", info.LedgerEntries)
	_, _ = fmt.Fprintln(r.out)

	if info.Shards == 0 {
		_, _ = fmt.Fprintf(r.out, "  Index:      %s\n", r.styles.Dim.Render("not built"))
		return nil
	}
	_, _ = fmt.Fprintf(r.out, "  Index:      %s, %d shards, %s (%s)\n",
		info.IndexDir, info.Shards, FormatBytes(info.IndexBytes), info.IndexFormat)
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
