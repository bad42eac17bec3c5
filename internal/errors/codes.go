// Package errors provides structured error handling for pagedex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration and workspace errors
//   - 2XX: Discovery and persistence errors (corpus, manifest, logs)
//   - 3XX: External tool invocation errors
//   - 4XX: Tool output parse errors
//   - 5XX: Index and shard errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates corpus discovery and persisted state errors.
	CategoryIO Category = "IO"
	// CategoryTool indicates external tool failures.
	CategoryTool Category = "TOOL"
	// CategoryParse indicates unparsable tool output.
	CategoryParse Category = "PARSE"
	// CategoryInternal indicates index build and shard errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort the run.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates the current document or page failed, the run continues.
	SeverityError Severity = "ERROR"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigInvalid   = "ERR_101_CONFIG_INVALID"
	ErrCodeConfigParse     = "ERR_102_CONFIG_PARSE"
	ErrCodeWorkspaceLocked = "ERR_104_WORKSPACE_LOCKED"

	// Discovery and persistence errors (200-299)
	ErrCodeSourceUnreadable = "ERR_201_SOURCE_UNREADABLE"
	ErrCodeCorpusEmpty      = "ERR_202_CORPUS_EMPTY"
	ErrCodeRecordLogMissing = "ERR_203_RECORD_LOG_MISSING"
	ErrCodeRecordLogEmpty   = "ERR_204_RECORD_LOG_EMPTY"
	ErrCodeRecordMalformed  = "ERR_205_RECORD_MALFORMED"
	ErrCodePersistFailed    = "ERR_206_PERSIST_FAILED"

	// Tool errors (300-399)
	ErrCodeToolExit    = "ERR_301_TOOL_EXIT"
	ErrCodeToolLaunch  = "ERR_302_TOOL_LAUNCH"
	ErrCodeToolTimeout = "ERR_303_TOOL_TIMEOUT"

	// Parse errors (400-499)
	ErrCodePageCount = "ERR_401_PAGE_COUNT"

	// Index errors (500-599)
	ErrCodeShardCorrupt = "ERR_501_SHARD_CORRUPT"
	ErrCodeIndexBuild   = "ERR_502_INDEX_BUILD"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_INVALID")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryTool
	case '4':
		return CategoryParse
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
// Tool and parse failures are scoped to one document or page.
func severityFromCode(code string) Severity {
	switch categoryFromCode(code) {
	case CategoryTool, CategoryParse:
		return SeverityError
	default:
		return SeverityFatal
	}
}
