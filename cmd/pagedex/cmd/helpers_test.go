package cmd

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolateEnv points the user config at an empty dir and clears overrides.
func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
	for _, key := range []string{
		"LIMIT", "PAGEDEX_LIMIT", "PAGEDEX_SOURCE", "PAGEDEX_BUILD_DIR",
		"PAGEDEX_INDEX_DIR", "PAGEDEX_INDEX_BACKEND", "PAGEDEX_SHARD_BYTES", "PAGEDEX_LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
}

// runCLI executes the root command in dir and returns everything written to stdout.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(append([]string{"--dir", dir}, args...))
	err := root.Execute()
	return buf.String(), err
}

const fakePdfinfo = `#!/bin/sh
case "$1" in
  *broken*) echo "Syntax Error: Couldn't find trailer dictionary" >&2; exit 1 ;;
esac
echo "Title:          test"
echo "Pages:          2"
`

// fakePdftotext prints one line per page; page 2 of blank.pdf is empty.
// Arguments: -enc UTF-8 -layout -nopgbrk -f P -l P PATH -
const fakePdftotext = `#!/bin/sh
if [ "$6" = "2" ]; then
  case "$9" in *blank*) exit 0 ;; esac
fi
printf 'Page %s of %s\n  Thermal   Expansion\n' "$6" "$(basename "$9")"
`

// newWorkspace creates a working directory with a corpus of alpha.pdf,
// blank.pdf and broken.pdf and a .pagedex.yaml pointing at fake tools.
func newWorkspace(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	isolateEnv(t)

	dir := t.TempDir()
	tools := t.TempDir()
	pdfinfo := filepath.Join(tools, "pdfinfo")
	pdftotext := filepath.Join(tools, "pdftotext")
	require.NoError(t, os.WriteFile(pdfinfo, []byte(fakePdfinfo), 0o755))
	require.NoError(t, os.WriteFile(pdftotext, []byte(fakePdftotext), 0o755))

	src := filepath.Join(dir, "pdfs")
	require.NoError(t, os.MkdirAll(src, 0o755))
	for _, name := range []string{"alpha.pdf", "blank.pdf", "broken.pdf"} {
		require.NoError(t, os.WriteFile(filepath.Join(src, name), []byte("%PDF-1.4\n"), 0o644))
	}

	cfg := "paths:\n" +
		"  source: pdfs\n" +
		"  build_dir: build\n" +
		"  index_dir: index\n" +
		"extract:\n" +
		"  page_count_tool: " + pdfinfo + "\n" +
		"  page_text_tool: " + pdftotext + "\n" +
		"  info_timeout: 10s\n" +
		"  page_timeout: 10s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".pagedex.yaml"), []byte(cfg), 0o644))
	return dir
}
