package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/pagedex/internal/config"
)

func TestDoctor_ReadyWorkspace(t *testing.T) {
	dir := newWorkspace(t)

	out, err := runCLI(t, dir, "doctor", "--json")
	require.NoError(t, err)

	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.NotEmpty(t, report.Checks)
	assert.Equal(t, "tool:pdfinfo", report.Checks[0].Name)
	assert.Equal(t, "PASS", report.Checks[0].Status)
	assert.Equal(t, "tool:pdftotext", report.Checks[1].Name)
	assert.Equal(t, "PASS", report.Checks[2].Status)
}

func TestDoctor_EmptyCorpusFails(t *testing.T) {
	dir := newWorkspace(t)
	require.NoError(t, os.RemoveAll(filepath.Join(dir, "pdfs")))

	out, err := runCLI(t, dir, "doctor")
	require.Error(t, err)
	assert.Contains(t, out, "[FAIL] corpus")
	assert.Contains(t, out, "Status: FAILED")
}

func TestDoctorTarget_NativeSkipsPageCountTool(t *testing.T) {
	cfg := config.NewConfig()
	assert.Equal(t, []string{"pdfinfo", "pdftotext"}, doctorTarget(cfg).Tools)

	cfg.Extract.PageCountBackend = config.PageCountNative
	assert.Equal(t, []string{"pdftotext"}, doctorTarget(cfg).Tools)
}
