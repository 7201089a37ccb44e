package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetload/internal/shared/testutil"
	"sheetload/pkg/contracts"
)

func writeWorkbook(t *testing.T, rows ...[]interface{}) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Feb 2020.xlsx")
	require.NoError(t, os.WriteFile(path, testutil.BuildDataWorkbook(t, rows...), 0o644))
	return path
}

func TestRun_ConvertsWorkbook(t *testing.T) {
	in := writeWorkbook(t, testutil.ConversionRateRows()...)
	out := t.TempDir()
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"-in", in, "-label", "conversion", "-out", out}, &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())

	body, err := os.ReadFile(filepath.Join(out, "conversion", "2020-02-01.csv"))
	require.NoError(t, err)
	assert.Equal(t, testutil.ConversionRateCSV, string(body))

	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	assert.Equal(t, "conversion", res["label"])
	assert.Equal(t, "2020-02-01", res["anchor_date"])
}

func TestRun_Version(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{"-version"}, &stdout, &stderr)

	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout.String(), "sheetload v"+contracts.Version)
}

func TestRun_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no flags"},
		{name: "missing label", args: []string{"-in", "a.xlsx", "-out", "dir"}},
		{name: "missing out without load", args: []string{"-in", "a.xlsx", "-label", "l"}},
		{name: "unknown flag", args: []string{"-bogus"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, exitUsage, run(context.Background(), tt.args, &stdout, &stderr))
			assert.Empty(t, stdout.String())
			assert.NotEmpty(t, stderr.String())
		})
	}
}

func TestRun_Failures(t *testing.T) {
	notWorkbook := filepath.Join(t.TempDir(), "notes.xlsx")
	require.NoError(t, os.WriteFile(notWorkbook, []byte("not a zip"), 0o644))

	tests := []struct {
		name string
		in   string
	}{
		{name: "missing file", in: filepath.Join(t.TempDir(), "missing.xlsx")},
		{name: "not a workbook", in: notWorkbook},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := t.TempDir()
			var stdout, stderr bytes.Buffer

			code := run(context.Background(), []string{"-in", tt.in, "-label", "conversion", "-out", out}, &stdout, &stderr)

			assert.Equal(t, exitError, code)
			assert.Empty(t, stdout.String())
			entries, err := os.ReadDir(out)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}
