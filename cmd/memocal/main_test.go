package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "memocal.yaml")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "memocal "+version+"\n", out)
}

func TestExtractCommand(t *testing.T) {
	out, err := execute(t, "明日 10時 ミーティング\n15, 16 遠足", "extract")
	require.NoError(t, err)
	assert.Contains(t, out, "mention  明日 10時")
	assert.Contains(t, out, "ミーティング")
	assert.Contains(t, out, "numbers  15, 16")

	out, err = execute(t, "買い物", "extract")
	require.NoError(t, err)
	assert.Equal(t, "no dates found\n", out)
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	note := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(note, []byte("明日 10時 ミーティング\n来週月曜 歯医者"), 0o644))
	dest := filepath.Join(dir, "note.ics")

	out, err := execute(t, "", "export", note, "--out", dest)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 2 events")

	body, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(body), "BEGIN:VEVENT"))

	_, err = execute(t, "", "export", "--out", "", "-")
	assert.Error(t, err)
}
