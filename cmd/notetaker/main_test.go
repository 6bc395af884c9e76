package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/notetaker/pkg/core"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func listJSON(t *testing.T, cfg string) []core.Note {
	t.Helper()
	out, err := run(t, "list", "--config", cfg, "--json")
	require.NoError(t, err)
	var notes []core.Note
	require.NoError(t, json.Unmarshal([]byte(out), &notes))
	return notes
}

func TestCLI_FSWorkflow(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "notetaker.toml")

	out, err := run(t, "init", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized notetaker (fs)")
	assert.DirExists(t, filepath.Join(dir, "notes"))

	out, err = run(t, "add", "--config", cfg, "buy", "milk")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "Note created: "), out)
	id := strings.TrimSpace(strings.TrimPrefix(out, "Note created: "))
	assert.FileExists(t, filepath.Join(dir, "notes", id+".md"))

	notes := listJSON(t, cfg)
	require.Len(t, notes, 1)
	assert.Equal(t, core.Note{ID: id, Text: "buy milk"}, notes[0])

	out, err = run(t, "list", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, id+"\tbuy milk\n", out)

	_, err = run(t, "edit", "--config", cfg, id, "buy", "oat", "milk")
	require.NoError(t, err)
	assert.Equal(t, "buy oat milk", listJSON(t, cfg)[0].Text)

	_, err = run(t, "delete", "--config", cfg, id)
	require.NoError(t, err)
	assert.Empty(t, listJSON(t, cfg))

	_, err = run(t, "delete", "--config", cfg, id)
	assert.Error(t, err)
}

func TestCLI_InitKeepsExistingConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "notetaker.toml")
	require.NoError(t, os.WriteFile(cfg, []byte(`adapter = "memory"`), 0o644))

	_, err := run(t, "init", "--config", cfg)
	assert.Error(t, err)

	data, err := os.ReadFile(cfg)
	require.NoError(t, err)
	assert.Equal(t, `adapter = "memory"`, string(data))
}

func TestCLI_FlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "notetaker.toml")
	require.NoError(t, os.WriteFile(cfg, []byte("adapter = \"fs\"\nuri = \"notes\"\n"), 0o644))

	db := filepath.Join(dir, "notes.db")
	_, err := run(t, "add", "--config", cfg, "--adapter", "sqlite", "--uri", db, "hello")
	require.NoError(t, err)
	assert.FileExists(t, db)
	assert.NoDirExists(t, filepath.Join(dir, "notes"))

	out, err := run(t, "list", "--config", cfg, "--adapter", "sqlite", "--uri", db)
	require.NoError(t, err)
	assert.Contains(t, out, "hello")
}

func TestCLI_Status(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "notetaker.toml")
	require.NoError(t, os.WriteFile(cfg, []byte(`adapter = "memory"`), 0o644))

	out, err := run(t, "status", "--config", cfg, "--json")
	require.NoError(t, err)

	var report struct {
		Adapter    string `json:"adapter"`
		Reconciler struct {
			Started     bool   `json:"started"`
			BackendType string `json:"backend_type"`
		} `json:"reconciler"`
		Backend map[string]any `json:"backend"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "memory", report.Adapter)
	assert.True(t, report.Reconciler.Started)
	assert.Equal(t, "memory", report.Reconciler.BackendType)
	assert.Contains(t, report.Backend, "subscriptions")

	out, err = run(t, "status", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "adapter: memory")
}

func TestCLI_UnknownAdapter(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "notetaker.toml")
	require.NoError(t, os.WriteFile(cfg, []byte(`adapter = "memory"`), 0o644))

	_, err := run(t, "list", "--config", cfg, "--adapter", "carrier-pigeon")
	assert.ErrorContains(t, err, "unknown adapter")
}

func TestCLI_Version(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "notetaker.toml")
	require.NoError(t, os.WriteFile(cfg, []byte(`adapter = "memory"`), 0o644))

	out, err := run(t, "version", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "notetaker version 0.1.0\n", out)
}
