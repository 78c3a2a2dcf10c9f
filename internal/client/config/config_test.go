package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmined/treesync/internal/client/session"
	"github.com/openmined/treesync/internal/treebuilder"
)

func TestConfig_Validate_Defaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultServerURL, cfg.ServerURL)
	assert.Equal(t, "delta", cfg.Mode)
	assert.Equal(t, session.ModeDelta, cfg.SessionMode())
	assert.Equal(t, treebuilder.DefaultConcurrency, cfg.Concurrency)
	assert.Empty(t, cfg.SnapshotPath)
	assert.Len(t, cfg.BuilderOptions(), 3)
}

func TestConfig_Validate_NormalizesPaths(t *testing.T) {
	cfg := &Config{
		ServerURL:    "https://sync.example.com",
		SnapshotPath: "./state/tree.json",
		JournalPath:  "~/journal.db",
		Mode:         "Compact",
	}
	require.NoError(t, cfg.Validate())

	assert.True(t, filepath.IsAbs(cfg.SnapshotPath))
	assert.True(t, filepath.IsAbs(cfg.JournalPath))
	assert.Equal(t, session.ModeCompact, cfg.SessionMode())
}

func TestConfig_Validate_ErrorsOnInvalidInputs(t *testing.T) {
	t.Run("bad server url", func(t *testing.T) {
		cfg := &Config{ServerURL: "ftp://bad.example.com"}
		err := cfg.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "server url")
	})

	t.Run("bad mode", func(t *testing.T) {
		cfg := &Config{Mode: "stream"}
		assert.ErrorIs(t, cfg.Validate(), session.ErrInvalidMode)
	})
}

func TestConfig_SaveAndLoad_Roundtrip(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "nested", "config.json")

	cfg := &Config{
		ServerURL:          "http://127.0.0.1:9000",
		SnapshotPath:       filepath.Join(tmp, "tree.json"),
		JournalPath:        filepath.Join(tmp, "journal.db"),
		Mode:               "full",
		Concurrency:        8,
		ExcludedDirs:       []string{"build"},
		ExcludedExtensions: []string{".tmp"},
		Path:               "ignored",
	}
	require.NoError(t, cfg.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ignored")

	loaded, err := LoadClientConfig(path)
	require.NoError(t, err)
	assert.Equal(t, path, loaded.Path)
	assert.Equal(t, cfg.ServerURL, loaded.ServerURL)
	assert.Equal(t, cfg.SnapshotPath, loaded.SnapshotPath)
	assert.Equal(t, cfg.JournalPath, loaded.JournalPath)
	assert.Equal(t, session.ModeFull, loaded.SessionMode())
	assert.Equal(t, 8, loaded.Concurrency)
	assert.Equal(t, []string{"build"}, loaded.ExcludedDirs)
	assert.Equal(t, []string{".tmp"}, loaded.ExcludedExtensions)
}

func TestLoadClientConfig_Errors(t *testing.T) {
	tmp := t.TempDir()

	_, err := LoadClientConfig(filepath.Join(tmp, "missing.json"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	bad := filepath.Join(tmp, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = LoadClientConfig(bad)
	assert.Error(t, err)
}
