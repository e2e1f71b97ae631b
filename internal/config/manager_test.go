package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plume.yaml")
	return NewManager(path, testLogger())
}

func TestLoadMissingDocument(t *testing.T) {
	m := newTestManager(t)

	assert.False(t, m.Exists())
	_, err := m.Load()
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Peek()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := newTestManager(t)

	doc := validDocument()
	doc.Server.SiteName = "My Plume"
	doc.CORS.AllowedOrigins = []string{"https://example.com"}
	require.NoError(t, m.Save(doc))
	assert.True(t, m.Exists())

	got, err := m.Load()
	require.NoError(t, err)
	assert.Equal(t, "My Plume", got.Server.SiteName)
	assert.Equal(t, doc.Database.ConnectionString, got.Database.ConnectionString)
	assert.Equal(t, []string{"https://example.com"}, got.CORS.AllowedOrigins)
}

func TestSaveFileMode(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Save(validDocument()))

	info, err := os.Stat(m.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestSaveRejectsInvalidDocument(t *testing.T) {
	m := newTestManager(t)

	doc := validDocument()
	doc.Secrets.Key = ""
	err := m.Save(doc)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingSecretKey)
	assert.False(t, m.Exists())
}

func TestLoadRejectsInvalidYAML(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, os.WriteFile(m.Path(), []byte("{not yaml:"), 0o600))

	_, err := m.Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestUnconsumedTracking(t *testing.T) {
	m := newTestManager(t)
	assert.False(t, m.Unconsumed())
	assert.Nil(t, m.Current())

	require.NoError(t, m.Save(validDocument()))
	assert.True(t, m.Unconsumed())

	// Peek must not consume.
	_, err := m.Peek()
	require.NoError(t, err)
	assert.True(t, m.Unconsumed())

	_, err = m.Load()
	require.NoError(t, err)
	assert.False(t, m.Unconsumed())
	require.NotNil(t, m.Current())

	// A later save flags again.
	require.NoError(t, m.Save(validDocument()))
	assert.True(t, m.Unconsumed())
}
