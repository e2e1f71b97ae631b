package install

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkersRoundTrip(t *testing.T) {
	m := NewMarkers(t.TempDir())

	assert.False(t, m.Installed())
	assert.False(t, m.DBInitialized())

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, m.WriteDBInit(DBInitMarker{
		InitializedAt: now,
		Method:        MethodDirect,
		Provider:      "postgres",
	}))
	assert.True(t, m.DBInitialized())

	got, err := m.ReadDBInit()
	require.NoError(t, err)
	assert.Equal(t, MethodDirect, got.Method)
	assert.Equal(t, "postgres", got.Provider)
	assert.True(t, got.InitializedAt.Equal(now))

	require.NoError(t, m.WriteInstallation(InstallationMarker{
		InstalledAt: now,
		SiteName:    "My Plume",
	}))
	assert.True(t, m.Installed())

	marker, err := m.ReadInstallation()
	require.NoError(t, err)
	assert.Equal(t, "My Plume", marker.SiteName)
}

func TestWriteInstallationRefusesOverwrite(t *testing.T) {
	m := NewMarkers(t.TempDir())

	require.NoError(t, m.WriteInstallation(InstallationMarker{InstalledAt: time.Now()}))
	err := m.WriteInstallation(InstallationMarker{InstalledAt: time.Now()})
	assert.Error(t, err)
}

func TestWriteDBInitReplaces(t *testing.T) {
	m := NewMarkers(t.TempDir())

	require.NoError(t, m.WriteDBInit(DBInitMarker{Method: MethodDirect}))
	require.NoError(t, m.WriteDBInit(DBInitMarker{Method: MethodRepair}))

	got, err := m.ReadDBInit()
	require.NoError(t, err)
	assert.Equal(t, MethodRepair, got.Method)
}

func TestDeleteDBInitMissingOK(t *testing.T) {
	m := NewMarkers(t.TempDir())
	require.NoError(t, m.DeleteDBInit())

	require.NoError(t, m.WriteDBInit(DBInitMarker{Method: MethodDirect}))
	require.NoError(t, m.DeleteDBInit())
	assert.False(t, m.DBInitialized())
}

func TestMarkersCreateDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	m := NewMarkers(dir)

	require.NoError(t, m.WriteDBInit(DBInitMarker{Method: MethodDirect}))
	_, err := os.Stat(filepath.Join(dir, "db_initialized.json"))
	require.NoError(t, err)
}

func TestReadCorruptMarker(t *testing.T) {
	dir := t.TempDir()
	m := NewMarkers(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "db_initialized.json"), []byte("{broken"), 0o644))

	_, err := m.ReadDBInit()
	assert.Error(t, err)
	// Existence probes stay cheap: a corrupt marker still counts as present.
	assert.True(t, m.DBInitialized())
}
