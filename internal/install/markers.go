package install

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Marker file names under the data directory.
const (
	installMarkerFile = "installed.json"
	dbInitMarkerFile  = "db_initialized.json"
)

// Initialization methods recorded in the db-init marker.
const (
	MethodDirect = "direct"
	MethodRepair = "repair"
)

// InstallationMarker is the sole source of truth that first-run setup has
// fully completed. It is written once and never mutated.
type InstallationMarker struct {
	InstalledAt time.Time `json:"installed_at"`
	SiteName    string    `json:"site_name"`
	AdminEmail  string    `json:"admin_email"`
}

// DBInitMarker records that schema and seed were created and verified.
type DBInitMarker struct {
	InitializedAt time.Time `json:"initialized_at"`
	Method        string    `json:"method"` // direct or repair
	Provider      string    `json:"provider"`
}

// Markers reads and writes the marker files in the data directory.
type Markers struct {
	dataDir string
}

// NewMarkers creates a Markers rooted at dataDir.
func NewMarkers(dataDir string) *Markers {
	return &Markers{dataDir: dataDir}
}

// Installed reports whether the installation marker exists.
func (m *Markers) Installed() bool {
	_, err := os.Stat(filepath.Join(m.dataDir, installMarkerFile))
	return err == nil
}

// ReadInstallation returns the installation marker, or fs.ErrNotExist.
func (m *Markers) ReadInstallation() (InstallationMarker, error) {
	var marker InstallationMarker
	err := m.read(installMarkerFile, &marker)
	return marker, err
}

// WriteInstallation writes the installation marker. It refuses to
// overwrite an existing marker: completion happens exactly once.
func (m *Markers) WriteInstallation(marker InstallationMarker) error {
	if m.Installed() {
		return fmt.Errorf("install: installation marker already exists")
	}
	return m.write(installMarkerFile, marker)
}

// DBInitialized reports whether the db-init marker exists.
func (m *Markers) DBInitialized() bool {
	_, err := os.Stat(filepath.Join(m.dataDir, dbInitMarkerFile))
	return err == nil
}

// ReadDBInit returns the db-init marker, or fs.ErrNotExist.
func (m *Markers) ReadDBInit() (DBInitMarker, error) {
	var marker DBInitMarker
	err := m.read(dbInitMarkerFile, &marker)
	return marker, err
}

// WriteDBInit writes the db-init marker, replacing any previous one.
func (m *Markers) WriteDBInit(marker DBInitMarker) error {
	return m.write(dbInitMarkerFile, marker)
}

// DeleteDBInit removes the db-init marker. Missing is not an error; the
// repair path deletes before it knows whether a marker survived.
func (m *Markers) DeleteDBInit() error {
	err := os.Remove(filepath.Join(m.dataDir, dbInitMarkerFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("install: delete db-init marker: %w", err)
	}
	return nil
}

func (m *Markers) read(name string, target any) error {
	raw, err := os.ReadFile(filepath.Join(m.dataDir, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("install: parse marker %s: %w", name, err)
	}
	return nil
}

func (m *Markers) write(name string, marker any) error {
	if err := os.MkdirAll(m.dataDir, 0o755); err != nil {
		return fmt.Errorf("install: create data dir: %w", err)
	}
	raw, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return fmt.Errorf("install: marshal marker %s: %w", name, err)
	}

	path := filepath.Join(m.dataDir, name)
	tmp, err := os.CreateTemp(m.dataDir, "."+name+"-*")
	if err != nil {
		return fmt.Errorf("install: create temp marker: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("install: write marker %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("install: close marker %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("install: rename marker %s: %w", name, err)
	}
	return nil
}
