package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when the installation document does not exist.
var ErrNotFound = errors.New("config: document not found")

// Manager owns the installation document file. Writes are serialized by an
// in-process mutex only: config writes are rare and wizard-driven, so no
// cross-process coordination is used here (unlike the database locks).
//
// The manager also tracks whether the on-disk document has been written
// since the running process last consumed it, which drives the
// reload/restart step.
type Manager struct {
	path   string
	logger *slog.Logger

	mu         sync.Mutex
	current    *Document // last document consumed by this process, nil if none
	unconsumed bool      // written to disk but not yet consumed
}

// NewManager creates a manager for the document at path. It does not touch
// the filesystem; call Load to consume an existing document.
func NewManager(path string, logger *slog.Logger) *Manager {
	return &Manager{path: path, logger: logger}
}

// Path returns the document location.
func (m *Manager) Path() string { return m.path }

// Exists reports whether the document file is present on disk.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.path)
	return err == nil
}

// Load reads, parses, and validates the document from disk, and marks it
// consumed by this process. Returns ErrNotFound when the file is absent.
func (m *Manager) Load() (*Document, error) {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("config: read %s: %w", m.path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", m.path, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate %s: %w", m.path, err)
	}

	m.mu.Lock()
	m.current = &doc
	m.unconsumed = false
	m.mu.Unlock()
	return &doc, nil
}

// Peek reads and validates the document without marking it consumed.
// The evaluator uses this so status probes stay side-effect-free.
func (m *Manager) Peek() (*Document, error) {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("config: read %s: %w", m.path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", m.path, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate %s: %w", m.path, err)
	}
	return &doc, nil
}

// Save validates doc and writes it to disk atomically (temp file + rename).
// The document is marked unconsumed until Load is called again, so the
// restart trigger knows a reload is pending.
func (m *Manager) Save(doc *Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("config: refusing to save invalid document: %w", err)
	}

	raw, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: create dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".plume-*.yaml")
	if err != nil {
		return fmt.Errorf("config: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("config: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("config: close temp file: %w", err)
	}
	// The document carries the secret key; keep it owner-readable only.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("config: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("config: rename into place: %w", err)
	}

	m.unconsumed = true
	m.logger.Info("configuration document written", "path", m.path)
	return nil
}

// Unconsumed reports whether the document was written after the running
// process last consumed it.
func (m *Manager) Unconsumed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unconsumed
}

// Current returns the document last consumed by this process, or nil.
func (m *Manager) Current() *Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}
