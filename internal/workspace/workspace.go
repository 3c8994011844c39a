// Package workspace manages the staging area documents are collected into
// before conversion.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docpress/internal/logfields"
)

// Manager handles staging directories (both ephemeral and persistent).
type Manager struct {
	baseDir    string
	stagingDir string
	persistent bool
}

// NewManager creates a workspace manager with an ephemeral timestamped
// staging directory under baseDir (os.TempDir when empty).
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// NewPersistentManager creates a manager using a fixed directory that is
// kept across runs (used when staging.directory is configured).
func NewPersistentManager(dir string) *Manager {
	return &Manager{stagingDir: dir, persistent: true}
}

// Create creates the staging directory. Ephemeral mode creates a
// timestamped directory; persistent mode ensures the fixed one exists.
func (m *Manager) Create() error {
	if m.persistent {
		if err := os.MkdirAll(m.stagingDir, 0o750); err != nil {
			return fmt.Errorf("failed to create persistent staging directory: %w", err)
		}
		slog.Info("Using persistent staging directory", logfields.Path(m.stagingDir))
		return nil
	}

	timestamp := time.Now().Format("20060102-150405")
	dir := filepath.Join(m.baseDir, fmt.Sprintf("docpress-%s", timestamp))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	m.stagingDir = dir
	slog.Info("Created staging directory", logfields.Path(dir))
	return nil
}

// Path returns the staging directory path.
func (m *Manager) Path() string {
	return m.stagingDir
}

// Cleanup removes the staging directory in ephemeral mode and is a no-op
// for persistent workspaces.
func (m *Manager) Cleanup() error {
	if m.stagingDir == "" || m.persistent {
		return nil
	}
	if err := os.RemoveAll(m.stagingDir); err != nil {
		return fmt.Errorf("failed to cleanup staging directory: %w", err)
	}
	slog.Debug("Removed staging directory", logfields.Path(m.stagingDir))
	m.stagingDir = ""
	return nil
}

// CreateSubdir creates a subdirectory within the staging area.
func (m *Manager) CreateSubdir(name string) (string, error) {
	if m.stagingDir == "" {
		return "", fmt.Errorf("staging directory not created")
	}
	subdir := filepath.Join(m.stagingDir, name)
	if err := os.MkdirAll(subdir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}
	return subdir, nil
}
