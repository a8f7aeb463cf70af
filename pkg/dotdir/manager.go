// Package dotdir resolves the .relay directory holding config.toml and
// credentials.toml.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the name of the relay state directory.
const DirName = ".relay"

type Manager struct {
	getwd   func() (string, error)
	homeDir func() (string, error)
}

func NewManager() *Manager {
	return &Manager{
		getwd:   os.Getwd,
		homeDir: os.UserHomeDir,
	}
}

// Target returns the absolute path of the .relay directory, creating it when
// missing. Precedence:
//  1. overrideDir
//  2. ./.relay when it exists
//  3. ~/.relay
func (m *Manager) Target(overrideDir string) (string, error) {
	dir := overrideDir

	if dir == "" {
		local, err := m.localDir()
		if err != nil {
			return "", err
		}
		dir = local
	}

	if dir == "" {
		home, err := m.homeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, DirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s directory %s: %w", DirName, dir, err)
	}

	return filepath.Abs(dir)
}

// File returns the path of name inside the resolved directory.
func (m *Manager) File(overrideDir, name string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// localDir returns ./.relay when it exists, "" otherwise.
func (m *Manager) localDir() (string, error) {
	cwd, err := m.getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}

	local := filepath.Join(cwd, DirName)
	info, err := os.Stat(local)
	if err != nil || !info.IsDir() {
		return "", nil
	}
	return local, nil
}
