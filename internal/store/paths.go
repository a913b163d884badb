package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the directory ideograph keeps its state in.
const DirName = ".ideograph"

// DefaultFile is the graph store file created inside DirName.
const DefaultFile = "graph.db"

// GlobalPath returns the path to the global .ideograph directory.
// On Unix: ~/.ideograph
// On Windows: %USERPROFILE%\.ideograph
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, DirName), nil
}

// LocalPath returns the .ideograph directory for the given project root.
func LocalPath(projectRoot string) string {
	return filepath.Join(projectRoot, DirName)
}

// DefaultStorePath returns the global graph store file, ~/.ideograph/graph.db.
func DefaultStorePath() (string, error) {
	dir, err := GlobalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultFile), nil
}
