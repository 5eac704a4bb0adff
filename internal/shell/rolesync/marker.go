package rolesync

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/artpar/harbor/internal/core/deployment"
)

// ReadMarker returns the version recorded by the last full synchronization of
// roleDir. present is false when no marker exists.
func ReadMarker(roleDir string) (version string, present bool, err error) {
	data, err := os.ReadFile(filepath.Join(roleDir, deployment.MarkerFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &deployment.SyncError{Op: "read marker", Path: roleDir, Err: err}
	}
	return strings.TrimSpace(string(data)), true, nil
}

// WriteMarker records version as the last fully synchronized version.
func WriteMarker(roleDir, version string) error {
	path := filepath.Join(roleDir, deployment.MarkerFile)
	if err := os.WriteFile(path, []byte(version), 0644); err != nil {
		return &deployment.SyncError{Op: "write marker", Path: path, Err: err}
	}
	return nil
}

// IsConfigured reports whether roleDir has completed a full synchronization.
func IsConfigured(roleDir string) bool {
	info, err := os.Stat(filepath.Join(roleDir, deployment.MarkerFile))
	return err == nil && info.Mode().IsRegular()
}
