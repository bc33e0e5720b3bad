// Package persistence provides the write-temp-then-rename idiom shared by
// the Resource Manager's deployments.json and the Manifest Fetcher's
// flash_manifest.json, resolution of the hidden state directory, and the
// optional pgx-backed RemoteStore mirror of the deployment registry.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultStateDirName is the hidden folder created in the working directory
// when no override is configured.
const DefaultStateDirName = ".tetra"

// StateDir resolves the root directory for local persisted state: override
// if non-empty, otherwise DefaultStateDirName under the current working
// directory. The directory is created if it does not already exist.
func StateDir(override string) (string, error) {
	dir := override
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		dir = filepath.Join(cwd, DefaultStateDirName)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state directory %s: %w", dir, err)
	}
	return dir, nil
}

// AtomicWriteFile writes data to path by first writing a sibling temp file
// and renaming it into place, so a crash or concurrent read never observes
// a partially-written file.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
