// Package utils holds small file and string helpers shared by the CLI and
// the report writers.
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// protectedDirs are never written to by report output.
var protectedDirs = []string{
	"/etc", "/proc", "/sys", "/dev", "/boot",
	"/usr/bin", "/usr/sbin", "/bin", "/sbin",
}

// SafeCreateFile creates (or truncates) a report file after rejecting
// traversal and system paths. Missing parent directories are created.
func SafeCreateFile(filename string) (*os.File, error) {
	clean, err := checkOutputPath(filename)
	if err != nil {
		return nil, fmt.Errorf("invalid file path: %w", err)
	}

	if dir := filepath.Dir(clean); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	file, err := os.Create(clean) // #nosec G304 - path checked above
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", clean, err)
	}
	return file, nil
}

func checkOutputPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty path")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return "", fmt.Errorf("path contains directory traversal: %s", path)
		}
	}

	clean := filepath.Clean(path)
	if filepath.IsAbs(clean) {
		for _, dir := range protectedDirs {
			if clean == dir || strings.HasPrefix(clean, dir+string(filepath.Separator)) {
				return "", fmt.Errorf("path points to system directory %s: %s", dir, path)
			}
		}
	}
	return clean, nil
}

// FileExists reports whether path names a regular file.
func FileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// DirectoryExists reports whether path names a directory.
func DirectoryExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
