package util

import (
	"errors"
	"fmt"
	"os"
)

// ErrNotDirectory is returned when a path exists but is a regular file
var ErrNotDirectory = errors.New("not a directory")

func CheckDirectory(path string) (exists bool, isDir bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, info.IsDir(), nil
}

// EnsureDirectory creates path when missing and fails when it names a file
func EnsureDirectory(path string) error {
	exists, isDir, err := CheckDirectory(path)
	if err != nil {
		return err
	}
	if exists && !isDir {
		return fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}
	if !exists {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
	}
	return nil
}
