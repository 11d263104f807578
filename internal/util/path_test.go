package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDirectory(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	tests := []struct {
		name   string
		path   string
		exists bool
		isDir  bool
	}{
		{"directory", root, true, true},
		{"file", file, true, false},
		{"missing", filepath.Join(root, "missing"), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists, isDir, err := CheckDirectory(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.exists, exists)
			assert.Equal(t, tt.isDir, isDir)
		})
	}
}

func TestCheckDirectoryFollowsSymlinks(t *testing.T) {
	root := t.TempDir()
	link := filepath.Join(root, "link")
	if err := os.Symlink(root, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	exists, isDir, err := CheckDirectory(link)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, isDir)
}

func TestEnsureDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "a", "b")
	require.NoError(t, EnsureDirectory(dir))
	exists, isDir, err := CheckDirectory(dir)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, isDir)

	require.NoError(t, EnsureDirectory(dir))

	file := filepath.Join(root, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	assert.ErrorIs(t, EnsureDirectory(file), ErrNotDirectory)
}
