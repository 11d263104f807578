// Package postprocess holds the stages that run after a payload has been fetched.
package postprocess

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

var ErrUnsafePath = errors.New("archive entry escapes destination")

// Unzip extracts the archive at src into dest and returns the number of files written.
// Entries that would land outside dest are rejected.
func Unzip(ctx context.Context, src, dest string) (int, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return 0, fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, err
	}

	written := 0
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return written, fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, err
			}
			continue
		}
		if err := extract(f, target); err != nil {
			return written, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		written++
	}
	return written, nil
}

func extract(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	in, err := f.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ArchiveDir is where an archive is extracted: its path without the extension
func ArchiveDir(archivePath string) string {
	ext := filepath.Ext(archivePath)
	if ext == "" {
		return archivePath + "_files"
	}
	return strings.TrimSuffix(archivePath, ext)
}
