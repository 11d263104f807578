// Package downloads implements the concrete transfer kinds on top of pkg/transfer.
package downloads

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const fallbackFileName = "download"

// CleanFileName strips control characters and characters that are illegal in file names on
// common filesystems
func CleanFileName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 32 {
			return -1
		}
		switch r {
		case '"', '*', '/', ':', '<', '>', '?', '\\', '|':
			return -1
		}
		return r
	}, name)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return fallbackFileName
	}
	return cleaned
}

// FileNameFromURL returns the last path segment of raw, unescaped
func FileNameFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return fallbackFileName
	}
	base := path.Base(u.Path)
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	if base == "/" || base == "." {
		return fallbackFileName
	}
	return base
}

// UniqueFileName returns dir/name, or the first free "name (n).ext" variant
func UniqueFileName(dir, name string) string {
	candidate := filepath.Join(dir, name)
	if !exists(candidate) {
		return candidate
	}
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
		if !exists(candidate) {
			return candidate
		}
	}
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}
