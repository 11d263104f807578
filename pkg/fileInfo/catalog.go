package fileInfo

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
)

var ErrNotInCatalog = errors.New("file not in catalog")

// Index lists every regular file below root, sorted by name. Hidden entries and symlinks are
// skipped. Checksums from previous are reused for files whose size and mtime did not change.
func Index(root string, previous []FileNode) ([]FileNode, error) {
	cached := make(map[string]FileNode, len(previous))
	for _, n := range previous {
		cached[n.Path] = n
	}

	var out []FileNode
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			slog.Warn("Skipping unreadable entry", "path", p, "error", err)
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, p)
		if err != nil || rel == "." {
			rel = d.Name()
		}
		name := filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			slog.Warn("Skipping unreadable entry", "path", p, "error", err)
			return nil
		}
		if prev, ok := cached[p]; ok && prev.unchanged(info) {
			prev.Name = name
			out = append(out, prev)
			return nil
		}

		node, err := CreateNode(p)
		if err != nil {
			slog.Warn("Skipping unreadable entry", "path", p, "error", err)
			return nil
		}
		node.Name = name
		out = append(out, node)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Find looks an entry up by name
func Find(files []FileNode, name string) (FileNode, error) {
	for _, f := range files {
		if f.Name == name {
			return f, nil
		}
	}
	return FileNode{}, fmt.Errorf("%w: %s", ErrNotInCatalog, name)
}
