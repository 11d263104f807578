// Package library keeps an index of finished downloads.
package library

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// Entry is one indexed file
type Entry struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	MimeType  string    `json:"mime_type"`
	Category  string    `json:"category"`
	ScannedAt time.Time `json:"scanned_at"`
}

// Scanner indexes files on disk by MIME type
type Scanner struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
	logger  *slog.Logger
}

// NewScanner creates an empty index
func NewScanner(logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		entries: make(map[string]Entry),
		now:     time.Now,
		logger:  logger,
	}
}

// Scan indexes path, walking it when it is a directory. Unreadable entries are skipped.
func (s *Scanner) Scan(path string) {
	count := 0
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Debug("Skipping unreadable path", "path", p, "error", err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		mime := "application/octet-stream"
		if m, err := mimetype.DetectFile(p); err == nil {
			mime = m.String()
		}
		entry := Entry{
			Path:      p,
			Name:      d.Name(),
			Size:      info.Size(),
			MimeType:  mime,
			Category:  Category(mime),
			ScannedAt: s.now(),
		}
		s.mu.Lock()
		s.entries[p] = entry
		s.mu.Unlock()
		count++
		return nil
	})
	if err != nil {
		s.logger.Warn("Library scan failed", "path", path, "error", err)
		return
	}
	s.logger.Debug("Library scan complete", "path", path, "files", count)
}

// Lookup returns the entry for an exact path
func (s *Scanner) Lookup(path string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[path]
	return e, ok
}

// Entries lists the index sorted by path
func (s *Scanner) Entries() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Forget drops every entry at or below path
func (s *Scanner) Forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prefix := path + string(filepath.Separator)
	for p := range s.entries {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(s.entries, p)
		}
	}
}

// Category maps a MIME type to a coarse media category
func Category(mime string) string {
	switch {
	case strings.HasPrefix(mime, "audio/"):
		return "audio"
	case strings.HasPrefix(mime, "video/"):
		return "video"
	case strings.HasPrefix(mime, "image/"):
		return "picture"
	case strings.HasPrefix(mime, "text/"), strings.Contains(mime, "pdf"), strings.Contains(mime, "document"):
		return "document"
	case strings.Contains(mime, "zip"), strings.Contains(mime, "x-bittorrent"):
		return "archive"
	default:
		return "other"
	}
}
