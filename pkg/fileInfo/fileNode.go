package fileInfo

import (
	"os"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// FileNode is one entry of a shared catalog. Name is the slash-separated path relative to the
// shared root, which is how peers address it.
type FileNode struct {
	Name     string    `json:"name"`
	IsDir    bool      `json:"is_dir,omitempty"`
	Size     int64     `json:"size"`
	MimeType string    `json:"mime_type,omitempty"`
	Checksum string    `json:"checksum,omitempty"`
	ModTime  time.Time `json:"mod_time"`
	Path     string    `json:"-"`
}

// CreateNode describes the entry at path. Regular files get a MIME type and a SHA-256 checksum,
// directories only their name.
func CreateNode(path string) (FileNode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileNode{}, err
	}
	node := FileNode{
		Name:    info.Name(),
		IsDir:   info.IsDir(),
		ModTime: info.ModTime(),
		Path:    path,
	}
	if node.IsDir {
		return node, nil
	}
	node.Size = info.Size()
	node.MimeType = detectMime(path)
	if node.Checksum, err = SHA256File(path); err != nil {
		return FileNode{}, err
	}
	return node, nil
}

func detectMime(path string) string {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	return mime.String()
}

// unchanged reports whether a cached entry still matches what is on disk
func (n FileNode) unchanged(info os.FileInfo) bool {
	return n.Checksum != "" && n.Size == info.Size() && n.ModTime.Equal(info.ModTime())
}
