package downloads

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanFileName(t *testing.T) {
	cases := map[string]string{
		"report.pdf":         "report.pdf",
		"a/b\\c.txt":         "abc.txt",
		"what?<now>|.mp4":    "whatnow.mp4",
		"  padded.txt  ":     "padded.txt",
		"tab\there":          "tabhere",
		"":                   "download",
		"..":                 "download",
		"::":                 "download",
		"Überweisung 1.docx": "Überweisung 1.docx",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanFileName(in), "input %q", in)
	}
}

func TestFileNameFromURL(t *testing.T) {
	assert.Equal(t, "file name.zip", FileNameFromURL("https://example.com/dl/file%20name.zip?token=1"))
	assert.Equal(t, "download", FileNameFromURL("https://example.com/"))
	assert.Equal(t, "download", FileNameFromURL("https://example.com"))
	assert.Equal(t, "x.bin", FileNameFromURL("/local/x.bin"))
}

func TestUniqueFileName(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "a.txt"), UniqueFileName(dir, "a.txt"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), nil, 0o644))
	assert.Equal(t, filepath.Join(dir, "a (1).txt"), UniqueFileName(dir, "a.txt"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a (1).txt"), nil, 0o644))
	assert.Equal(t, filepath.Join(dir, "a (2).txt"), UniqueFileName(dir, "a.txt"))

	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder"), 0o755))
	assert.Equal(t, filepath.Join(dir, "folder (1)"), UniqueFileName(dir, "folder"))
}
