package fileInfo

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
)

// SHA256File returns the hex SHA-256 of the content at path
func SHA256File(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Error("fail to close file", "error", err.Error())
		}
	}()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// VerifyFile checks the file at p against an expected SHA-256 checksum
func VerifyFile(p, expectedChecksum string) (bool, error) {
	actual, err := SHA256File(p)
	if err != nil {
		return false, err
	}
	return actual == expectedChecksum, nil
}
