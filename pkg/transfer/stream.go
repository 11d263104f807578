package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rescp17/transferkit/pkg/fileInfo"
)

var (
	ErrIsDir = errors.New("cannot stream a directory")
	// ErrStopped ends a copy whose progress callback refused more bytes
	ErrStopped = errors.New("stream stopped")
)

// OpenShared opens the regular file behind node for streaming
func OpenShared(node *fileInfo.FileNode) (*os.File, error) {
	if node.IsDir {
		return nil, ErrIsDir
	}
	return os.Open(node.Path)
}

// progressWriter reports every write so the caller can count bytes and stop the copy
type progressWriter struct {
	ctx    context.Context
	dst    io.Writer
	report func(n int) bool
}

func (p *progressWriter) Write(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.dst.Write(b)
	if n > 0 && !p.report(n) {
		return n, ErrStopped
	}
	return n, err
}

// StreamFile copies exactly size bytes from src to dst in chunkSize writes, calling report after
// each one. A source shorter than size fails with io.ErrUnexpectedEOF.
func StreamFile(ctx context.Context, dst io.Writer, src io.Reader, size int64, chunkSize int32, report func(n int) bool) (int64, error) {
	if chunkSize < MinChunkSize || chunkSize > MaxChunkSize {
		return 0, fmt.Errorf("chunk size must be between %d and %d", MinChunkSize, MaxChunkSize)
	}
	if report == nil {
		report = func(int) bool { return true }
	}
	// hide WriterTo so the chunk size is honored
	limited := struct{ io.Reader }{io.LimitReader(src, size)}
	written, err := io.CopyBuffer(&progressWriter{ctx: ctx, dst: dst, report: report}, limited, make([]byte, chunkSize))
	if err != nil {
		return written, err
	}
	if written < size {
		return written, io.ErrUnexpectedEOF
	}
	return written, nil
}
