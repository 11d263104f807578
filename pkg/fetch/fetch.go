// Package fetch streams remote resources to disk and reports progress through callbacks.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
)

// Action tells the fetcher whether to keep reading after a data callback
type Action int

const (
	Continue Action = iota
	Abort
)

// Listener receives the events of one Save call. Exactly one of OnComplete, OnError or
// OnCancel ends every call.
type Listener interface {
	OnData(p []byte) Action
	OnComplete()
	OnError(err error)
	OnCancel()
}

// SizeListener is implemented by listeners that want the announced content length
type SizeListener interface {
	OnSize(n int64)
}

// ErrTooLarge is returned by Bytes when the body exceeds the limit
var ErrTooLarge = errors.New("response body too large")

// Options configures an HTTPFetcher
type Options struct {
	Timeout        time.Duration // time to wait for response headers
	BufferSize     int
	BandwidthLimit int64 // bytes per second shared by all fetches, 0 = unlimited
	UserAgent      string
	Transport      http.RoundTripper
}

// HTTPFetcher downloads over HTTP(S)
type HTTPFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	bufSize   int
	userAgent string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewHTTPFetcher creates a fetcher. Zero options get defaults.
func NewHTTPFetcher(opts Options, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 32 * 1024
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "transferkit/1.0"
	}
	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		if opts.Timeout > 0 {
			t.ResponseHeaderTimeout = opts.Timeout
		}
		transport = t
	}

	f := &HTTPFetcher{
		client:    &http.Client{Transport: transport},
		bufSize:   opts.BufferSize,
		userAgent: opts.UserAgent,
		timeout:   opts.Timeout,
		logger:    logger,
	}
	if opts.BandwidthLimit > 0 {
		burst := opts.BufferSize
		if int64(burst) < opts.BandwidthLimit {
			burst = int(opts.BandwidthLimit)
		}
		f.limiter = rate.NewLimiter(rate.Limit(opts.BandwidthLimit), burst)
	}
	return f
}

// Save streams uri into dst, creating parent directories.
func (f *HTTPFetcher) Save(ctx context.Context, uri, dst string, l Listener) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		l.OnError(fmt.Errorf("build request: %w", err))
		return
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			l.OnCancel()
			return
		}
		l.OnError(err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		l.OnError(&StatusError{URL: uri, StatusCode: resp.StatusCode, Header: resp.Header.Clone()})
		return
	}
	if sl, ok := l.(SizeListener); ok && resp.ContentLength > 0 {
		sl.OnSize(resp.ContentLength)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		l.OnError(err)
		return
	}
	out, err := os.Create(dst)
	if err != nil {
		l.OnError(err)
		return
	}

	f.logger.Debug("Fetching", "url", uri, "dst", dst, "content_length", resp.ContentLength)
	if err := f.copy(ctx, out, resp.Body, l); err != nil {
		out.Close()
		if errors.Is(err, errAborted) || ctx.Err() != nil {
			l.OnCancel()
			return
		}
		l.OnError(err)
		return
	}
	if err := out.Close(); err != nil {
		l.OnError(err)
		return
	}
	l.OnComplete()
}

var errAborted = errors.New("aborted by listener")

func (f *HTTPFetcher) copy(ctx context.Context, dst io.Writer, src io.Reader, l Listener) error {
	buf := make([]byte, f.bufSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if f.limiter != nil {
				if err := f.limiter.WaitN(ctx, n); err != nil {
					return err
				}
			}
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("write: %w", err)
			}
			if l.OnData(buf[:n]) == Abort {
				return errAborted
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

// Bytes fetches a small body into memory, sending referer when set
func (f *HTTPFetcher) Bytes(ctx context.Context, uri, referer string, limit int64) ([]byte, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: uri, StatusCode: resp.StatusCode, Header: resp.Header.Clone()}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes from %s", ErrTooLarge, limit, uri)
	}
	return data, nil
}
