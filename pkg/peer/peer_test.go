package peer

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/transferkit/pkg/discovery"
	"github.com/rescp17/transferkit/pkg/downloads"
	"github.com/rescp17/transferkit/pkg/fetch"
	"github.com/rescp17/transferkit/pkg/transfer"
)

func shareDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "plan b.txt"), []byte("the backup plan"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "photo.jpg"), make([]byte, 10_000), 0o644))
	return root
}

func peerFor(t *testing.T, srv *httptest.Server) Peer {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return Peer{Name: "alice", Addr: host, Port: p}
}

func TestPeerURLs(t *testing.T) {
	p := Peer{Name: "bob", Addr: "192.168.1.20", Port: 8080}
	assert.Equal(t, "http://192.168.1.20:8080", p.BaseURL())
	assert.Equal(t, "http://192.168.1.20:8080/peer/files/docs/plan%20b.txt", p.DownloadURI("docs/plan b.txt"))
	assert.Equal(t, "bob", p.String())
	assert.Equal(t, "192.168.1.20:8080", Peer{Addr: "192.168.1.20", Port: 8080}.String())
}

func TestParse(t *testing.T) {
	p, err := Parse("10.0.0.7:8080")
	require.NoError(t, err)
	assert.Equal(t, Peer{Addr: "10.0.0.7", Port: 8080}, p)

	p, err = Parse(":9000")
	require.NoError(t, err)
	assert.Equal(t, "localhost", p.Addr)

	for _, bad := range []string{"10.0.0.7", "host:http", "host:0", "host:70000"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestFromService(t *testing.T) {
	p := FromService(discovery.ServiceInfo{
		Name: "host-1",
		Addr: net.ParseIP("10.0.0.3"),
		Port: 9000,
		Text: map[string]string{TextKeyName: "Living Room"},
	})
	assert.Equal(t, Peer{Name: "Living Room", Addr: "10.0.0.3", Port: 9000}, p)
	assert.Equal(t, "localhost", FromService(discovery.ServiceInfo{Name: "x"}).Addr)
}

func TestCatalogAndDownload(t *testing.T) {
	uploads := transfer.NewManager(nil)
	s, err := NewServer(shareDir(t), uploads, transfer.Env{Registry: uploads}, ServerOptions{Slots: 2})
	require.NoError(t, err)
	srv := httptest.NewServer(s)
	defer srv.Close()

	client := NewClient("svc-test")
	p := peerFor(t, srv)
	files, err := client.Files(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "docs/plan b.txt", files[0].File.Name)
	assert.Equal(t, "photo.jpg", files[1].File.Name)
	assert.NotEmpty(t, files[0].File.Checksum)
	assert.Equal(t, "alice", files[0].Peer)

	downloadsMgr := transfer.NewManager(nil)
	fetcher := fetch.NewHTTPFetcher(fetch.Options{Transport: client.Transport()}, nil)
	env := transfer.Env{Registry: downloadsMgr}
	d := downloads.NewPeerDownload(env, fetcher, files[0], t.TempDir())
	require.NoError(t, downloadsMgr.Register(d))
	require.NoError(t, d.Start(context.Background()))

	require.Equal(t, transfer.StateComplete, d.State(), "err: %v", d.Err())
	got, err := os.ReadFile(d.SavePath())
	require.NoError(t, err)
	assert.Equal(t, "the backup plan", string(got))

	// finished uploads leave the registry
	assert.Eventually(t, func() bool { return uploads.Count() == 0 }, time.Second, 10*time.Millisecond)
}

func TestUnknownFile(t *testing.T) {
	uploads := transfer.NewManager(nil)
	s, err := NewServer(shareDir(t), uploads, transfer.Env{}, ServerOptions{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/peer/files/missing.txt", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "file not in catalog")
}

func TestBusyServerAdvertisesRetry(t *testing.T) {
	uploads := transfer.NewManager(nil)
	s, err := NewServer(shareDir(t), uploads, transfer.Env{}, ServerOptions{Slots: 1, RetryAfter: 3 * time.Second})
	require.NoError(t, err)

	release, err := s.guard.TryAcquire()
	require.NoError(t, err)
	defer release()

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/peer/files/photo.jpg", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "busy")

	// the catalog is not bound by the stream slots
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/peer/files", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitedClientGetsRetryHint(t *testing.T) {
	uploads := transfer.NewManager(nil)
	s, err := NewServer(shareDir(t), uploads, transfer.Env{}, ServerOptions{RequestsPerSecond: 0.001, Burst: 1})
	require.NoError(t, err)
	srv := httptest.NewServer(s)
	defer srv.Close()

	client := NewClient("svc")
	p := peerFor(t, srv)
	_, err = client.Catalog(context.Background(), p)
	require.NoError(t, err)

	_, err = client.Catalog(context.Background(), p)
	var status *fetch.StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusTooManyRequests, status.StatusCode)
	delay, ok := transfer.RetryHint(err)
	assert.True(t, ok)
	assert.Equal(t, 5*time.Second, delay)
}

func TestServiceIDHeaderIsSent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(serviceIDHeader)
		_, _ = w.Write([]byte("[]"))
	}))
	defer srv.Close()

	files, err := NewClient("svc-42").Catalog(context.Background(), peerFor(t, srv))
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Equal(t, "svc-42", got)
}

func TestWatchPicksUpNewFiles(t *testing.T) {
	root := shareDir(t)
	s, err := NewServer(root, transfer.NewManager(nil), transfer.Env{}, ServerOptions{})
	require.NoError(t, err)
	require.Len(t, s.Files(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Watch(ctx, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte("# notes"), 0o644))
	assert.Eventually(t, func() bool { return len(s.Files()) == 3 }, time.Second, 10*time.Millisecond)
}
