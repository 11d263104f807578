package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/transferkit/pkg/fileInfo"
	"github.com/rescp17/transferkit/pkg/peer"
	"github.com/rescp17/transferkit/pkg/transfer"
)

func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	root := t.TempDir()
	cfg := Config{
		DataDir:       filepath.Join(root, "data"),
		TempDir:       filepath.Join(root, "tmp"),
		SharedDir:     filepath.Join(root, "shared"),
		MaxConcurrent: 2,
		UploadSlots:   2,
	}
	r, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func waitTerminal(t *testing.T, tr transfer.Transfer) {
	t.Helper()
	require.Eventually(t, func() bool { return tr.State().IsTerminal() }, 5*time.Second, 10*time.Millisecond)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		url  string
		want sourceKind
		err  bool
	}{
		{"https://example.com/file.iso", sourceHTTP, false},
		{"http://example.com/a/b.TORRENT", sourceTorrent, false},
		{"magnet:?xt=urn:btih:c9e15763f722f23e98a29decdfae341b98d53056&dn=demo", sourceTorrent, false},
		{"ftp://example.com/file", sourceHTTP, true},
		{"not a url", sourceHTTP, true},
		{"https:///nohost", sourceHTTP, true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := classify(tt.url)
			if tt.err {
				assert.ErrorIs(t, err, ErrUnsupportedURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddURLDownloadsOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello transferkit"))
	}))
	defer srv.Close()

	r := newRuntime(t)
	tr, err := r.AddURL(context.Background(), srv.URL+"/greeting.txt")
	require.NoError(t, err)
	assert.Equal(t, transfer.KindHTTP, tr.Kind())

	waitTerminal(t, tr)
	require.Equal(t, transfer.StateComplete, tr.State(), "err: %v", tr.Err())
	got, err := os.ReadFile(tr.SavePath())
	require.NoError(t, err)
	assert.Equal(t, "hello transferkit", string(got))

	// the library rescan runs right after the state change
	assert.Eventually(t, func() bool {
		_, scanned := r.Library.Lookup(tr.SavePath())
		return scanned && r.Manager.DownloadsToReview() == 1
	}, time.Second, 10*time.Millisecond)
}

func TestAddRejectsUnsupportedURL(t *testing.T) {
	r := newRuntime(t)
	_, err := r.AddURL(context.Background(), "gopher://old.example")
	assert.ErrorIs(t, err, ErrUnsupportedURL)
	assert.Zero(t, r.Manager.Count())
}

func TestAddWithCanceledContextRegistersNothing(t *testing.T) {
	r := newRuntime(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.AddURL(ctx, "https://example.com/file.bin")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, r.Manager.Count())
}

type failingEngine struct{}

func (failingEngine) FetchMagnet(context.Context, string) ([]byte, error) {
	return nil, errors.New("no peers")
}

func (failingEngine) Download(context.Context, []byte, transfer.Env) (transfer.Transfer, error) {
	return nil, errors.New("unreachable")
}

func TestAddMagnetUsesTorrentFetcher(t *testing.T) {
	r := newRuntime(t)
	r.torrents = failingEngine{}

	tr, err := r.AddURL(context.Background(), "magnet:?xt=urn:btih:c9e15763f722f23e98a29decdfae341b98d53056&dn=demo")
	require.NoError(t, err)
	assert.Equal(t, transfer.KindTorrentFetch, tr.Kind())
	assert.Equal(t, "demo", tr.DisplayName())

	waitTerminal(t, tr)
	assert.Equal(t, transfer.StateError, tr.State())
	assert.ErrorContains(t, tr.Err(), "no peers")
}

func TestPullFromPeer(t *testing.T) {
	sharer := newRuntime(t)
	require.NoError(t, os.MkdirAll(sharer.Config().SharedDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sharer.Config().SharedDir, "notes.txt"), []byte("shared notes"), 0o644))
	server, err := sharer.PeerServer()
	require.NoError(t, err)
	srv := httptest.NewServer(server)
	defer srv.Close()

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)
	p := peer.Peer{Name: "sharer", Addr: host, Port: portNum}

	puller := newRuntime(t)
	tr, err := puller.Pull(context.Background(), p, "notes.txt")
	require.NoError(t, err)
	waitTerminal(t, tr)
	require.Equal(t, transfer.StateComplete, tr.State(), "err: %v", tr.Err())
	got, err := os.ReadFile(tr.SavePath())
	require.NoError(t, err)
	assert.Equal(t, "shared notes", string(got))

	_, err = puller.Pull(context.Background(), p, "missing.txt")
	assert.ErrorIs(t, err, fileInfo.ErrNotInCatalog)
}
