package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedAdapter struct {
	results []DiscoveryResult
}

func (s *scriptedAdapter) Announce(context.Context, ServiceInfo) error { return nil }

func (s *scriptedAdapter) Discover(ctx context.Context, _ string) <-chan DiscoveryResult {
	ch := make(chan DiscoveryResult, len(s.results))
	for _, r := range s.results {
		ch <- r
	}
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

func TestBrowse_ReturnsLastSnapshot(t *testing.T) {
	a := &scriptedAdapter{results: []DiscoveryResult{
		{Services: []ServiceInfo{{Name: "alpha", Port: 1}}},
		{Services: []ServiceInfo{{Name: "alpha", Port: 1}, {Name: "beta", Port: 2}}},
	}}

	got, err := Browse(context.Background(), a, DefaultServiceType, 50*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "beta", got[1].Name)
}

func TestServiceInfo_HostPort(t *testing.T) {
	s := ServiceInfo{Addr: net.ParseIP("192.168.1.20"), Port: 7070}
	assert.Equal(t, "192.168.1.20:7070", s.HostPort())
	assert.Equal(t, "localhost:80", ServiceInfo{Port: 80}.HostPort())
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, "_transferkit._tcp.local.", ServiceName(DefaultServiceType, DefaultDomain))
}

func TestPickAddr_PrefersIPv4(t *testing.T) {
	ips := []net.IP{net.ParseIP("fe80::1"), net.ParseIP("10.0.0.5")}
	assert.Equal(t, "10.0.0.5", pickAddr(ips).String())
	assert.Nil(t, pickAddr(nil))
}

func TestMDNSAdapter_AnnounceStopsOnCancel(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping mDNS test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- (&MDNSAdapter{}).Announce(ctx, ServiceInfo{
			Name:   "test-instance",
			Type:   "_transferkit-test._tcp",
			Domain: DefaultDomain,
			Port:   8080,
		})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Logf("announce returned %v (no multicast interface?)", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("announce did not stop after cancel")
	}
}
