// Package peer shares a directory with other hosts on the LAN and fetches their catalogs.
package peer

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/rescp17/transferkit/pkg/discovery"
)

const (
	catalogPath = "/peer/files"
	// TextKeyName carries the friendly name in the mDNS TXT record
	TextKeyName = "name"
)

// Peer is a host serving a catalog
type Peer struct {
	Name string `json:"name"`
	Addr string `json:"addr"`
	Port int    `json:"port"`
}

// FromService converts a discovered service into a peer
func FromService(s discovery.ServiceInfo) Peer {
	p := Peer{Name: s.Name, Port: s.Port, Addr: "localhost"}
	if s.Addr != nil {
		p.Addr = s.Addr.String()
	}
	if name := s.Text[TextKeyName]; name != "" {
		p.Name = name
	}
	return p
}

// Parse reads a "host:port" address typed by the user
func Parse(hostport string) (Peer, error) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(hostport))
	if err != nil {
		return Peer{}, fmt.Errorf("invalid peer address %q: %w", hostport, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil || n <= 0 || n > 65535 {
		return Peer{}, fmt.Errorf("invalid peer port %q", port)
	}
	if host == "" {
		host = "localhost"
	}
	return Peer{Addr: host, Port: n}, nil
}

// BaseURL is the root of the peer's HTTP API
func (p Peer) BaseURL() string {
	return "http://" + net.JoinHostPort(p.Addr, strconv.Itoa(p.Port))
}

// CatalogURL lists the shared files
func (p Peer) CatalogURL() string {
	return p.BaseURL() + catalogPath
}

// DownloadURI addresses one catalog entry. Each path segment is escaped.
func (p Peer) DownloadURI(name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return p.CatalogURL() + "/" + strings.Join(segments, "/")
}

func (p Peer) String() string {
	if p.Name != "" {
		return p.Name
	}
	return net.JoinHostPort(p.Addr, strconv.Itoa(p.Port))
}
