package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

const (
	DefaultServiceType = "_transferkit._tcp"
	DefaultDomain      = "local"
)

// ServiceName is the fully qualified name browsed for, e.g. "_transferkit._tcp.local."
func ServiceName(serviceType, domain string) string {
	return fmt.Sprintf("%s.%s.", serviceType, domain)
}

type ServiceInfo struct {
	Name   string // instance name shown to other peers
	Type   string // service name, e.g., "_transferkit._tcp"
	Domain string // domain, e.g., "local"
	Addr   net.IP
	Port   int
	Text   map[string]string
}

// HostPort returns the address peers dial
func (s ServiceInfo) HostPort() string {
	host := "localhost"
	if s.Addr != nil {
		host = s.Addr.String()
	}
	return net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// DiscoveryResult carries either a snapshot of the visible services or an error
type DiscoveryResult struct {
	Services []ServiceInfo
	Error    error
}

type Adapter interface {
	Announce(ctx context.Context, service ServiceInfo) error
	Discover(ctx context.Context, service string) <-chan DiscoveryResult
}
