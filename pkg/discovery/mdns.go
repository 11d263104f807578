package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/brutella/dnssd"
)

// MDNSAdapter announces and browses peers with multicast DNS
type MDNSAdapter struct {
	Logger *slog.Logger
}

func (m *MDNSAdapter) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// Announce publishes the service until ctx is done
func (m *MDNSAdapter) Announce(ctx context.Context, serviceInfo ServiceInfo) error {
	text := map[string]string{"desc": "transferkit peer"}
	for k, v := range serviceInfo.Text {
		text[k] = v
	}

	cfg := dnssd.Config{
		Name:   serviceInfo.Name,
		Type:   serviceInfo.Type,
		Domain: serviceInfo.Domain,
		// the responder answers on every interface, so no fixed IPs
		IPs:  nil,
		Text: text,
		Port: serviceInfo.Port,
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create mDNS service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("failed to create mDNS responder: %w", err)
	}

	if _, err = rp.Add(service); err != nil {
		return fmt.Errorf("failed to add mDNS service: %w", err)
	}

	m.logger().Info("Announcing peer", "name", serviceInfo.Name, "type", serviceInfo.Type, "port", serviceInfo.Port)
	if err = rp.Respond(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed to respond to mDNS service: %w", err)
	}

	m.logger().Info("Shutting down mDNS responder")
	return nil
}

// Discover streams snapshots of the visible services until ctx is done
func (m *MDNSAdapter) Discover(ctx context.Context, service string) <-chan DiscoveryResult {
	var (
		mu      sync.Mutex
		entries = make(map[string]ServiceInfo)
		outCh   = make(chan DiscoveryResult, 10)
	)

	key := func(e dnssd.BrowseEntry) string {
		return fmt.Sprintf("%s:%s:%s", e.Name, e.Type, e.Domain)
	}

	sendSnapshot := func() {
		mu.Lock()
		defer mu.Unlock()
		snapshot := make([]ServiceInfo, 0, len(entries))
		for _, entry := range entries {
			snapshot = append(snapshot, entry)
		}
		sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Name < snapshot[j].Name })
		select {
		case outCh <- DiscoveryResult{Services: snapshot}:
		default:
		}
	}

	addFn := func(e dnssd.BrowseEntry) {
		addr := pickAddr(e.IPs)
		if addr == nil {
			m.logger().Debug("Ignoring peer without address", "name", e.Name)
			return
		}
		mu.Lock()
		entries[key(e)] = ServiceInfo{
			Name:   e.Name,
			Type:   e.Type,
			Domain: e.Domain,
			Addr:   addr,
			Port:   e.Port,
			Text:   e.Text,
		}
		mu.Unlock()
		sendSnapshot()
	}

	rmvFn := func(e dnssd.BrowseEntry) {
		mu.Lock()
		delete(entries, key(e))
		mu.Unlock()
		sendSnapshot()
	}

	go func() {
		defer close(outCh)
		if err := dnssd.LookupType(ctx, service, addFn, rmvFn); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			select {
			case outCh <- DiscoveryResult{Error: fmt.Errorf("mDNS lookup failed: %w", err)}:
			default:
			}
		}
	}()

	return outCh
}

// Browse collects services for the given duration and returns the last snapshot
func Browse(ctx context.Context, a Adapter, service string, wait time.Duration) ([]ServiceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var last []ServiceInfo
	for res := range a.Discover(ctx, service) {
		if res.Error != nil {
			return last, res.Error
		}
		last = res.Services
	}
	return last, nil
}

// pickAddr prefers IPv4 so the address can be dialed without a zone
func pickAddr(ips []net.IP) net.IP {
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip
		}
	}
	if len(ips) > 0 {
		return ips[0]
	}
	return nil
}
