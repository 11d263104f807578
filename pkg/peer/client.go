package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rescp17/transferkit/pkg/downloads"
	"github.com/rescp17/transferkit/pkg/fetch"
	"github.com/rescp17/transferkit/pkg/fileInfo"
)

const serviceIDHeader = "X-Service-ID"

// serviceIDInjector is a custom http.RoundTripper that injects a service ID into each request.
type serviceIDInjector struct {
	serviceID string
	next      http.RoundTripper
}

// RoundTrip intercepts the request, adds the service ID header, and passes it to the next transport.
func (t *serviceIDInjector) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set(serviceIDHeader, t.serviceID)
	return t.next.RoundTrip(req)
}

// Client talks to other peers' catalogs
type Client struct {
	httpClient *http.Client
	transport  http.RoundTripper
}

// NewClient creates a client that identifies itself with serviceID on every request
func NewClient(serviceID string) *Client {
	transport := &serviceIDInjector{
		serviceID: serviceID,
		next:      http.DefaultTransport,
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		transport: transport,
	}
}

// Transport is shared with the fetcher so file requests carry the same identity
func (c *Client) Transport() http.RoundTripper {
	return c.transport
}

// Catalog lists the files p shares
func (c *Client) Catalog(ctx context.Context, p Peer) ([]fileInfo.FileNode, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.CatalogURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach %s: %w", p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &fetch.StatusError{URL: p.CatalogURL(), StatusCode: resp.StatusCode, Header: resp.Header.Clone()}
	}
	var files []fileInfo.FileNode
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("failed to decode catalog of %s: %w", p, err)
	}
	return files, nil
}

// Files lists p's catalog as download sources
func (c *Client) Files(ctx context.Context, p Peer) ([]downloads.PeerFile, error) {
	files, err := c.Catalog(ctx, p)
	if err != nil {
		return nil, err
	}
	out := make([]downloads.PeerFile, 0, len(files))
	for _, f := range files {
		out = append(out, downloads.PeerFile{
			Peer: p.String(),
			URI:  p.DownloadURI(f.Name),
			File: f,
		})
	}
	return out, nil
}
