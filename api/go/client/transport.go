package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/http2"

	"github.com/furisto/switchboard/shared"
)

const DefaultAddress = "localhost:50051"

// endpoint is a parsed agent service address.
type endpoint struct {
	baseURL    string
	socketPath string
	secure     bool
}

// parseAddress accepts host:port, http(s)://host:port and unix:///path.
func parseAddress(address string) (endpoint, error) {
	if address == "" {
		address = DefaultAddress
	}

	if strings.HasPrefix(address, "unix:") {
		path := strings.TrimPrefix(strings.TrimPrefix(address, "unix:"), "//")
		if path == "" {
			return endpoint{}, shared.Errorf(shared.ErrorSourceConfig, "invalid agent address %q: missing socket path", address)
		}
		return endpoint{baseURL: "http://unix", socketPath: path}, nil
	}

	if !strings.Contains(address, "://") {
		address = "http://" + address
	}

	u, err := url.Parse(address)
	if err != nil {
		return endpoint{}, shared.Wrap(shared.ErrorSourceConfig, err, "invalid agent address %q", address)
	}

	switch u.Scheme {
	case "http", "https":
	default:
		return endpoint{}, shared.Errorf(shared.ErrorSourceConfig, "invalid agent address %q: unsupported scheme %q", address, u.Scheme)
	}

	if u.Host == "" {
		return endpoint{}, shared.Errorf(shared.ErrorSourceConfig, "invalid agent address %q: missing host", address)
	}

	return endpoint{
		baseURL: u.Scheme + "://" + u.Host,
		secure:  u.Scheme == "https",
	}, nil
}

// newHTTPClient returns an HTTP/2 client for ep. Plaintext endpoints use h2c
// since gRPC requires HTTP/2. Nothing is dialled until the first request.
func newHTTPClient(ep endpoint) *http.Client {
	if ep.secure {
		return &http.Client{Transport: &http2.Transport{}}
	}

	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var dialer net.Dialer
				if ep.socketPath != "" {
					return dialer.DialContext(ctx, "unix", ep.socketPath)
				}
				return dialer.DialContext(ctx, network, addr)
			},
		},
	}
}

type Protocol string

const (
	ProtocolGRPC    Protocol = "grpc"
	ProtocolGRPCWeb Protocol = "grpcweb"
	ProtocolConnect Protocol = "connect"
)

func (p Protocol) Validate() error {
	switch p {
	case "", ProtocolGRPC, ProtocolGRPCWeb, ProtocolConnect:
		return nil
	}
	return fmt.Errorf("unsupported protocol %q: must be one of %q, %q or %q", p, ProtocolGRPC, ProtocolGRPCWeb, ProtocolConnect)
}
