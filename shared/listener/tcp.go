package listener

import (
	"errors"
	"net"

	"github.com/furisto/switchboard/shared"
)

// TCPProvider listens on a host:port address. A bare ":port" listens on all
// interfaces.
type TCPProvider struct {
	address  string
	listener net.Listener
}

var _ Provider = (*TCPProvider)(nil)

func NewTCPProvider(address string) *TCPProvider {
	return &TCPProvider{
		address: address,
	}
}

func (p *TCPProvider) Create() (net.Listener, error) {
	if _, _, err := net.SplitHostPort(p.address); err != nil {
		return nil, shared.Wrap(shared.ErrorSourceConfig, err, "invalid listen address %q", p.address)
	}

	l, err := net.Listen("tcp", p.address)
	if err != nil {
		return nil, shared.Wrap(shared.ErrorSourceTransport, err, "failed to listen on %s", p.address)
	}

	p.listener = l
	return l, nil
}

// Close closes the listener if it is still open. Serving usually closed it
// already.
func (p *TCPProvider) Close() error {
	if p.listener == nil {
		return nil
	}
	if err := p.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (p *TCPProvider) ActivationType() string {
	return "tcp"
}
