package listener

import (
	"fmt"
	"net"
)

type Provider interface {
	Create() (net.Listener, error)
	Close() error
	ActivationType() string
}

// DetectProvider picks where to listen. An explicit unix socket wins over a
// tcp address; with neither, socket activation by the service manager is
// used when present.
func DetectProvider(httpAddress, unixSocket string) (Provider, error) {
	if unixSocket != "" {
		return NewUnixSocketProvider(unixSocket), nil
	}

	if httpAddress != "" {
		return NewTCPProvider(httpAddress), nil
	}

	if provider := socketActivationProvider(); provider != nil {
		return provider, nil
	}

	return nil, fmt.Errorf("no valid listener has been detected. Specify either a unix socket, tcp address or use socket activation")
}

// SocketActivated reports whether the service manager passed in a listening
// socket.
func SocketActivated() bool {
	return socketActivationProvider() != nil
}
