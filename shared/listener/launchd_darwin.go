package listener

import (
	"net"
	"os"
	"strings"

	launchd "github.com/bored-engineer/go-launchd"

	"github.com/furisto/switchboard/shared"
)

const (
	launchdLabelPrefix = "sh.switchboard."

	// DefaultLaunchdSocket is the Sockets key in the launchd plist.
	DefaultLaunchdSocket = "Listeners"
)

// LaunchdSocketProvider takes over the socket launchd opened for the job.
type LaunchdSocketProvider struct {
	socket string
}

var _ Provider = (*LaunchdSocketProvider)(nil)

// NewLaunchdSocketProvider activates the named socket of the plist. The
// name can be overridden with SWITCHBOARD_LAUNCHD_SOCKET.
func NewLaunchdSocketProvider() *LaunchdSocketProvider {
	socket := os.Getenv("SWITCHBOARD_LAUNCHD_SOCKET")
	if socket == "" {
		socket = DefaultLaunchdSocket
	}
	return &LaunchdSocketProvider{socket: socket}
}

func (p *LaunchdSocketProvider) Create() (net.Listener, error) {
	l, err := launchd.Activate(p.socket)
	if err != nil {
		return nil, shared.Wrap(shared.ErrorSourceTransport, err, "failed to activate launchd socket %q", p.socket)
	}
	return l, nil
}

func (p *LaunchdSocketProvider) Close() error {
	return nil
}

func (p *LaunchdSocketProvider) ActivationType() string {
	return "launchd"
}

// IsLaunchdSocketActivation reports whether the process runs as a
// switchboard launchd job.
func IsLaunchdSocketActivation() bool {
	return strings.HasPrefix(os.Getenv("XPC_SERVICE_NAME"), launchdLabelPrefix)
}

func socketActivationProvider() Provider {
	if IsLaunchdSocketActivation() {
		return NewLaunchdSocketProvider()
	}
	return nil
}
