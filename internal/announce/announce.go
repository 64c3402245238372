// Package announce advertises the HTTP status page over mDNS so the
// indicator can be found on the LAN without knowing its address.
package announce

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/enbility/zeroconf/v2"
)

const (
	serviceType = "_http._tcp"
	domain      = "local."
)

// Announcer is a running mDNS registration.
type Announcer struct {
	server *zeroconf.Server
}

// Start registers the status page on all interfaces. addr is the HTTP
// listen address (e.g. ":80"); only its port is announced.
func Start(addr string) (*Announcer, error) {
	port, err := portFromAddr(addr)
	if err != nil {
		return nil, err
	}

	host, _ := os.Hostname()
	server, err := zeroconf.Register(
		instanceName(host),
		serviceType,
		domain,
		port,
		txtRecords(),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	return &Announcer{server: server}, nil
}

// Shutdown stops advertising.
func (a *Announcer) Shutdown() {
	if a.server != nil {
		a.server.Shutdown()
	}
}

func instanceName(host string) string {
	if host == "" {
		return "setpoint-indicator"
	}
	return "setpoint-indicator @ " + host
}

func txtRecords() []string {
	return []string{"path=/index.json"}
}

func portFromAddr(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("http addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("http addr %q: non-numeric port", addr)
	}
	return port, nil
}
