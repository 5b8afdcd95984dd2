package tcp

import (
	"fmt"
	"net"
	"strconv"
)

// Endpoint names a TCP host and port, used both to connect and to listen.
// Port 0 on a listening endpoint picks an ephemeral port.
type Endpoint struct {
	Host string
	Port uint16
}

// Address returns the host:port form accepted by the net package.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}

func (e Endpoint) String() string {
	return e.Address()
}

// ParseEndpoint parses "host:port".
func ParseEndpoint(raw string) (Endpoint, error) {
	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("tcp: parse endpoint %q: %w", raw, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Endpoint{}, fmt.Errorf("tcp: parse endpoint %q: invalid port: %w", raw, err)
	}
	return Endpoint{Host: host, Port: uint16(port)}, nil
}

// endpointOf converts a bound address back into an Endpoint.
func endpointOf(addr net.Addr) Endpoint {
	if a, ok := addr.(*net.TCPAddr); ok {
		return Endpoint{Host: a.IP.String(), Port: uint16(a.Port)}
	}
	ep, _ := ParseEndpoint(addr.String())
	return ep
}
