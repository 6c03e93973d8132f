// Package netx holds small address helpers shared by the relay transport and
// the chat client.
package netx

import (
	"fmt"
	"net"
	"strconv"
)

// SplitHostPort splits "host:port" into its host and numeric port.
func SplitHostPort(addr string) (string, int, error) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(p)
	if err != nil {
		return "", 0, fmt.Errorf("port %q: %w", p, err)
	}
	return host, port, nil
}

// JoinHostPort is the inverse of SplitHostPort.
func JoinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
