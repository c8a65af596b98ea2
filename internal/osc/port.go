package osc

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrNoFreePort is returned when no port in the searched range is free.
var ErrNoFreePort = errors.New("osc: no free port")

// FindPort returns the first port in [start, limit] on which both a UDP and
// a TCP listener can be bound, since OSC and OSCQuery share the number.
func FindPort(host string, start, limit int) (int, error) {
	if start <= 0 || limit > 65535 || start > limit {
		return 0, fmt.Errorf("%w: invalid range %d-%d", ErrNoFreePort, start, limit)
	}

	for port := start; port <= limit; port++ {
		if portFree(host, port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("%w: searched %d-%d", ErrNoFreePort, start, limit)
}

func portFree(host string, port int) bool {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		return false
	}
	defer pc.Close()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
