// Package osc receives avatar parameter updates over OSC/UDP.
package osc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"

	gosc "github.com/hypebeast/go-osc/osc"

	"github.com/sweeney/param-actuator/internal/logic"
)

// maxPacketSize is the largest UDP payload.
const maxPacketSize = 65535

// Listener reads OSC packets from a UDP socket and delivers their messages
// in arrival order.
type Listener struct {
	conn   net.PacketConn
	logger *slog.Logger

	received atomic.Int64
	dropped  atomic.Int64
}

// Listen binds a UDP socket on host:port.
func Listen(host string, port int, logger *slog.Logger) (*Listener, error) {
	conn, err := net.ListenPacket("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("listen udp %s:%d: %w", host, port, err)
	}
	return NewListener(conn, logger), nil
}

// NewListener wraps an already bound packet connection.
func NewListener(conn net.PacketConn, logger *slog.Logger) *Listener {
	return &Listener{conn: conn, logger: logger}
}

// Port returns the bound UDP port.
func (l *Listener) Port() int {
	if a, ok := l.conn.LocalAddr().(*net.UDPAddr); ok {
		return a.Port
	}
	return 0
}

// Serve reads packets until ctx is cancelled or the socket is closed.
// Malformed packets are counted and dropped; read errors are logged and do
// not stop the listener.
func (l *Listener) Serve(ctx context.Context, out chan<- logic.Update) error {
	buf := make([]byte, maxPacketSize)

	for {
		n, addr, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Warn("osc read error", "error", err)
			continue
		}

		pkt, err := gosc.ParsePacket(string(buf[:n]))
		if err != nil {
			l.dropped.Add(1)
			l.logger.Debug("osc packet dropped", "from", addr, "bytes", n, "error", err)
			continue
		}

		for _, msg := range Messages(pkt) {
			l.received.Add(1)
			select {
			case out <- logic.Update{Address: msg.Address, Arguments: msg.Arguments}:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Close closes the socket, which ends Serve.
func (l *Listener) Close() error {
	return l.conn.Close()
}

// Received returns how many OSC messages were delivered.
func (l *Listener) Received() int64 {
	return l.received.Load()
}

// Dropped returns how many packets failed to parse.
func (l *Listener) Dropped() int64 {
	return l.dropped.Load()
}

// Messages flattens a packet into its messages, depth first.
func Messages(p gosc.Packet) []*gosc.Message {
	switch v := p.(type) {
	case *gosc.Message:
		return []*gosc.Message{v}
	case *gosc.Bundle:
		msgs := append([]*gosc.Message(nil), v.Messages...)
		for _, b := range v.Bundles {
			msgs = append(msgs, Messages(b)...)
		}
		return msgs
	default:
		return nil
	}
}
