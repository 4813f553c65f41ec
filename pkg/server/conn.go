package server

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"
)

// ErrWouldBlock is returned by PacketConn.ReadFrom when no datagram is
// pending.
var ErrWouldBlock = errors.New("no datagram pending")

// PacketConn is the datagram transport the server runs on.
type PacketConn interface {
	// ReadFrom reads one datagram into b. It must not block: when nothing is
	// pending it returns ErrWouldBlock.
	ReadFrom(b []byte) (int, netip.AddrPort, error)

	// WriteTo sends b as one datagram to addr.
	WriteTo(b []byte, addr netip.AddrPort) (int, error)

	LocalAddr() net.Addr
	Close() error
}

// DefaultPollWindow is how long UDPConn.ReadFrom waits for a datagram before
// reporting ErrWouldBlock.
const DefaultPollWindow = time.Millisecond

// UDPConn adapts *net.UDPConn to PacketConn.
//
// Go sockets are always blocking from the caller's view, so a non-blocking
// read is emulated with a short read deadline. A deadline already in the past
// fails without reading, so the deadline is set slightly in the future.
type UDPConn struct {
	conn       *net.UDPConn
	pollWindow time.Duration
}

// ListenUDP binds a UDP socket on all interfaces. Port 0 picks a free port.
func ListenUDP(port int) (*UDPConn, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP port %d: %w", port, err)
	}
	return NewUDPConn(conn), nil
}

// NewUDPConn wraps an already bound socket.
func NewUDPConn(conn *net.UDPConn) *UDPConn {
	return &UDPConn{conn: conn, pollWindow: DefaultPollWindow}
}

func (c *UDPConn) ReadFrom(b []byte) (int, netip.AddrPort, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pollWindow)); err != nil {
		return 0, netip.AddrPort{}, err
	}

	n, addr, err := c.conn.ReadFromUDPAddrPort(b)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, netip.AddrPort{}, ErrWouldBlock
		}
		return n, addr, err
	}
	return n, addr, nil
}

func (c *UDPConn) WriteTo(b []byte, addr netip.AddrPort) (int, error) {
	return c.conn.WriteToUDPAddrPort(b, addr)
}

func (c *UDPConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Port returns the bound UDP port.
func (c *UDPConn) Port() int {
	return c.conn.LocalAddr().(*net.UDPAddr).Port
}

func (c *UDPConn) Close() error {
	return c.conn.Close()
}
