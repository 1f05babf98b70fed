//go:build linux

package transport

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"syscall"

	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"

	"github.com/tiiuae/rmacs/internal/config"
)

// maxFrameSize is the receive MTU budget for one datagram.
const maxFrameSize = 1024

// socket is one interface's IPv6 UDP multicast endpoint: bound to the
// interface's configured port, joined to its configured group, with the
// outgoing multicast interface pinned to that interface's kernel index.
type socket struct {
	ifName string
	group  *net.UDPAddr
	conn   *net.UDPConn

	mu     sync.Mutex
	closed bool
}

// newSocket creates and configures the multicast socket for one
// control-channel interface. The caller tolerates a failure here by
// skipping the interface; newSocket itself always fully tears down any
// partially-created socket on error.
func newSocket(ifName string, cfg config.SocketConfig) (*socket, error) {
	ifi, err := net.InterfaceByName(ifName)
	if err != nil {
		return nil, fmt.Errorf("lookup interface %s: %w", ifName, err)
	}

	groupIP, err := netip.ParseAddr(cfg.Group)
	if err != nil {
		return nil, fmt.Errorf("parse multicast group %q: %w", cfg.Group, err)
	}

	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			return setReuseAddr(c)
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp6", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("listen udp6 :%d on %s: %w", cfg.Port, ifName, err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, fmt.Errorf("listen udp6 :%d on %s: unexpected PacketConn type", cfg.Port, ifName)
	}

	p := ipv6.NewPacketConn(conn)

	if err := p.SetMulticastInterface(ifi); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set multicast interface %s: %w", ifName, err)
	}

	groupAddr := &net.UDPAddr{IP: net.IP(groupIP.AsSlice())}
	if err := p.JoinGroup(ifi, groupAddr); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("join multicast group %s on %s: %w", cfg.Group, ifName, err)
	}

	return &socket{
		ifName: ifName,
		group:  &net.UDPAddr{IP: net.IP(groupIP.AsSlice()), Port: cfg.Port, Zone: ifName},
		conn:   conn,
	}, nil
}

// setReuseAddr sets SO_REUSEADDR on the raw socket before bind, allowing
// multiple RMACS processes (or a restarting one) to rebind the same
// interface-specific port without waiting out TIME_WAIT.
func setReuseAddr(c syscall.RawConn) error {
	var sockErr error

	err := c.Control(func(fd uintptr) {
		//nolint:gosec // G115: fd uintptr->int is safe; kernel FDs are always small positive integers.
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return fmt.Errorf("raw conn control: %w", err)
	}
	if sockErr != nil {
		return fmt.Errorf("set SO_REUSEADDR: %w", sockErr)
	}

	return nil
}

// send writes buf to this socket's multicast group.
func (s *socket) send(buf []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("send on %s: %w", s.ifName, ErrClosed)
	}
	s.mu.Unlock()

	if _, err := s.conn.WriteToUDP(buf, s.group); err != nil {
		return fmt.Errorf("send on %s: %w", s.ifName, err)
	}

	return nil
}

// recv blocks for one datagram, up to maxFrameSize bytes.
func (s *socket) recv() ([]byte, error) {
	buf := make([]byte, maxFrameSize)

	n, _, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, fmt.Errorf("recv on %s: %w", s.ifName, err)
	}

	return buf[:n], nil
}

// close closes the underlying socket, unblocking any in-flight recv.
func (s *socket) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("close socket %s: %w", s.ifName, err)
	}

	return nil
}
