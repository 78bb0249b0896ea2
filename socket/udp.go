package socket

import (
	"net"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/giterlab/toad/internal/logging"
)

// UDP is the real datagram Socket, backed by *net.UDPConn the way
// GiterLab/go-coap's server.go drives one directly. Non-blocking reads are
// implemented the same way the teacher's Serve loop tolerates transient
// errors: set a read deadline in the past so ReadFromUDP returns
// immediately, and treat a timeout as WouldBlock rather than an error.
type UDP struct {
	conn    *net.UDPConn
	pending *Addrd[[]byte] // a datagram already read off the wire but not yet consumed, for Peek
}

// NewUDP constructs an unbound UDP socket.
func NewUDP() *UDP { return &UDP{} }

// Bind implements Socket.
func (u *UDP) Bind(network, addr string) error {
	uaddr, err := net.ResolveUDPAddr(network, addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP(network, uaddr)
	if err != nil {
		return err
	}
	u.conn = conn
	return nil
}

// Send implements Socket.
func (u *UDP) Send(dgram Addrd[[]byte]) error {
	var err error
	if dgram.Addr == nil {
		_, err = u.conn.Write(dgram.Value)
	} else {
		_, err = u.conn.WriteTo(dgram.Value, dgram.Addr)
	}
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return ErrWouldBlock
		}
		return err
	}
	return nil
}

// readOne performs one non-blocking UDP read, truncating to MTU per §4.5.
func (u *UDP) readOne() (*Addrd[[]byte], error) {
	if err := u.conn.SetReadDeadline(time.Now()); err != nil {
		return nil, err
	}
	buf := make([]byte, MTU)
	n, addr, err := u.conn.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, ErrWouldBlock
		}
		return nil, err
	}
	logging.Trace("toad/socket: recv %d bytes from %v", n, addr)
	a := Addrd[[]byte]{Value: buf[:n], Addr: addr}
	return &a, nil
}

// Recv implements Socket.
func (u *UDP) Recv(buf []byte) (Addrd[int], error) {
	if u.pending == nil {
		dgram, err := u.readOne()
		if err != nil {
			return Addrd[int]{}, err
		}
		u.pending = dgram
	}
	n := copy(buf, u.pending.Value)
	out := Addrd[int]{Value: n, Addr: u.pending.Addr}
	u.pending = nil
	return out, nil
}

// Peek implements Socket.
func (u *UDP) Peek(buf []byte) (Addrd[int], error) {
	if u.pending == nil {
		dgram, err := u.readOne()
		if err != nil {
			return Addrd[int]{}, err
		}
		u.pending = dgram
	}
	n := copy(buf, u.pending.Value)
	return Addrd[int]{Value: n, Addr: u.pending.Addr}, nil
}

// JoinMulticast implements Socket, best effort, via golang.org/x/net/ipv4's
// PacketConn since the stdlib net package exposes no group-join on an
// already-bound *net.UDPConn.
func (u *UDP) JoinMulticast(ip net.IP) error {
	pc := ipv4.NewPacketConn(u.conn)
	ifaces, err := net.Interfaces()
	if err != nil {
		return err
	}
	group := &net.UDPAddr{IP: ip}
	var joinErr error
	joined := false
	for _, iface := range ifaces {
		if err := pc.JoinGroup(&iface, group); err == nil {
			joined = true
		} else {
			joinErr = err
		}
	}
	if !joined {
		logging.Warn("toad/socket: JoinMulticast(%v) failed on all interfaces: %v", ip, joinErr)
		return joinErr
	}
	return nil
}

// LocalAddr implements Socket.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Close implements Socket.
func (u *UDP) Close() error {
	return u.conn.Close()
}

var _ Socket = (*UDP)(nil)
