package socket

import (
	"net"
)

// Fake is an in-memory Socket for deterministic tests, pairing with the
// clock package's Fake clock the same way the spec calls for "all three
// values testable deterministically" (§4.4) — here extended to socket
// behavior so step/core tests never touch a real network.
type Fake struct {
	local  net.Addr
	inbox  [][]byte
	addrs  []net.Addr
	Sent   []Addrd[[]byte] // everything handed to Send, in order
	Full   bool            // when true, Send always returns ErrWouldBlock
}

// NewFake returns a Fake socket bound to local.
func NewFake(local net.Addr) *Fake {
	return &Fake{local: local}
}

// Bind implements Socket as a no-op (Fake is always "bound").
func (f *Fake) Bind(network, addr string) error { return nil }

// Deliver queues a datagram as if it arrived from addr, for Recv/Peek to
// observe on a subsequent poll.
func (f *Fake) Deliver(data []byte, addr net.Addr) {
	cp := append([]byte(nil), data...)
	f.inbox = append(f.inbox, cp)
	f.addrs = append(f.addrs, addr)
}

// Send implements Socket.
func (f *Fake) Send(dgram Addrd[[]byte]) error {
	if f.Full {
		return ErrWouldBlock
	}
	cp := append([]byte(nil), dgram.Value...)
	f.Sent = append(f.Sent, Addrd[[]byte]{Value: cp, Addr: dgram.Addr})
	return nil
}

// Recv implements Socket.
func (f *Fake) Recv(buf []byte) (Addrd[int], error) {
	if len(f.inbox) == 0 {
		return Addrd[int]{}, ErrWouldBlock
	}
	data, addr := f.inbox[0], f.addrs[0]
	f.inbox = f.inbox[1:]
	f.addrs = f.addrs[1:]
	n := copy(buf, data)
	return Addrd[int]{Value: n, Addr: addr}, nil
}

// Peek implements Socket.
func (f *Fake) Peek(buf []byte) (Addrd[int], error) {
	if len(f.inbox) == 0 {
		return Addrd[int]{}, ErrWouldBlock
	}
	data, addr := f.inbox[0], f.addrs[0]
	n := copy(buf, data)
	return Addrd[int]{Value: n, Addr: addr}, nil
}

// JoinMulticast implements Socket as a no-op success.
func (f *Fake) JoinMulticast(ip net.IP) error { return nil }

// LocalAddr implements Socket.
func (f *Fake) LocalAddr() net.Addr { return f.local }

// Close implements Socket as a no-op.
func (f *Fake) Close() error { return nil }

var _ Socket = (*Fake)(nil)
