// Package socket is the non-blocking datagram abstraction (§4.5) the core
// engine polls from. It generalizes GiterLab/go-coap's direct use of
// *net.UDPConn (server.go) into a small interface so the engine never
// imports net directly, and adds the nb-style WouldBlock contract the
// spec's single-threaded cooperative model (§5) depends on.
package socket

import (
	"errors"
	"net"
)

// ErrWouldBlock is returned by Send/Recv/Peek when no datagram is
// currently available (inbound) or the outbound buffer is full
// (outbound) — "WouldBlock is not an error" per §7, callers should treat
// it as a normal poll outcome, not a failure.
var ErrWouldBlock = errors.New("toad/socket: would block")

// MTU is the fixed datagram buffer size mandated by §4.5.
const MTU = 1152

// Addrd pairs a value with a socket address (§3 "Addrd<T>"). Ownership is
// exclusive and it is forwarded unchanged through the pipeline — Go
// expresses that as a plain value type with no shared mutable state.
type Addrd[T any] struct {
	Value T
	Addr  net.Addr
}

// Of builds an Addrd pairing.
func Of[T any](v T, addr net.Addr) Addrd[T] {
	return Addrd[T]{Value: v, Addr: addr}
}

// Socket is the platform's datagram abstraction (§4.5). Bind switches to
// non-blocking mode; Send/Recv/Peek return ErrWouldBlock instead of
// blocking the caller.
type Socket interface {
	// Bind creates the socket on addr and switches it to non-blocking mode.
	Bind(network, addr string) error

	// Send delivers one datagram, or ErrWouldBlock if the socket cannot
	// accept it right now.
	Send(dgram Addrd[[]byte]) error

	// Recv copies at most len(buf) bytes from one pending datagram into buf
	// and consumes it, or returns ErrWouldBlock if none is pending.
	Recv(buf []byte) (Addrd[int], error)

	// Peek is like Recv but does not consume the datagram: the next Recv
	// or Peek call observes the same datagram again.
	Peek(buf []byte) (Addrd[int], error)

	// JoinMulticast is a best-effort request to join a multicast group on
	// ip (§6: "All CoAP nodes" 224.0.1.187 / ff0x::fd).
	JoinMulticast(ip net.IP) error

	// LocalAddr returns the address the socket is bound to.
	LocalAddr() net.Addr

	// Close releases the underlying descriptor.
	Close() error
}
