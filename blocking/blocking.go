// Package blocking is the supplemented blocking client/server façade
// (SPEC_FULL.md SUPPLEMENTED FEATURES): a thin busy-looping wrapper over
// core.Core's non-blocking poll surface, grounded directly on
// GiterLab/go-coap's server.go Handler/Serve/ListenAndServe shape — the
// same sleep-and-retry-on-transient-error pattern, just polling a
// core.Core instead of a *net.UDPConn. It never reaches into the engine's
// internals; everything here goes through core's public API, consistent
// with the step pipeline being an internal collaborator (§1).
package blocking

import (
	"errors"
	"net"
	"time"

	"github.com/giterlab/toad/clock"
	"github.com/giterlab/toad/config"
	"github.com/giterlab/toad/core"
	"github.com/giterlab/toad/internal/logging"
	"github.com/giterlab/toad/message"
	"github.com/giterlab/toad/socket"
)

// ErrTimeout is returned by Client methods when no response arrives
// within the given deadline.
var ErrTimeout = errors.New("toad/blocking: timed out waiting for response")

// pollInterval is how long Serve and Client sleep between empty polls,
// mirroring server.go's Serve loop sleeping 5ms on a transient read error.
const pollInterval = 5 * time.Millisecond

// Handler handles an inbound CoAP request and optionally returns a
// response, mirroring GiterLab/go-coap's Handler interface with net.Addr
// and *message.Message in place of *net.UDPConn/*net.UDPAddr/*Message.
type Handler interface {
	ServeCOAP(addr net.Addr, req *message.Message) *message.Message
}

// funcHandler adapts a function to Handler, as FuncHandler does in
// server.go.
type funcHandler func(addr net.Addr, req *message.Message) *message.Message

func (f funcHandler) ServeCOAP(addr net.Addr, req *message.Message) *message.Message {
	return f(addr, req)
}

// FuncHandler builds a Handler from a function.
func FuncHandler(f func(addr net.Addr, req *message.Message) *message.Message) Handler {
	return funcHandler(f)
}

// Server busy-loops a core.Core's PollReq, dispatching each inbound
// request to a Handler and sending back any response it returns.
type Server struct {
	core *core.Core
	stop chan struct{}
}

// ListenAndServe binds a UDP socket on addr and serves rh forever, or
// until Close is called — the direct equivalent of server.go's
// ListenAndServe + Serve pair.
func ListenAndServe(network, addr string, rh Handler) error {
	sock := socket.NewUDP()
	if err := sock.Bind(network, addr); err != nil {
		return err
	}
	srv := NewServer(sock, clock.System{}, config.Default())
	return srv.Serve(rh)
}

// NewServer constructs a Server around an already-bound Socket.
func NewServer(sock socket.Socket, clk clock.Clock, cfg config.Config) *Server {
	return &Server{core: core.New(sock, clk, cfg), stop: make(chan struct{})}
}

// Serve processes incoming requests forever, or until Close is called.
// Transient "nothing ready yet" polls sleep pollInterval, matching
// server.go's Serve loop sleeping on a temporary/timeout read error.
func (s *Server) Serve(rh Handler) error {
	for {
		select {
		case <-s.stop:
			return nil
		default:
		}

		req, err := s.core.PollReq()
		if err != nil {
			if err != socket.ErrWouldBlock {
				logging.Warn("toad/blocking: Serve poll error: %v", err)
			}
			time.Sleep(pollInterval)
			continue
		}

		rv := rh.ServeCOAP(req.Addr, req.Value)
		if rv != nil {
			if err := s.core.SendMsg(rv, req.Addr); err != nil {
				logging.Warn("toad/blocking: Serve send response failed: %v", err)
			}
		}
	}
}

// Close stops a running Serve loop and releases the underlying socket.
func (s *Server) Close() error {
	close(s.stop)
	return s.core.Socket().Close()
}

// Client is a blocking request/response facade over a core.Core,
// grounded on kwap/src/blocking/client.rs's synchronous get/ping surface.
type Client struct {
	core *core.Core
}

// NewClient constructs a Client around an already-bound Socket.
func NewClient(sock socket.Socket, clk clock.Clock, cfg config.Config) *Client {
	return &Client{core: core.New(sock, clk, cfg)}
}

// Dial is a convenience constructor binding a UDP socket to an ephemeral
// local address.
func Dial() (*Client, error) {
	sock := socket.NewUDP()
	if err := sock.Bind("udp", ":0"); err != nil {
		return nil, err
	}
	return NewClient(sock, clock.System{}, config.Default()), nil
}

// Close releases the underlying socket.
func (c *Client) Close() error {
	return c.core.Socket().Close()
}

// Send transmits m to addr and busy-waits up to timeout for the matching
// response, mirroring server.go's Transmit/Receive pair but correlated by
// token through core.PollResp rather than a single synchronous read.
func (c *Client) Send(m *message.Message, addr net.Addr, timeout time.Duration) (*message.Message, error) {
	if err := c.core.SendMsg(m, addr); err != nil {
		return nil, err
	}
	token := m.Token
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := c.core.PollResp(token, addr)
		if err == nil {
			return resp.Value, nil
		}
		if err != socket.ErrWouldBlock {
			return nil, err
		}
		time.Sleep(pollInterval)
	}
	return nil, ErrTimeout
}

// Get issues a Confirmable GET for path and blocks for the response.
func (c *Client) Get(path string, addr net.Addr, timeout time.Duration) (*message.Message, error) {
	req := message.New(message.Con, message.GET, c.core.NextMessageID())
	req.Options.SetPath(path)
	return c.Send(req, addr, timeout)
}

// Ping sends an Empty Con (§6 supplemented operation) and blocks until it
// is acknowledged or reset (both count as success, per §5), its retry
// schedule exhausts (returning the Retry-Buffer's "never acked" error), or
// timeout elapses first.
func (c *Client) Ping(addr net.Addr, timeout time.Duration) error {
	id, err := c.core.Ping(addr)
	if err != nil {
		return err
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		// Pump the engine so an inbound Ack/Reset is read and settles the
		// exchange; the poll's own result is not needed here.
		_, _ = c.core.PollResp(nil, addr)
		if done, pingErr := c.core.PingOutcome(id, addr); done {
			return pingErr
		}
		time.Sleep(pollInterval)
	}
	return ErrTimeout
}
