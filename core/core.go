// Package core implements the Platform binding (§4.9, §6): it wires a
// Clock, a Socket, a Config and the Step pipeline together behind the
// small public surface described in spec.md — SendMsg, PollReq, PollResp,
// Ping, Cancel — the same way GiterLab/go-coap's server.go sits on top of
// its message codec and a net.UDPConn, except here the reliability logic
// lives in the composed step.Pipeline rather than inline in the server
// loop.
package core

import (
	"net"

	"github.com/giterlab/toad/clock"
	"github.com/giterlab/toad/config"
	"github.com/giterlab/toad/internal/logging"
	"github.com/giterlab/toad/message"
	"github.com/giterlab/toad/socket"
	"github.com/giterlab/toad/step"
)

// Core is the non-blocking engine described by §3/§4.9: every public
// method reads at most one datagram from the socket (then sends whatever
// datagrams the steps queued) and returns immediately, surfacing
// socket.ErrWouldBlock when there is nothing to do yet. It has
// no internal goroutines — all progress happens inside calls the caller
// makes (§5's single-threaded cooperative model).
type Core struct {
	sock     socket.Socket
	clk      clock.Clock
	cfg      config.Config
	codec    *message.Codec
	pipeline *step.Pipeline
	retryBuf *step.RetryBuffer
	respBuf  *step.ResponseBuffer
	nextID   uint32
}

// New constructs a Core bound to sock and clk, with the Reliability Steps
// and Standard-Option Injector composed in the order §4.6 mandates:
// Codec-IO, Ack-Generator, Retry-Buffer, Response-Buffer,
// Duplicate-Suppressor, Standard-Options.
func New(sock socket.Socket, clk clock.Clock, cfg config.Config) *Core {
	retryBuf := step.NewRetryBuffer(clk, clock.Exponential{Initial: cfg.AckTimeout}, cfg.RetryBufferCapacity)
	respBuf := step.NewResponseBuffer(cfg.MsgBufferCapacity)
	pipeline := step.NewPipeline(
		step.NewCodecIO(),
		step.NewAckGenerator(),
		retryBuf,
		respBuf,
		step.NewDuplicateSuppressor(cfg.DedupCapacity),
		step.NewStandardOptions(),
	)
	return &Core{
		sock:     sock,
		clk:      clk,
		cfg:      cfg,
		codec:    message.NewCodec(),
		pipeline: pipeline,
		retryBuf: retryBuf,
		respBuf:  respBuf,
	}
}

// NextMessageID hands out a fresh 16-bit message id for the caller to
// stamp onto a new outbound Message, wrapping per RFC 7252 §4.4. Safe only
// under the single-threaded cooperative model §5 requires of a Core — it
// is not safe to call concurrently from multiple goroutines.
func (c *Core) NextMessageID() uint16 {
	c.nextID++
	return uint16(c.nextID)
}

func (c *Core) snapshot(inbound *socket.Addrd[[]byte]) (*step.Snapshot, error) {
	t, err := c.clk.Now()
	if err != nil {
		return nil, err
	}
	return &step.Snapshot{Now: t, Config: c.cfg, Inbound: inbound}, nil
}

func (c *Core) flush(effects *step.Effects) {
	for _, eff := range effects.Drain() {
		switch eff.Kind {
		case step.EffectSendDatagram:
			if err := c.sock.Send(eff.Datagram); err != nil {
				logging.Warn("toad/core: effect send to %v failed: %v", eff.Datagram.Addr, err)
			}
		case step.EffectLog:
			switch eff.Level {
			case "warn":
				logging.Warn("%s", eff.Text)
			case "error":
				logging.Error("%s", eff.Text)
			default:
				logging.Info("%s", eff.Text)
			}
		}
	}
}

// recvOne drains at most one inbound datagram from the socket for this
// poll. socket.ErrWouldBlock (nothing pending) and any other transport
// error are both treated as "no datagram this poll" — a hard transport
// error is logged rather than propagated, matching §7's "inbound socket
// errors are reported via effect, not a terminal failure."
func (c *Core) recvOne() *socket.Addrd[[]byte] {
	buf := make([]byte, c.cfg.MTU)
	n, err := c.sock.Recv(buf)
	if err != nil {
		if err != socket.ErrWouldBlock {
			logging.Warn("toad/core: socket recv error: %v", err)
		}
		return nil
	}
	return &socket.Addrd[[]byte]{Value: buf[:n.Value], Addr: n.Addr}
}

// SendMsg sends a fully-built Message to addr, running it through
// BeforeMessageSent (outer-to-inner, so Standard-Options stamps it before
// Retry-Buffer registers it for retry) before marshaling and writing it to
// the socket, then OnMessageSent (inner-to-outer).
func (c *Core) SendMsg(m *message.Message, addr net.Addr) error {
	snap, err := c.snapshot(nil)
	if err != nil {
		return err
	}
	effects := &step.Effects{}
	wrapped := &socket.Addrd[*message.Message]{Value: m, Addr: addr}
	if err := c.pipeline.BeforeMessageSent(snap, effects, wrapped); err != nil {
		return err
	}
	raw, err := c.codec.Marshal(m)
	if err != nil {
		return err
	}
	if err := c.sock.Send(socket.Addrd[[]byte]{Value: raw, Addr: addr}); err != nil {
		return err
	}
	if err := c.pipeline.OnMessageSent(snap, wrapped); err != nil {
		return err
	}
	c.flush(effects)
	return nil
}

// PollReq advances the engine by at most one inbound datagram and reports
// any inbound request (or empty message) ready for the caller. It returns
// socket.ErrWouldBlock when there is nothing ready yet — the caller is
// expected to call this repeatedly from its own loop (§5).
func (c *Core) PollReq() (*socket.Addrd[*message.Message], error) {
	snap, err := c.snapshot(c.recvOne())
	if err != nil {
		return nil, err
	}
	effects := &step.Effects{}
	out := c.pipeline.PollReq(snap, effects)
	c.flush(effects)
	if !out.Present {
		return nil, socket.ErrWouldBlock
	}
	if out.Err != nil {
		return nil, out.Err
	}
	return out.Msg, nil
}

// PollResp advances the engine by at most one inbound datagram and reports
// the response matching (token, addr), if one has arrived or was already
// buffered. It returns socket.ErrWouldBlock when nothing matches yet.
func (c *Core) PollResp(token []byte, addr net.Addr) (*socket.Addrd[*message.Message], error) {
	snap, err := c.snapshot(c.recvOne())
	if err != nil {
		return nil, err
	}
	effects := &step.Effects{}
	out := c.pipeline.PollResp(snap, effects, token, addr)
	c.flush(effects)
	if !out.Present {
		return nil, socket.ErrWouldBlock
	}
	if out.Err != nil {
		return nil, out.Err
	}
	return out.Msg, nil
}

// Ping sends an Empty Confirmable message to addr (§6 supplemented
// operation) and returns its message id. The caller observes completion
// by calling Pending or PingOutcome with the returned id from its own
// poll loop.
func (c *Core) Ping(addr net.Addr) (uint16, error) {
	id := c.NextMessageID()
	m := message.NewPing(id)
	if err := c.SendMsg(m, addr); err != nil {
		return 0, err
	}
	return id, nil
}

// Pending reports whether a Confirmable exchange (sent via SendMsg or
// Ping) with the given id and addr is still awaiting an Ack/Reset.
func (c *Core) Pending(id uint16, addr net.Addr) bool {
	return c.retryBuf.Pending(id, addr)
}

// PingOutcome reports whether the ping sent as id to addr has settled. A
// settled ping (done == true) succeeded (err == nil) if it was answered
// with either an Ack or a Reset — both count as success per §5's ping
// semantics — and failed with step.ErrMessageNeverAcked if its retry
// schedule exhausted without either ever arriving.
func (c *Core) PingOutcome(id uint16, addr net.Addr) (done bool, err error) {
	outcome, ok := c.retryBuf.Outcome(id, addr)
	if !ok {
		return false, nil
	}
	if outcome == step.OutcomeExhausted {
		return true, step.ErrMessageNeverAcked
	}
	return true, nil
}

// Cancel releases a pending exchange's Retry-Buffer and Response-Buffer
// entries ahead of passive capacity eviction (§5 supplemented operation).
func (c *Core) Cancel(token []byte, addr net.Addr) {
	c.retryBuf.CancelByToken(token, addr)
	c.respBuf.Cancel(token, addr)
}

// Socket exposes the bound socket for callers (e.g. the blocking façade)
// that need LocalAddr or explicit Close.
func (c *Core) Socket() socket.Socket { return c.sock }
