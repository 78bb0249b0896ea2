// Package step implements the composable Step pipeline (§4.6): Snapshot,
// Effect, the Step interface, and the Pipeline that composes concrete
// steps inner-to-outer. Concrete steps (Codec-IO, Ack-Generator,
// Retry-Buffer, Response-Buffer, Duplicate-Suppressor, Standard-Option
// Injector) live alongside this file as the Reliability Steps (§4.7) and
// Standard-Option Injector (§4.8).
//
// Design Notes §9 calls for "tagged variants for effect kinds rather than
// trait objects" and "a vector-of-stages or explicit builder" instead of
// nested nested wrapper types — Pipeline below is exactly that: an ordered
// []Step walked inner-to-outer for PollReq/PollResp and outer-to-inner /
// inner-to-outer (respectively) for BeforeMessageSent/OnMessageSent.
package step

import (
	"fmt"
	"net"
	"time"

	"github.com/giterlab/toad/config"
	"github.com/giterlab/toad/message"
	"github.com/giterlab/toad/socket"
)

func sprintf(format string, args ...interface{}) string { return fmt.Sprintf(format, args...) }

// Snapshot is the per-poll view described in §3: current time,
// configuration, and an optional freshly-received datagram. A Snapshot is
// reconstructed on every poll and never shared across polls.
type Snapshot struct {
	Now      time.Time
	Config   config.Config
	Inbound  *socket.Addrd[[]byte] // at most one datagram drained this poll
}

// EffectKind tags the variant of an Effect (§3).
type EffectKind uint8

const (
	// EffectSendDatagram requests the platform send bytes to an address.
	EffectSendDatagram EffectKind = iota
	// EffectLog requests the platform log a message at a level.
	EffectLog
)

// Effect is a side-effect request emitted by a step to the Platform (§3).
type Effect struct {
	Kind     EffectKind
	Datagram socket.Addrd[[]byte]
	Level    string
	Text     string
}

// Effects accumulates the Effect sequence produced during one poll, in the
// order steps produced them (§5 ordering guarantee).
type Effects struct {
	items []Effect
}

// SendDatagram appends a SendDatagram effect.
func (e *Effects) SendDatagram(d socket.Addrd[[]byte]) {
	e.items = append(e.items, Effect{Kind: EffectSendDatagram, Datagram: d})
}

// Logf appends a Log effect.
func (e *Effects) Logf(level, format string, args ...interface{}) {
	e.items = append(e.items, Effect{Kind: EffectLog, Level: level, Text: sprintf(format, args...)})
}

// Drain returns the accumulated effects and resets the queue, the way the
// Platform flushes effects at the end of each poll (§5).
func (e *Effects) Drain() []Effect {
	items := e.items
	e.items = nil
	return items
}

// Outcome is the Option<Result<T, Error|WouldBlock>> of §4.6, rendered as
// a plain struct: Present distinguishes None from Some, and Err
// distinguishes Ok from the two Err variants (socket.ErrWouldBlock for
// "try again", anything else for a terminal poll error).
type Outcome struct {
	Present bool
	Msg     *socket.Addrd[*message.Message]
	Err     error
}

// None represents "this layer has no opinion — defer to the inner layer."
func None() Outcome { return Outcome{} }

// Ready represents Some(Ok(msg)): a value delivered to the caller.
func Ready(msg *socket.Addrd[*message.Message]) Outcome {
	return Outcome{Present: true, Msg: msg}
}

// Blocked represents Some(Err(WouldBlock)): nothing now, try again.
func Blocked() Outcome {
	return Outcome{Present: true, Err: socket.ErrWouldBlock}
}

// Failed represents Some(Err(Other(e))): terminal for this poll.
func Failed(err error) Outcome {
	return Outcome{Present: true, Err: err}
}

// IsWouldBlock reports whether this Outcome is the WouldBlock variant.
func (o Outcome) IsWouldBlock() bool {
	return o.Present && o.Err == socket.ErrWouldBlock
}

// Step is one layer of the pipeline (§4.6). Every step presents the same
// four-method surface regardless of what it actually does internally.
type Step interface {
	// Name identifies the step for logging and DESIGN.md traceability.
	Name() string

	// PollReq participates in the poll_req chain. inner is the Outcome
	// produced by the layer just inside this one (None for the innermost
	// step, Codec-IO).
	PollReq(snap *Snapshot, effects *Effects, inner Outcome) Outcome

	// PollResp participates in the poll_resp chain, keyed by the
	// correlation (token, addr) the caller is waiting on.
	PollResp(snap *Snapshot, effects *Effects, token []byte, addr net.Addr, inner Outcome) Outcome

	// BeforeMessageSent runs outer-to-inner on every outbound message,
	// letting outer layers (e.g. Standard-Options) stamp the message
	// before inner layers (e.g. Retry-Buffer) register it.
	BeforeMessageSent(snap *Snapshot, effects *Effects, msg *socket.Addrd[*message.Message]) error

	// OnMessageSent runs inner-to-outer after the Core has marshaled the
	// message and put the bytes on the wire, informationally.
	OnMessageSent(snap *Snapshot, msg *socket.Addrd[*message.Message]) error
}

// Pipeline composes Steps in the required inner-to-outer order (§4.6):
// Codec-IO -> Ack-Generator -> Retry-Buffer -> Response-Buffer ->
// Duplicate-Suppressor -> Standard-Options.
type Pipeline struct {
	steps []Step
}

// NewPipeline builds a sealed pipeline from steps, listed inner-to-outer.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Steps returns the composed steps, inner-to-outer, for introspection.
func (p *Pipeline) Steps() []Step { return p.steps }

// PollReq walks the chain inner-to-outer, feeding each step's Outcome to
// the next.
func (p *Pipeline) PollReq(snap *Snapshot, effects *Effects) Outcome {
	out := None()
	for _, s := range p.steps {
		out = s.PollReq(snap, effects, out)
	}
	return out
}

// PollResp walks the chain inner-to-outer for the (token, addr) correlation.
func (p *Pipeline) PollResp(snap *Snapshot, effects *Effects, token []byte, addr net.Addr) Outcome {
	out := None()
	for _, s := range p.steps {
		out = s.PollResp(snap, effects, token, addr, out)
	}
	return out
}

// BeforeMessageSent walks the chain outer-to-inner (§4.6) so outer layers
// register state before the Core marshals and sends the message.
func (p *Pipeline) BeforeMessageSent(snap *Snapshot, effects *Effects, msg *socket.Addrd[*message.Message]) error {
	for i := len(p.steps) - 1; i >= 0; i-- {
		if err := p.steps[i].BeforeMessageSent(snap, effects, msg); err != nil {
			return err
		}
	}
	return nil
}

// OnMessageSent walks the chain inner-to-outer (§4.6) so outer layers learn
// the bytes actually went out.
func (p *Pipeline) OnMessageSent(snap *Snapshot, msg *socket.Addrd[*message.Message]) error {
	for _, s := range p.steps {
		if err := s.OnMessageSent(snap, msg); err != nil {
			return err
		}
	}
	return nil
}
