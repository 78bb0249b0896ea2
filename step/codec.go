package step

import (
	"net"

	"github.com/giterlab/toad/internal/logging"
	"github.com/giterlab/toad/message"
	"github.com/giterlab/toad/socket"
)

// CodecIO is the innermost step (§4.6): it decodes the Snapshot's inbound
// datagram, if any, into a Message. Parse failures are swallowed per the
// error propagation policy (§7: "parse errors on inbound datagrams are
// swallowed (logged via effect)") — the datagram is simply dropped and the
// chain sees Blocked (WouldBlock), same as if nothing had arrived.
type CodecIO struct {
	codec *message.Codec
}

// NewCodecIO constructs the Codec-IO step.
func NewCodecIO() *CodecIO {
	return &CodecIO{codec: message.NewCodec()}
}

func (c *CodecIO) Name() string { return "codec-io" }

func (c *CodecIO) decode(snap *Snapshot, effects *Effects) Outcome {
	if snap.Inbound == nil {
		return Blocked()
	}
	m, err := c.codec.Unmarshal(snap.Inbound.Value)
	if err != nil {
		logging.Trace("toad/step: codec-io parse error from %v: %v", snap.Inbound.Addr, err)
		effects.Logf("warn", "dropping unparseable datagram from %v: %v", snap.Inbound.Addr, err)
		return Blocked()
	}
	return Ready(&socket.Addrd[*message.Message]{Value: m, Addr: snap.Inbound.Addr})
}

// PollReq ignores inner (it is innermost) and decodes the inbound datagram.
func (c *CodecIO) PollReq(snap *Snapshot, effects *Effects, inner Outcome) Outcome {
	return c.decode(snap, effects)
}

// PollResp performs the identical decode; Core.recvOne drains a distinct
// datagram per call (socket.Recv consumes), so there is no risk of
// processing one datagram through both chains.
func (c *CodecIO) PollResp(snap *Snapshot, effects *Effects, token []byte, addr net.Addr, inner Outcome) Outcome {
	return c.decode(snap, effects)
}

func (c *CodecIO) BeforeMessageSent(snap *Snapshot, effects *Effects, msg *socket.Addrd[*message.Message]) error {
	return nil
}

func (c *CodecIO) OnMessageSent(snap *Snapshot, msg *socket.Addrd[*message.Message]) error {
	return nil
}

var _ Step = (*CodecIO)(nil)
