package step

import (
	"net"

	"github.com/giterlab/toad/internal/logging"
	"github.com/giterlab/toad/message"
	"github.com/giterlab/toad/socket"
)

// AckGenerator implements the inbound Con lifecycle's Ack half (§4.7,
// §4.9): on any inbound Con, enqueue an empty Ack with the same id to the
// sender and emit it as a SendDatagram effect. It does not consume the
// original message — forwarded unchanged so the user still sees it via
// poll_req/poll_resp.
//
// Re-acking every inbound Con unconditionally (rather than checking the
// dedup window itself) is deliberate: RFC 7252 requires re-sending the Ack
// for a duplicate Con, and the Duplicate-Suppressor step (outer, closer to
// Standard-Options) is solely responsible for not re-delivering the
// duplicate to the user. Splitting the concerns this way means
// AckGenerator needs no dedup state of its own.
type AckGenerator struct {
	codec *message.Codec
}

// NewAckGenerator constructs the Ack-Generator step.
func NewAckGenerator() *AckGenerator {
	return &AckGenerator{codec: message.NewCodec()}
}

func (a *AckGenerator) Name() string { return "ack-generator" }

func (a *AckGenerator) maybeAck(effects *Effects, inner Outcome) {
	if !inner.Present || inner.Err != nil || inner.Msg == nil {
		return
	}
	m := inner.Msg.Value
	if m.Type != message.Con {
		return
	}
	ack := message.NewAck(m.ID)
	raw, err := a.codec.Marshal(ack)
	if err != nil {
		logging.Error("toad/step: ack-generator failed to marshal ack for id=%d: %v", m.ID, err)
		return
	}
	effects.SendDatagram(socket.Addrd[[]byte]{Value: raw, Addr: inner.Msg.Addr})
}

func (a *AckGenerator) PollReq(snap *Snapshot, effects *Effects, inner Outcome) Outcome {
	a.maybeAck(effects, inner)
	return inner
}

func (a *AckGenerator) PollResp(snap *Snapshot, effects *Effects, token []byte, addr net.Addr, inner Outcome) Outcome {
	a.maybeAck(effects, inner)
	return inner
}

func (a *AckGenerator) BeforeMessageSent(snap *Snapshot, effects *Effects, msg *socket.Addrd[*message.Message]) error {
	return nil
}

func (a *AckGenerator) OnMessageSent(snap *Snapshot, msg *socket.Addrd[*message.Message]) error {
	return nil
}

var _ Step = (*AckGenerator)(nil)
