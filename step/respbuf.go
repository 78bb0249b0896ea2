package step

import (
	"net"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/giterlab/toad/internal/logging"
	"github.com/giterlab/toad/message"
	"github.com/giterlab/toad/socket"
)

// respKey identifies a buffered response by (token, addr) — the
// correlation RFC 7252 §5.3 assigns to request/response matching, as
// opposed to the Retry-Buffer's (id, addr) ack correlation.
type respKey struct {
	token string
	addr  string
}

func respKeyOf(token []byte, addr net.Addr) respKey {
	return respKey{token: string(token), addr: addr.String()}
}

func isResponse(m *message.Message) bool {
	return m.Code.Kind() == message.KindResponse
}

// ResponseBuffer implements the response correlation half of the
// Reliability Steps (§4.7): inbound response messages are removed from
// the poll_req stream (a response is never handed to the user as if it
// were a request) and held until a poll_resp call for the matching
// (token, addr) claims it. A response that arrives before anyone is
// waiting on it is buffered for a later poll_resp call, bounded the same
// way the Retry-Buffer is (§6 MsgBufferCapacity).
type ResponseBuffer struct {
	entries *lru.LRU[respKey, *socket.Addrd[*message.Message]]
}

// NewResponseBuffer constructs a Response-Buffer bounded to capacity
// buffered responses.
func NewResponseBuffer(capacity int) *ResponseBuffer {
	l, err := lru.NewLRU[respKey, *socket.Addrd[*message.Message]](capacity, func(k respKey, v *socket.Addrd[*message.Message]) {
		logging.Warn("%v: token=%x addr=%s", ErrResponseBufferFull, k.token, k.addr)
	})
	if err != nil {
		panic("toad/step: response-buffer capacity must be positive: " + err.Error())
	}
	return &ResponseBuffer{entries: l}
}

func (b *ResponseBuffer) Name() string { return "response-buffer" }

// propagateErr reports whether inner carries a terminal (non-WouldBlock)
// error that should be surfaced regardless of buffering state.
func propagateErr(inner Outcome) bool {
	return inner.Present && inner.Err != nil && inner.Err != socket.ErrWouldBlock
}

// PollReq hides inbound responses from the request stream: a response is
// buffered for its eventual poll_resp caller rather than handed back here.
func (b *ResponseBuffer) PollReq(snap *Snapshot, effects *Effects, inner Outcome) Outcome {
	if propagateErr(inner) {
		return inner
	}
	if inner.Present && inner.Err == nil && inner.Msg != nil && isResponse(inner.Msg.Value) {
		b.entries.Add(respKeyOf(inner.Msg.Value.Token, inner.Msg.Addr), inner.Msg)
		return Blocked()
	}
	return inner
}

// PollResp resolves a (token, addr) wait: first against anything already
// buffered, then against this poll's freshly decoded message, buffering it
// instead when it belongs to a different caller.
func (b *ResponseBuffer) PollResp(snap *Snapshot, effects *Effects, token []byte, addr net.Addr, inner Outcome) Outcome {
	key := respKeyOf(token, addr)
	if buffered, ok := b.entries.Get(key); ok {
		b.entries.Remove(key)
		return Ready(buffered)
	}
	if propagateErr(inner) {
		return inner
	}
	if inner.Present && inner.Err == nil && inner.Msg != nil && isResponse(inner.Msg.Value) {
		if string(inner.Msg.Value.Token) == string(token) && inner.Msg.Addr.String() == addr.String() {
			return Ready(inner.Msg)
		}
		b.entries.Add(respKeyOf(inner.Msg.Value.Token, inner.Msg.Addr), inner.Msg)
		return Blocked()
	}
	return Blocked()
}

// Cancel drops a buffered response for (token, addr), the explicit early
// release named by the supplemented "cancel" operation (§5).
func (b *ResponseBuffer) Cancel(token []byte, addr net.Addr) {
	b.entries.Remove(respKeyOf(token, addr))
}

func (b *ResponseBuffer) BeforeMessageSent(snap *Snapshot, effects *Effects, msg *socket.Addrd[*message.Message]) error {
	return nil
}

func (b *ResponseBuffer) OnMessageSent(snap *Snapshot, msg *socket.Addrd[*message.Message]) error {
	return nil
}

var _ Step = (*ResponseBuffer)(nil)
