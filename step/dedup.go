package step

import (
	"net"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/giterlab/toad/message"
	"github.com/giterlab/toad/socket"
)

// dedupKey identifies a previously-seen message by (id, addr) — RFC 7252
// §4.5's definition of a duplicate.
type dedupKey struct {
	id   uint16
	addr string
}

func dedupKeyOf(id uint16, addr net.Addr) dedupKey {
	return dedupKey{id: id, addr: addr.String()}
}

// DuplicateSuppressor implements the outer Reliability Step (§4.7): it
// forward-suppresses any message already seen from the same (id, addr)
// within the exchange lifetime, so the engine's user sees each logical
// exchange exactly once even though Ack-Generator re-acks every
// retransmission unconditionally. It does not affect Ack generation —
// that already ran on the inner side of the chain — it only decides what
// reaches poll_req/poll_resp.
type DuplicateSuppressor struct {
	seen *lru.LRU[dedupKey, time.Time]
}

// NewDuplicateSuppressor constructs a Duplicate-Suppressor bounded to
// capacity remembered (id, addr) pairs (§6 DedupCapacity).
func NewDuplicateSuppressor(capacity int) *DuplicateSuppressor {
	l, err := lru.NewLRU[dedupKey, time.Time](capacity, nil)
	if err != nil {
		panic("toad/step: duplicate-suppressor capacity must be positive: " + err.Error())
	}
	return &DuplicateSuppressor{seen: l}
}

func (d *DuplicateSuppressor) Name() string { return "duplicate-suppressor" }

// admit reports whether msg should be forwarded (true) or suppressed as a
// duplicate (false), recording it as seen either way lifetime permits.
func (d *DuplicateSuppressor) admit(snap *Snapshot, m *message.Message, addr net.Addr) bool {
	key := dedupKeyOf(m.ID, addr)
	if last, ok := d.seen.Get(key); ok {
		if snap.Now.Sub(last) < snap.Config.ExchangeLifetime {
			return false
		}
	}
	d.seen.Add(key, snap.Now)
	return true
}

func (d *DuplicateSuppressor) PollReq(snap *Snapshot, effects *Effects, inner Outcome) Outcome {
	if !inner.Present || inner.Err != nil || inner.Msg == nil {
		return inner
	}
	if !d.admit(snap, inner.Msg.Value, inner.Msg.Addr) {
		effects.Logf("info", "suppressing duplicate id=%d from %v", inner.Msg.Value.ID, inner.Msg.Addr)
		return Blocked()
	}
	return inner
}

func (d *DuplicateSuppressor) PollResp(snap *Snapshot, effects *Effects, token []byte, addr net.Addr, inner Outcome) Outcome {
	if !inner.Present || inner.Err != nil || inner.Msg == nil {
		return inner
	}
	if !d.admit(snap, inner.Msg.Value, inner.Msg.Addr) {
		effects.Logf("info", "suppressing duplicate response id=%d from %v", inner.Msg.Value.ID, inner.Msg.Addr)
		return Blocked()
	}
	return inner
}

func (d *DuplicateSuppressor) BeforeMessageSent(snap *Snapshot, effects *Effects, msg *socket.Addrd[*message.Message]) error {
	return nil
}

func (d *DuplicateSuppressor) OnMessageSent(snap *Snapshot, msg *socket.Addrd[*message.Message]) error {
	return nil
}

var _ Step = (*DuplicateSuppressor)(nil)
