package step

import (
	"bytes"
	"math/rand"
	"net"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/giterlab/toad/clock"
	"github.com/giterlab/toad/internal/logging"
	"github.com/giterlab/toad/message"
	"github.com/giterlab/toad/socket"
)

// retryKey identifies an outbound Confirmable exchange awaiting an Ack or
// Reset, by message id and peer address (§4.7).
type retryKey struct {
	id   uint16
	addr string
}

// retryEntry tracks one in-flight Confirmable exchange.
type retryEntry struct {
	raw   []byte
	token []byte
	addr  net.Addr
	timer *clock.Timer
}

// ExchangeOutcome records how a tracked Confirmable exchange ended. It is
// kept around after the live entry is removed so a later poll_resp (or
// Ping) call can still learn the result, instead of only ever observing
// the entry's absence (§4.9's reset/exhaustion terminal states).
type ExchangeOutcome uint8

const (
	// OutcomeAcked means a matching Ack arrived.
	OutcomeAcked ExchangeOutcome = iota + 1
	// OutcomeReset means a matching Reset arrived.
	OutcomeReset
	// OutcomeExhausted means the retry schedule ran out with no reply.
	OutcomeExhausted
)

// tokenKey identifies a tracked exchange by (token, addr), the
// correlation poll_resp callers actually wait on, as opposed to retryKey's
// (id, addr).
type tokenKey struct {
	token string
	addr  string
}

func tokenKeyOf(token []byte, addr net.Addr) tokenKey {
	return tokenKey{token: string(token), addr: addr.String()}
}

// RetryBuffer implements the Confirmable retry half of the Reliability
// Steps (§4.7): every outbound Con is registered with a clock.Timer built
// from the exponential schedule (§4.4), retransmitted on each poll where
// the timer reports Retry, and released the moment a matching Ack or Reset
// arrives. Exhausted exchanges are dropped and logged, never retried
// again, matching §7's "retransmission exhaustion is reported, not
// retried forever" policy.
//
// Keyed by (id, addr) rather than token because Ack/Reset correlate to the
// message id (RFC 7252 §4.2), not the token — the Response-Buffer, one
// layer out, is what correlates by (token, addr). A second, small map
// remembers each settled exchange's terminal ExchangeOutcome by both
// (id, addr) and (token, addr), so Ping and poll_resp can distinguish
// "acked/reset" from "exhausted" instead of inferring success from the
// entry's mere absence.
type RetryBuffer struct {
	clk      clock.Clock
	strategy clock.Strategy
	capacity int
	entries  *lru.LRU[retryKey, *retryEntry]

	outcomesByID    *lru.LRU[retryKey, ExchangeOutcome]
	outcomesByToken *lru.LRU[tokenKey, ExchangeOutcome]

	// jitter draws a uniform value in [0, 1); overridable in tests that
	// need a deterministic schedule. Defaults to rand.Float64.
	jitter func() float64
}

func retryKeyOf(id uint16, addr net.Addr) retryKey {
	return retryKey{id: id, addr: addr.String()}
}

// NewRetryBuffer constructs a Retry-Buffer bounded to capacity in-flight
// exchanges. Unlike a plain LRU cache, capacity overflow is rejected
// outright by BeforeMessageSent (§4.7) rather than silently evicting an
// active exchange's retransmission guarantee; the outcome maps share the
// same bound purely to cap memory — an outcome evicting early just means
// a very late poll_resp sees WouldBlock instead of the true terminal
// result, which is no worse than never having registered the exchange.
func NewRetryBuffer(clk clock.Clock, strategy clock.Strategy, capacity int) *RetryBuffer {
	entries, err := lru.NewLRU[retryKey, *retryEntry](capacity, func(k retryKey, v *retryEntry) {
		logging.Trace("toad/step: retry-buffer evicted in-flight exchange id=%d addr=%s", k.id, k.addr)
	})
	if err != nil {
		// config.Default sets capacity to 64; the only failure mode in
		// golang-lru is a non-positive size.
		panic("toad/step: retry-buffer capacity must be positive: " + err.Error())
	}
	outcomesByID, err := lru.NewLRU[retryKey, ExchangeOutcome](capacity, nil)
	if err != nil {
		panic("toad/step: retry-buffer capacity must be positive: " + err.Error())
	}
	outcomesByToken, err := lru.NewLRU[tokenKey, ExchangeOutcome](capacity, nil)
	if err != nil {
		panic("toad/step: retry-buffer capacity must be positive: " + err.Error())
	}
	return &RetryBuffer{
		clk:             clk,
		strategy:        strategy,
		capacity:        capacity,
		entries:         entries,
		outcomesByID:    outcomesByID,
		outcomesByToken: outcomesByToken,
		jitter:          rand.Float64,
	}
}

func (r *RetryBuffer) Name() string { return "retry-buffer" }

// register starts tracking an outbound Confirmable message for retry.
// Called from BeforeMessageSent once Standard-Options has finished
// stamping the message, so the bytes retransmitted later are identical to
// the bytes first sent. The initial interval is widened by a factor drawn
// uniformly from [1.0, ackRandomFactor) per exchange, per RFC 7252 §4.8's
// ACK_RANDOM_FACTOR; later intervals double from that jittered start (§9
// Open Question resolution).
func (r *RetryBuffer) register(snap *Snapshot, raw []byte, msg *message.Message, addr net.Addr, maxRetransmit int, ackRandomFactor float64) {
	timer := clock.NewTimer(r.clk, r.jitteredStrategy(ackRandomFactor), snap.Now, maxRetransmit)
	key := retryKeyOf(msg.ID, addr)
	r.entries.Add(key, &retryEntry{raw: raw, token: msg.Token, addr: addr, timer: timer})
	r.outcomesByID.Remove(key)
	r.outcomesByToken.Remove(tokenKeyOf(msg.Token, addr))
}

// jitteredStrategy returns r.strategy with its initial interval widened by
// a uniform random factor in [1.0, ackRandomFactor), or r.strategy
// unchanged when ackRandomFactor <= 1.0 (no jitter configured).
func (r *RetryBuffer) jitteredStrategy(ackRandomFactor float64) clock.Strategy {
	if ackRandomFactor <= 1.0 {
		return r.strategy
	}
	factor := 1.0 + r.jitter()*(ackRandomFactor-1.0)
	switch s := r.strategy.(type) {
	case clock.Exponential:
		return clock.Exponential{Initial: time.Duration(float64(s.Initial) * factor)}
	case clock.FixedDelay:
		return clock.FixedDelay{Interval: time.Duration(float64(s.Interval) * factor)}
	default:
		return r.strategy
	}
}

// recordOutcome removes an exchange's live entry and remembers how it
// ended, under both its (id, addr) and (token, addr) keys.
func (r *RetryBuffer) recordOutcome(key retryKey, e *retryEntry, outcome ExchangeOutcome) {
	r.entries.Remove(key)
	r.outcomesByID.Add(key, outcome)
	r.outcomesByToken.Add(tokenKeyOf(e.token, e.addr), outcome)
}

// cancelMatching removes any exchange whose id and addr are acknowledged
// or reset by the given inbound message, per RFC 7252 §4.2, recording the
// terminal outcome.
func (r *RetryBuffer) cancelMatching(inner Outcome) {
	if !inner.Present || inner.Err != nil || inner.Msg == nil {
		return
	}
	m := inner.Msg.Value
	if m.Type != message.Ack && m.Type != message.Reset {
		return
	}
	key := retryKeyOf(m.ID, inner.Msg.Addr)
	e, ok := r.entries.Peek(key)
	if !ok {
		return
	}
	outcome := OutcomeAcked
	if m.Type == message.Reset {
		outcome = OutcomeReset
	}
	r.recordOutcome(key, e, outcome)
}

// CancelByToken releases a pending exchange by (token, addr), the
// supplemented explicit-cancellation operation (§5, "cancel").
func (r *RetryBuffer) CancelByToken(token []byte, addr net.Addr) bool {
	for _, k := range r.entries.Keys() {
		e, ok := r.entries.Peek(k)
		if !ok {
			continue
		}
		if e.addr.String() == addr.String() && bytes.Equal(e.token, token) {
			r.entries.Remove(k)
			r.outcomesByID.Remove(k)
			r.outcomesByToken.Remove(tokenKeyOf(token, addr))
			return true
		}
	}
	return false
}

// retransmit walks every tracked exchange, retransmitting those whose
// timer reports Retry and dropping those that report Exhausted.
func (r *RetryBuffer) retransmit(snap *Snapshot, effects *Effects) {
	for _, k := range r.entries.Keys() {
		e, ok := r.entries.Peek(k)
		if !ok {
			continue
		}
		res, err := e.timer.Poll()
		if err != nil {
			logging.Error("toad/step: retry-buffer clock failure for id=%d: %v", k.id, err)
			continue
		}
		switch res {
		case clock.Retry:
			effects.SendDatagram(socket.Addrd[[]byte]{Value: e.raw, Addr: e.addr})
			effects.Logf("info", "retransmitting id=%d to %s (attempt %d)", k.id, k.addr, e.timer.Attempts())
		case clock.Exhausted:
			effects.Logf("warn", "exchange id=%d to %s exhausted retries, giving up", k.id, k.addr)
			r.recordOutcome(k, e, OutcomeExhausted)
		case clock.WouldBlock:
			// not yet due
		}
	}
}

// swallowEmpty reports whether inner carries a bare Ack/Reset (code
// Empty): these exist purely to drive retry bookkeeping and are never a
// request or a response, so neither poll_req nor poll_resp should ever
// hand one to the caller.
func swallowEmpty(inner Outcome) Outcome {
	if inner.Present && inner.Err == nil && inner.Msg != nil &&
		inner.Msg.Value.IsEmpty() &&
		(inner.Msg.Value.Type == message.Ack || inner.Msg.Value.Type == message.Reset) {
		return Blocked()
	}
	return inner
}

func (r *RetryBuffer) PollReq(snap *Snapshot, effects *Effects, inner Outcome) Outcome {
	r.cancelMatching(inner)
	r.retransmit(snap, effects)
	return swallowEmpty(inner)
}

// PollResp cancels/retransmits as PollReq does, then checks whether the
// exchange the caller is actually waiting on, (token, addr), has settled
// into a Reset or a previously recorded exhaustion, surfacing that as an
// error instead of leaving the caller to time out (§4.9: reset-received
// and retry-exhaustion are both terminal states that must reach
// poll_resp, not just Ack/Retry bookkeeping).
func (r *RetryBuffer) PollResp(snap *Snapshot, effects *Effects, token []byte, addr net.Addr, inner Outcome) Outcome {
	r.cancelMatching(inner)
	r.retransmit(snap, effects)

	if outcome, ok := r.outcomesByToken.Peek(tokenKeyOf(token, addr)); ok {
		switch outcome {
		case OutcomeReset:
			return Failed(ErrReset)
		case OutcomeExhausted:
			return Failed(ErrMessageNeverAcked)
		}
	}
	return swallowEmpty(inner)
}

// BeforeMessageSent registers outbound Confirmable messages for retry
// once outer steps (Standard-Options) have finished stamping them,
// rejecting the send with ErrRetryBufferFull when the buffer is already
// tracking capacity in-flight exchanges (§4.7's overflow policy).
func (r *RetryBuffer) BeforeMessageSent(snap *Snapshot, effects *Effects, msg *socket.Addrd[*message.Message]) error {
	if msg.Value.Type != message.Con {
		return nil
	}
	key := retryKeyOf(msg.Value.ID, msg.Addr)
	if _, exists := r.entries.Peek(key); !exists && r.entries.Len() >= r.capacity {
		return ErrRetryBufferFull
	}
	raw, err := message.NewCodec().Marshal(msg.Value)
	if err != nil {
		return err
	}
	r.register(snap, raw, msg.Value, msg.Addr, snap.Config.MaxRetransmit, snap.Config.AckRandomFactor)
	return nil
}

func (r *RetryBuffer) OnMessageSent(snap *Snapshot, msg *socket.Addrd[*message.Message]) error {
	return nil
}

// Pending reports whether an exchange for (id, addr) is still awaiting an
// Ack/Reset, used by Ping (§6 supplemented operation) to distinguish "no
// reply yet" from "settled."
func (r *RetryBuffer) Pending(id uint16, addr net.Addr) bool {
	_, ok := r.entries.Peek(retryKeyOf(id, addr))
	return ok
}

// Outcome reports the terminal result of the exchange for (id, addr), if
// it has settled — used by Ping (§5's "ping succeeds on a same-id Ack or
// Reset") to tell a successful ack/reset apart from exhaustion rather than
// inferring success from Pending alone.
func (r *RetryBuffer) Outcome(id uint16, addr net.Addr) (ExchangeOutcome, bool) {
	return r.outcomesByID.Peek(retryKeyOf(id, addr))
}

var _ Step = (*RetryBuffer)(nil)
