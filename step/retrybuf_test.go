package step

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giterlab/toad/clock"
	"github.com/giterlab/toad/config"
	"github.com/giterlab/toad/message"
	"github.com/giterlab/toad/socket"
)

func fakeNow(t *testing.T, clk *clock.Fake) time.Time {
	t.Helper()
	now, err := clk.Now()
	require.NoError(t, err)
	return now
}

func TestRetryBufferRetransmitsOnSchedule(t *testing.T) {
	epoch := time.Unix(0, 0)
	clk := clock.NewFake(epoch)
	rb := NewRetryBuffer(clk, clock.Exponential{Initial: 100 * time.Millisecond}, 8)
	cfg := config.Default()
	cfg.AckRandomFactor = 1.0 // deterministic schedule for these timing assertions
	addr := udpAddr(t, "127.0.0.1:6000")

	req := message.New(message.Con, message.GET, 7)
	req.Token = []byte{1, 2, 3}
	wrapped := &socket.Addrd[*message.Message]{Value: req, Addr: addr}

	snap := &Snapshot{Now: epoch, Config: cfg}
	effects := &Effects{}
	require.NoError(t, rb.BeforeMessageSent(snap, effects, wrapped))

	// Immediately polling: no retry due yet (elapsed 0 < 100ms).
	out := rb.PollReq(snap, effects, None())
	assert.Equal(t, None(), out)
	assert.Empty(t, effects.Drain())

	// 150ms elapsed: first retry is due.
	clk.Advance(150 * time.Millisecond)
	snap2 := &Snapshot{Now: fakeNow(t, clk), Config: cfg}
	rb.PollReq(snap2, effects, None())
	items := effects.Drain()
	require.Len(t, items, 1)
	require.Equal(t, EffectSendDatagram, items[0].Kind)

	retransmitted, err := message.NewCodec().Unmarshal(items[0].Datagram.Value)
	require.NoError(t, err)
	assert.Equal(t, uint16(7), retransmitted.ID)
}

func TestRetryBufferCancelsOnMatchingAck(t *testing.T) {
	epoch := time.Unix(0, 0)
	clk := clock.NewFake(epoch)
	rb := NewRetryBuffer(clk, clock.Exponential{Initial: 100 * time.Millisecond}, 8)
	cfg := config.Default()
	cfg.AckRandomFactor = 1.0 // deterministic schedule for these timing assertions
	addr := udpAddr(t, "127.0.0.1:6000")

	req := message.New(message.Con, message.GET, 9)
	wrapped := &socket.Addrd[*message.Message]{Value: req, Addr: addr}
	snap := &Snapshot{Now: epoch, Config: cfg}
	effects := &Effects{}
	require.NoError(t, rb.BeforeMessageSent(snap, effects, wrapped))
	assert.True(t, rb.Pending(9, addr))

	ack := message.NewAck(9)
	ackInner := Ready(&socket.Addrd[*message.Message]{Value: ack, Addr: addr})
	rb.PollReq(snap, effects, ackInner)
	effects.Drain()

	assert.False(t, rb.Pending(9, addr))

	// No further retransmission even well past the schedule.
	clk.Advance(5 * time.Second)
	snap2 := &Snapshot{Now: fakeNow(t, clk), Config: cfg}
	rb.PollReq(snap2, effects, None())
	assert.Empty(t, effects.Drain())
}

func TestRetryBufferExhaustsAfterMaxRetransmit(t *testing.T) {
	epoch := time.Unix(0, 0)
	clk := clock.NewFake(epoch)
	rb := NewRetryBuffer(clk, clock.Exponential{Initial: 100 * time.Millisecond}, 8)
	cfg := config.Default()
	cfg.AckRandomFactor = 1.0 // deterministic schedule for these timing assertions
	cfg.MaxRetransmit = 2
	addr := udpAddr(t, "127.0.0.1:6000")

	req := message.New(message.Con, message.GET, 11)
	wrapped := &socket.Addrd[*message.Message]{Value: req, Addr: addr}
	snap := &Snapshot{Now: epoch, Config: cfg}
	effects := &Effects{}
	require.NoError(t, rb.BeforeMessageSent(snap, effects, wrapped))
	effects.Drain()

	// k=1 ready at 100ms, k=2 ready at 300ms.
	clk.Advance(100 * time.Millisecond)
	rb.PollReq(&Snapshot{Now: fakeNow(t, clk), Config: cfg}, effects, None())
	effects.Drain()
	clk.Advance(200 * time.Millisecond)
	rb.PollReq(&Snapshot{Now: fakeNow(t, clk), Config: cfg}, effects, None())
	effects.Drain()

	assert.True(t, rb.Pending(11, addr))

	clk.Advance(time.Hour)
	out := rb.PollReq(&Snapshot{Now: fakeNow(t, clk), Config: cfg}, effects, None())
	assert.Equal(t, None(), out)
	items := effects.Drain()
	require.Len(t, items, 1)
	assert.Equal(t, EffectLog, items[0].Kind)
	assert.Equal(t, "warn", items[0].Level)
	assert.False(t, rb.Pending(11, addr))
}

func TestRetryBufferWidensInitialIntervalByAckRandomFactor(t *testing.T) {
	epoch := time.Unix(0, 0)
	clk := clock.NewFake(epoch)
	rb := NewRetryBuffer(clk, clock.Exponential{Initial: 100 * time.Millisecond}, 8)
	rb.jitter = func() float64 { return 0.5 } // midpoint of [0,1)

	cfg := config.Default()
	cfg.AckRandomFactor = 1.5 // widened interval: 100ms * (1.0 + 0.5*(1.5-1.0)) = 125ms
	addr := udpAddr(t, "127.0.0.1:6000")

	req := message.New(message.Con, message.GET, 21)
	wrapped := &socket.Addrd[*message.Message]{Value: req, Addr: addr}
	snap := &Snapshot{Now: epoch, Config: cfg}
	effects := &Effects{}
	require.NoError(t, rb.BeforeMessageSent(snap, effects, wrapped))

	// 110ms elapsed: still short of the jittered 125ms interval.
	clk.Advance(110 * time.Millisecond)
	rb.PollReq(&Snapshot{Now: fakeNow(t, clk), Config: cfg}, effects, None())
	assert.Empty(t, effects.Drain(), "jittered interval should not have elapsed yet")

	// 130ms elapsed: now past the jittered 125ms interval.
	clk.Advance(20 * time.Millisecond)
	rb.PollReq(&Snapshot{Now: fakeNow(t, clk), Config: cfg}, effects, None())
	items := effects.Drain()
	require.Len(t, items, 1)
	assert.Equal(t, EffectSendDatagram, items[0].Kind)
}

func TestRetryBufferCancelByToken(t *testing.T) {
	epoch := time.Unix(0, 0)
	clk := clock.NewFake(epoch)
	rb := NewRetryBuffer(clk, clock.Exponential{Initial: 100 * time.Millisecond}, 8)
	cfg := config.Default()
	cfg.AckRandomFactor = 1.0 // deterministic schedule for these timing assertions
	addr := udpAddr(t, "127.0.0.1:6000")

	req := message.New(message.Con, message.GET, 13)
	req.Token = []byte{9, 9}
	wrapped := &socket.Addrd[*message.Message]{Value: req, Addr: addr}
	snap := &Snapshot{Now: epoch, Config: cfg}
	effects := &Effects{}
	require.NoError(t, rb.BeforeMessageSent(snap, effects, wrapped))

	assert.True(t, rb.CancelByToken([]byte{9, 9}, addr))
	assert.False(t, rb.Pending(13, addr))
}
