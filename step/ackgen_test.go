package step

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giterlab/toad/config"
	"github.com/giterlab/toad/message"
	"github.com/giterlab/toad/socket"
)

func udpAddr(t *testing.T, s string) net.Addr {
	t.Helper()
	a, err := net.ResolveUDPAddr("udp", s)
	require.NoError(t, err)
	return a
}

func TestAckGeneratorAcksConfirmable(t *testing.T) {
	ag := NewAckGenerator()
	addr := udpAddr(t, "127.0.0.1:5555")
	req := message.New(message.Con, message.GET, 42)
	req.Options.SetPath("hello")

	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}
	inner := Ready(&socket.Addrd[*message.Message]{Value: req, Addr: addr})

	out := ag.PollReq(snap, effects, inner)
	assert.Equal(t, inner, out)

	items := effects.Drain()
	require.Len(t, items, 1)
	require.Equal(t, EffectSendDatagram, items[0].Kind)

	ack, err := message.NewCodec().Unmarshal(items[0].Datagram.Value)
	require.NoError(t, err)
	assert.Equal(t, message.Ack, ack.Type)
	assert.Equal(t, uint16(42), ack.ID)
	assert.True(t, ack.IsEmpty())
}

func TestAckGeneratorIgnoresNonConfirmable(t *testing.T) {
	ag := NewAckGenerator()
	addr := udpAddr(t, "127.0.0.1:5555")
	req := message.New(message.Non, message.GET, 42)

	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}
	inner := Ready(&socket.Addrd[*message.Message]{Value: req, Addr: addr})

	ag.PollResp(snap, effects, req.Token, addr, inner)
	assert.Empty(t, effects.Drain())
}

func TestAckGeneratorIgnoresBlockedInner(t *testing.T) {
	ag := NewAckGenerator()
	effects := &Effects{}
	out := ag.PollReq(&Snapshot{}, effects, Blocked())
	assert.True(t, out.IsWouldBlock())
	assert.Empty(t, effects.Drain())
}
