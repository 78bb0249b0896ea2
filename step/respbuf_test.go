package step

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giterlab/toad/config"
	"github.com/giterlab/toad/message"
	"github.com/giterlab/toad/socket"
)

func TestResponseBufferHidesResponseFromPollReq(t *testing.T) {
	rb := NewResponseBuffer(8)
	addr := udpAddr(t, "127.0.0.1:7000")
	resp := message.New(message.Ack, message.Content, 1)
	resp.Token = []byte{5}

	inner := Ready(&socket.Addrd[*message.Message]{Value: resp, Addr: addr})
	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}

	out := rb.PollReq(snap, effects, inner)
	assert.True(t, out.IsWouldBlock())
}

func TestResponseBufferResolvesBufferedPollResp(t *testing.T) {
	rb := NewResponseBuffer(8)
	addr := udpAddr(t, "127.0.0.1:7000")
	resp := message.New(message.Ack, message.Content, 1)
	resp.Token = []byte{5}
	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}

	rb.PollReq(snap, effects, Ready(&socket.Addrd[*message.Message]{Value: resp, Addr: addr}))

	out := rb.PollResp(snap, effects, []byte{5}, addr, None())
	require.True(t, out.Present)
	require.NoError(t, out.Err)
	assert.Same(t, resp, out.Msg.Value)

	// Claimed once; a second poll for the same correlation finds nothing.
	out2 := rb.PollResp(snap, effects, []byte{5}, addr, None())
	assert.True(t, out2.IsWouldBlock())
}

func TestResponseBufferResolvesDirectMatch(t *testing.T) {
	rb := NewResponseBuffer(8)
	addr := udpAddr(t, "127.0.0.1:7000")
	resp := message.New(message.Ack, message.Content, 1)
	resp.Token = []byte{7}
	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}

	inner := Ready(&socket.Addrd[*message.Message]{Value: resp, Addr: addr})
	out := rb.PollResp(snap, effects, []byte{7}, addr, inner)
	require.True(t, out.Present)
	assert.Same(t, resp, out.Msg.Value)
}

func TestResponseBufferBuffersMismatchedTokenForLater(t *testing.T) {
	rb := NewResponseBuffer(8)
	addr := udpAddr(t, "127.0.0.1:7000")
	resp := message.New(message.Ack, message.Content, 1)
	resp.Token = []byte{1}
	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}

	inner := Ready(&socket.Addrd[*message.Message]{Value: resp, Addr: addr})
	out := rb.PollResp(snap, effects, []byte{9}, addr, inner)
	assert.True(t, out.IsWouldBlock())

	out2 := rb.PollResp(snap, effects, []byte{1}, addr, None())
	require.True(t, out2.Present)
	assert.Same(t, resp, out2.Msg.Value)
}

func TestResponseBufferCancel(t *testing.T) {
	rb := NewResponseBuffer(8)
	addr := udpAddr(t, "127.0.0.1:7000")
	resp := message.New(message.Ack, message.Content, 1)
	resp.Token = []byte{1}
	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}

	rb.PollReq(snap, effects, Ready(&socket.Addrd[*message.Message]{Value: resp, Addr: addr}))
	rb.Cancel([]byte{1}, addr)

	out := rb.PollResp(snap, effects, []byte{1}, addr, None())
	assert.True(t, out.IsWouldBlock())
}
