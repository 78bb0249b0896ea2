package step

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giterlab/toad/config"
	"github.com/giterlab/toad/message"
	"github.com/giterlab/toad/socket"
)

func TestStandardOptionsAssignsTokenWhenMissing(t *testing.T) {
	s := NewStandardOptions()
	addr := udpAddr(t, "127.0.0.1:9000")
	req := message.New(message.Con, message.GET, 1)
	require.Empty(t, req.Token)

	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}
	wrapped := &socket.Addrd[*message.Message]{Value: req, Addr: addr}
	require.NoError(t, s.BeforeMessageSent(snap, effects, wrapped))

	assert.NotEmpty(t, req.Token)
}

func TestStandardOptionsLeavesExistingTokenAlone(t *testing.T) {
	s := NewStandardOptions()
	addr := udpAddr(t, "127.0.0.1:9000")
	req := message.New(message.Con, message.GET, 1)
	req.Token = []byte{0xAB}

	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}
	wrapped := &socket.Addrd[*message.Message]{Value: req, Addr: addr}
	require.NoError(t, s.BeforeMessageSent(snap, effects, wrapped))

	assert.Equal(t, []byte{0xAB}, req.Token)
}

func TestStandardOptionsDefaultsMaxAgeOnResponses(t *testing.T) {
	s := NewStandardOptions()
	addr := udpAddr(t, "127.0.0.1:9000")
	resp := message.New(message.Ack, message.Content, 1)
	resp.Token = []byte{1}

	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}
	wrapped := &socket.Addrd[*message.Message]{Value: resp, Addr: addr}
	require.NoError(t, s.BeforeMessageSent(snap, effects, wrapped))

	assert.Equal(t, uint32(60), resp.Options.MaxAge())
}

func TestStandardOptionsRejectsOversizedToken(t *testing.T) {
	s := NewStandardOptions()
	addr := udpAddr(t, "127.0.0.1:9000")
	req := message.New(message.Con, message.GET, 1)
	req.Token = make([]byte, message.MaxTokenLength+1)

	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}
	wrapped := &socket.Addrd[*message.Message]{Value: req, Addr: addr}
	err := s.BeforeMessageSent(snap, effects, wrapped)
	assert.ErrorIs(t, err, message.ErrTokenTooLong)
}

func TestStandardOptionsInjectsHostAndPort(t *testing.T) {
	s := NewStandardOptions()
	addr := udpAddr(t, "127.0.0.1:9000")
	req := message.New(message.Con, message.GET, 1)

	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}
	wrapped := &socket.Addrd[*message.Message]{Value: req, Addr: addr}
	require.NoError(t, s.BeforeMessageSent(snap, effects, wrapped))

	assert.Equal(t, "127.0.0.1", req.Options.Host())
	assert.Equal(t, uint32(9000), req.Options.Port())
}

func TestStandardOptionsLeavesExistingHostAndPortAlone(t *testing.T) {
	s := NewStandardOptions()
	addr := udpAddr(t, "127.0.0.1:9000")
	req := message.New(message.Con, message.GET, 1)
	req.Options.SetHost("example.com")
	req.Options.SetPort(5683)

	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}
	wrapped := &socket.Addrd[*message.Message]{Value: req, Addr: addr}
	require.NoError(t, s.BeforeMessageSent(snap, effects, wrapped))

	assert.Equal(t, "example.com", req.Options.Host())
	assert.Equal(t, uint32(5683), req.Options.Port())
}

func TestStandardOptionsInjectsSize1OnRequestsWithPayload(t *testing.T) {
	s := NewStandardOptions()
	addr := udpAddr(t, "127.0.0.1:9000")
	req := message.New(message.Con, message.PUT, 1)
	req.Payload = []byte("hello world")

	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}
	wrapped := &socket.Addrd[*message.Message]{Value: req, Addr: addr}
	require.NoError(t, s.BeforeMessageSent(snap, effects, wrapped))

	size1, ok := req.Options.Size1()
	require.True(t, ok)
	assert.Equal(t, uint32(len("hello world")), size1)
}

func TestStandardOptionsInjectsSize2OnResponsesWithPayload(t *testing.T) {
	s := NewStandardOptions()
	addr := udpAddr(t, "127.0.0.1:9000")
	resp := message.New(message.Ack, message.Content, 1)
	resp.Token = []byte{1}
	resp.Payload = []byte("hello world")

	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}
	wrapped := &socket.Addrd[*message.Message]{Value: resp, Addr: addr}
	require.NoError(t, s.BeforeMessageSent(snap, effects, wrapped))

	size2, ok := resp.Options.Size2()
	require.True(t, ok)
	assert.Equal(t, uint32(len("hello world")), size2)
}

func TestStandardOptionsDoesNotInjectSizeWhenAlreadySet(t *testing.T) {
	s := NewStandardOptions()
	addr := udpAddr(t, "127.0.0.1:9000")
	req := message.New(message.Con, message.PUT, 1)
	req.Payload = []byte("hello world")
	req.Options.SetSize1(999)

	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}
	wrapped := &socket.Addrd[*message.Message]{Value: req, Addr: addr}
	require.NoError(t, s.BeforeMessageSent(snap, effects, wrapped))

	size1, ok := req.Options.Size1()
	require.True(t, ok)
	assert.Equal(t, uint32(999), size1)
}

func TestStandardOptionsExemptsEmptyMessageFromAllInjection(t *testing.T) {
	s := NewStandardOptions()
	addr := udpAddr(t, "127.0.0.1:9000")
	ping := message.NewPing(1)

	snap := &Snapshot{Config: config.Default()}
	effects := &Effects{}
	wrapped := &socket.Addrd[*message.Message]{Value: ping, Addr: addr}
	require.NoError(t, s.BeforeMessageSent(snap, effects, wrapped))

	assert.Empty(t, ping.Token, "an Empty message must never be assigned a token")
	assert.Zero(t, ping.Options.Len(), "an Empty message must never carry options")
}
