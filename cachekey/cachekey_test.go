package cachekey

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/giterlab/toad/message"
)

func request(id uint16, token string, path string) *message.Message {
	m := message.New(message.Con, message.GET, id)
	m.Token = []byte(token)
	m.Options.SetPath(path)
	return m
}

func TestCacheKeyIgnoresIDTokenPayloadAndSize1(t *testing.T) {
	a := request(1, "tok-a", "hello")
	b := request(2, "tok-b", "hello")
	b.Payload = []byte("different payload")
	b.Options.SetSize1(99)

	assert.Equal(t, Of(a), Of(b))
}

func TestCacheKeyDiffersOnMethod(t *testing.T) {
	a := request(1, "t", "hello")
	b := message.New(message.Con, message.POST, 1)
	b.Token = []byte("t")
	b.Options.SetPath("hello")

	assert.NotEqual(t, Of(a), Of(b))
}

func TestCacheKeyDiffersOnPath(t *testing.T) {
	a := request(1, "t", "hello")
	b := request(1, "t", "goodbye")
	assert.NotEqual(t, Of(a), Of(b))
}

func TestCacheKeyDiffersOnAccept(t *testing.T) {
	a := request(1, "t", "hello")
	b := request(1, "t", "hello")
	b.Options.SetAccept(50)
	assert.NotEqual(t, Of(a), Of(b))
}

func TestCacheKeyDiffersOnQuery(t *testing.T) {
	a := request(1, "t", "hello")
	b := request(1, "t", "hello")
	b.Options.Add(message.URIQuery, []byte("x=1"))
	assert.NotEqual(t, Of(a), Of(b))
}
