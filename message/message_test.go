package message

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
)

func TestValidateRejectsTokenOnEmptyMessage(t *testing.T) {
	m := NewPing(5)
	m.Token = []byte{0x01}
	err := m.Validate()
	assert.ErrorIs(t, err, ErrEmptyMessageHasToken)
}

func TestValidateAllowsEmptyMessageWithNoToken(t *testing.T) {
	m := NewAck(5)
	assert.NoError(t, m.Validate())
}

func TestValidateAggregatesSimultaneousViolations(t *testing.T) {
	m := NewPing(5)
	m.Token = make([]byte, MaxTokenLength+1)
	m.Payload = []byte("oops")

	err := m.Validate()
	assert.ErrorIs(t, err, ErrTokenTooLong)
	assert.ErrorIs(t, err, ErrEmptyMessageHasBody)
	assert.ErrorIs(t, err, ErrEmptyMessageHasToken)

	merr, ok := err.(*multierror.Error)
	assert.True(t, ok)
	assert.Len(t, merr.Errors, 3)
}
