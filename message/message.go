package message

import (
	"github.com/hashicorp/go-multierror"
)

// MaxTokenLength is the RFC 7252 token-length bound (§3).
const MaxTokenLength = 8

// Message is the unified CoAP message model (§3). Both request and
// response messages share this type; Code.Kind() distinguishes them.
type Message struct {
	Version uint8 // always 1
	Type    Type
	Code    Code
	ID      uint16
	Token   []byte
	Options *Map
	Payload []byte
}

// New builds a Message with a fresh, empty option map and version 1, the
// way every constructor in the codec and the steps should start.
func New(t Type, code Code, id uint16) *Message {
	return &Message{
		Version: 1,
		Type:    t,
		Code:    code,
		ID:      id,
		Options: NewMap(),
	}
}

// IsEmpty reports whether this is an Empty message (code 0.00).
func (m *Message) IsEmpty() bool { return m.Code == Empty }

// Validate checks the invariants of §3: token length <= 8; code (0,0) iff
// Empty; Empty messages carry no options, no payload, and no token. A
// message can violate more than one invariant at once (an oversized token
// on an otherwise empty message that also carries a payload), so failures
// are collected with go-multierror rather than returning only the first
// one found.
func (m *Message) Validate() error {
	var merr *multierror.Error
	if len(m.Token) > MaxTokenLength {
		merr = multierror.Append(merr, ErrTokenTooLong)
	}
	if m.IsEmpty() {
		if m.Options.Len() > 0 || len(m.Payload) > 0 {
			merr = multierror.Append(merr, ErrEmptyMessageHasBody)
		}
		if len(m.Token) > 0 {
			merr = multierror.Append(merr, ErrEmptyMessageHasToken)
		}
	}
	return merr.ErrorOrNil()
}

// NewAck builds an empty Ack mirroring the id of the message it answers
// (§3: "Ack/Reset mirror the id of the message they answer").
func NewAck(id uint16) *Message {
	return New(Ack, Empty, id)
}

// NewReset builds an empty Reset mirroring id.
func NewReset(id uint16) *Message {
	return New(Reset, Empty, id)
}

// NewPing builds an Empty Con, used by Core.Ping (§6).
func NewPing(id uint16) *Message {
	return New(Con, Empty, id)
}

// Clone returns a deep copy, used whenever a message must be queued for
// retry independent of further mutation of the original (§4.7).
func (m *Message) Clone() *Message {
	cp := &Message{
		Version: m.Version,
		Type:    m.Type,
		Code:    m.Code,
		ID:      m.ID,
		Token:   append([]byte(nil), m.Token...),
		Payload: append([]byte(nil), m.Payload...),
	}
	if m.Options != nil {
		cp.Options = m.Options.Clone()
	} else {
		cp.Options = NewMap()
	}
	return cp
}
