package message

import (
	"bytes"
	"encoding/binary"
)

// Codec marshals and unmarshals Messages per §4.1. It is adapted from
// GiterLab/go-coap's Message.MarshalBinary/UnmarshalBinary, generalized to
// the spec's error taxonomy (ParseError wrapping named sentinels) and to
// the standalone option.Map type instead of an inline []option slice.
type Codec struct{}

// NewCodec returns the stateless wire codec. There is no per-connection
// state; a Codec value is safe for concurrent use.
func NewCodec() *Codec { return &Codec{} }

const (
	extOptByteCode   = 13
	extOptByteAddend = 13
	extOptWordCode   = 14
	extOptWordAddend = 269
	extOptReserved   = 15
	payloadMarker    = 0xff
)

// Marshal serializes m per §4.1: byte0 (ver/type/tkl), byte1 (code), id,
// token, options (ascending, delta-encoded), optional 0xFF + payload.
func (c *Codec) Marshal(m *Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	buf.WriteByte((1 << 6) | (uint8(m.Type) << 4) | uint8(len(m.Token)&0xf))
	buf.WriteByte(byte(m.Code))

	var idBuf [2]byte
	binary.BigEndian.PutUint16(idBuf[:], m.ID)
	buf.Write(idBuf[:])
	buf.Write(m.Token)

	prev := 0
	for _, entry := range m.Options.Iter() {
		for _, v := range entry.Values {
			if len(v) > 65804 {
				return nil, ErrOptionTooLong
			}
			writeOptionHeader(buf, int(entry.Number)-prev, len(v))
			buf.Write(v)
			prev = int(entry.Number)
		}
	}

	if len(m.Payload) > 0 {
		buf.WriteByte(payloadMarker)
		buf.Write(m.Payload)
	}

	return buf.Bytes(), nil
}

func extendOption(v int) (nibble, ext int) {
	switch {
	case v >= extOptWordAddend:
		return extOptWordCode, v - extOptWordAddend
	case v >= extOptByteAddend:
		return extOptByteCode, v - extOptByteAddend
	default:
		return v, 0
	}
}

func writeOptionHeader(buf *bytes.Buffer, delta, length int) {
	dNibble, dExt := extendOption(delta)
	lNibble, lExt := extendOption(length)
	buf.WriteByte(byte(dNibble<<4) | byte(lNibble))

	writeExt := func(nibble, ext int) {
		switch nibble {
		case extOptByteCode:
			buf.WriteByte(byte(ext))
		case extOptWordCode:
			var tmp [2]byte
			binary.BigEndian.PutUint16(tmp[:], uint16(ext))
			buf.Write(tmp[:])
		}
	}
	writeExt(dNibble, dExt)
	writeExt(lNibble, lExt)
}

// Unmarshal parses data into a new Message, or returns a *ParseError
// wrapping one of the sentinels in errors.go (§4.1, §7).
func (c *Codec) Unmarshal(data []byte) (*Message, error) {
	if len(data) < 4 {
		return nil, newParseError("header", ErrUnexpectedEndOfStream)
	}
	if data[0]>>6 != 1 {
		return nil, newParseError("version", ErrInvalidVersion)
	}

	tkl := int(data[0] & 0xf)
	if tkl > MaxTokenLength {
		return nil, newParseError("token length", ErrInvalidTokenLength)
	}

	m := &Message{
		Version: 1,
		Type:    Type((data[0] >> 4) & 0x3),
		Code:    Code(data[1]),
		ID:      binary.BigEndian.Uint16(data[2:4]),
		Options: NewMap(),
	}

	rest := data[4:]
	if len(rest) < tkl {
		return nil, newParseError("token", ErrUnexpectedEndOfStream)
	}
	if tkl > 0 {
		m.Token = append([]byte(nil), rest[:tkl]...)
	}
	rest = rest[tkl:]

	prev := 0
	for len(rest) > 0 {
		if rest[0] == payloadMarker {
			rest = rest[1:]
			break
		}

		deltaNibble := int(rest[0] >> 4)
		lengthNibble := int(rest[0] & 0x0f)
		rest = rest[1:]

		if deltaNibble == extOptReserved {
			return nil, newParseError("option delta", ErrOptionDeltaReserved)
		}
		if lengthNibble == extOptReserved {
			return nil, newParseError("option length", ErrOptionLengthReserved)
		}

		delta, rest2, err := readExtOption(deltaNibble, rest)
		if err != nil {
			return nil, newParseError("option delta extended", err)
		}
		rest = rest2

		length, rest3, err := readExtOption(lengthNibble, rest)
		if err != nil {
			return nil, newParseError("option length extended", err)
		}
		rest = rest3

		if len(rest) < length {
			return nil, newParseError("option value", ErrUnexpectedEndOfStream)
		}

		number := Number(prev + delta)
		value := append([]byte(nil), rest[:length]...)
		rest = rest[length:]
		prev = int(number)

		m.Options.Add(number, value)
	}

	m.Payload = append([]byte(nil), rest...)

	if err := m.Validate(); err != nil {
		return nil, newParseError("validate", err)
	}
	return m, nil
}

// readExtOption reads the (possibly extended) delta/length nibble per the
// option header rule in §4.2: 0..12 direct, 13 => +1 byte, 14 => +2 bytes
// big-endian, 15 reserved (already rejected by the caller).
func readExtOption(nibble int, rest []byte) (int, []byte, error) {
	switch nibble {
	case extOptByteCode:
		if len(rest) < 1 {
			return 0, nil, ErrUnexpectedEndOfStream
		}
		return int(rest[0]) + extOptByteAddend, rest[1:], nil
	case extOptWordCode:
		if len(rest) < 2 {
			return 0, nil, ErrUnexpectedEndOfStream
		}
		return int(binary.BigEndian.Uint16(rest[:2])) + extOptWordAddend, rest[2:], nil
	default:
		return nibble, rest, nil
	}
}

// UnmarshalCapped is Unmarshal but rejects payloads that would exceed
// maxPayload, surfacing ErrPayloadTooLong — the fixed-capacity binding's
// counterpart to the heap-backed Unmarshal (§9 "polymorphic collections").
func (c *Codec) UnmarshalCapped(data []byte, maxPayload int) (*Message, error) {
	m, err := c.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	if len(m.Payload) > maxPayload {
		return nil, newParseError("payload", ErrPayloadTooLong)
	}
	return m, nil
}
