package message

import "errors"

// Wire decoding errors (§4.1, §7). Matches GiterLab/go-coap's style of
// package-level sentinel errors (ErrInvalidTokenLen, ErrOptionTooLong, ...)
// plus the parse failure kinds the spec requires by name.
var (
	// ErrUnexpectedEndOfStream is returned when the datagram ends before a
	// complete message can be read.
	ErrUnexpectedEndOfStream = errors.New("toad/message: unexpected end of stream")

	// ErrInvalidTokenLength is returned when the token-length nibble is > 8.
	ErrInvalidTokenLength = errors.New("toad/message: invalid token length")

	// ErrInvalidType is returned when the type field carries a reserved value.
	// Unreachable with the 2-bit type field (0..3 are all defined) but kept
	// for symmetry with the spec's named error kinds.
	ErrInvalidType = errors.New("toad/message: invalid type")

	// ErrOptionDeltaReserved is returned when an option delta nibble is 0xF.
	ErrOptionDeltaReserved = errors.New("toad/message: option delta reserved value (15)")

	// ErrOptionLengthReserved is returned when an option length nibble is 0xF.
	ErrOptionLengthReserved = errors.New("toad/message: option length reserved value (15)")

	// ErrPayloadTooLong is returned when a fixed-capacity payload buffer
	// cannot hold the inbound payload.
	ErrPayloadTooLong = errors.New("toad/message: payload too long for buffer")

	// ErrInvalidVersion is returned when the version field is not 1.
	ErrInvalidVersion = errors.New("toad/message: invalid version")

	// ErrOptionTooLong is returned on serialization when a value exceeds the
	// 65804-byte RFC bound.
	ErrOptionTooLong = errors.New("toad/message: option value too long")

	// ErrTokenTooLong is returned when a caller sets a token longer than 8 bytes.
	ErrTokenTooLong = errors.New("toad/message: token longer than 8 bytes")

	// ErrEmptyMessageHasBody is returned when a code-(0,0) message carries
	// options or a payload, violating the Empty-message invariant (§3).
	ErrEmptyMessageHasBody = errors.New("toad/message: empty message must not carry options or payload")

	// ErrEmptyMessageHasToken is returned when a code-(0,0) message carries
	// a non-empty token, violating the Empty-message invariant (§3): an
	// Empty message (Ack, Reset, or a Ping's Empty Con) always has TKL=0.
	ErrEmptyMessageHasToken = errors.New("toad/message: empty message must not carry a token")
)

// ParseError wraps a lower-level error with context about where parsing
// failed, the way the spec's ParseError(detail) kind requires (§7) while
// still satisfying errors.Is/errors.As against the sentinels above.
type ParseError struct {
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return "toad/message: parse error: " + e.Detail + ": " + e.Err.Error()
	}
	return "toad/message: parse error: " + e.Detail
}

func (e *ParseError) Unwrap() error { return e.Err }

func newParseError(detail string, err error) error {
	return &ParseError{Detail: detail, Err: err}
}
