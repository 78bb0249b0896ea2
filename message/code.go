package message

import "fmt"

// Code is a CoAP message code, (class, detail), rendered "c.dd" (§3).
// The wire byte is (class<<5)|detail, matching RFC 7252 §3 and
// GiterLab/go-coap's raw CCode constants (e.g. Content = 0b010_00101 = 69).
type Code uint8

// NewCode builds a Code from class (0..7) and detail (0..31).
func NewCode(class, detail uint8) Code {
	return Code((class&0x7)<<5 | (detail & 0x1f))
}

// Class returns the code's class (bits 7..5).
func (c Code) Class() uint8 { return uint8(c) >> 5 }

// Detail returns the code's detail (bits 4..0).
func (c Code) Detail() uint8 { return uint8(c) & 0x1f }

// Kind classifies a Code as defined in §3: Empty, Request, Response, or
// Reserved (class 1 or 6/7, unused by RFC 7252).
type Kind uint8

const (
	KindEmpty Kind = iota
	KindRequest
	KindResponse
	KindReserved
)

// Kind classifies the code per §3: Empty = (0,0); Request = (0, 1..=31);
// Response = class in 2..=5; everything else is Reserved.
func (c Code) Kind() Kind {
	switch {
	case c == 0:
		return KindEmpty
	case c.Class() == 0:
		return KindRequest
	case c.Class() >= 2 && c.Class() <= 5:
		return KindResponse
	default:
		return KindReserved
	}
}

// String renders "c.dd" per §8 property 4.
func (c Code) String() string {
	return fmt.Sprintf("%d.%02d", c.Class(), c.Detail())
}

// Request method codes (RFC 7252 §12.1.1).
const (
	GET    Code = 1
	POST   Code = 2
	PUT    Code = 3
	DELETE Code = 4
)

// Response codes (RFC 7252 §12.1.2).
const (
	Created               Code = 65  // 2.01
	Deleted               Code = 66  // 2.02
	Valid                 Code = 67  // 2.03
	Changed               Code = 68  // 2.04
	Content               Code = 69  // 2.05
	BadRequest            Code = 128 // 4.00
	Unauthorized          Code = 129 // 4.01
	BadOption             Code = 130 // 4.02
	Forbidden             Code = 131 // 4.03
	NotFound              Code = 132 // 4.04
	MethodNotAllowed      Code = 133 // 4.05
	NotAcceptable         Code = 134 // 4.06
	PreconditionFailed    Code = 140 // 4.12
	RequestEntityTooLarge Code = 141 // 4.13
	UnsupportedMediaType  Code = 143 // 4.15
	InternalServerError   Code = 160 // 5.00
	NotImplemented        Code = 161 // 5.01
	BadGateway            Code = 162 // 5.02
	ServiceUnavailable    Code = 163 // 5.03
	GatewayTimeout        Code = 164 // 5.04
	ProxyingNotSupported  Code = 165 // 5.05
)

// Empty is the (0,0) code: Empty messages (Ack/Reset bodies, pings).
const Empty Code = 0

var codeNames = map[Code]string{
	GET:    "GET",
	POST:   "POST",
	PUT:    "PUT",
	DELETE: "DELETE",

	Created:               "Created",
	Deleted:               "Deleted",
	Valid:                 "Valid",
	Changed:               "Changed",
	Content:                "Content",
	BadRequest:            "BadRequest",
	Unauthorized:          "Unauthorized",
	BadOption:             "BadOption",
	Forbidden:             "Forbidden",
	NotFound:              "NotFound",
	MethodNotAllowed:      "MethodNotAllowed",
	NotAcceptable:         "NotAcceptable",
	PreconditionFailed:    "PreconditionFailed",
	RequestEntityTooLarge: "RequestEntityTooLarge",
	UnsupportedMediaType:  "UnsupportedMediaType",
	InternalServerError:   "InternalServerError",
	NotImplemented:        "NotImplemented",
	BadGateway:            "BadGateway",
	ServiceUnavailable:    "ServiceUnavailable",
	GatewayTimeout:        "GatewayTimeout",
	ProxyingNotSupported:  "ProxyingNotSupported",
}

// Name returns the RFC mnemonic for well-known codes, falling back to the
// "c.dd" rendering for anything else.
func (c Code) Name() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return c.String()
}
