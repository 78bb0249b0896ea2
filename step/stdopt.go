package step

import (
	"net"
	"strconv"
	"sync/atomic"

	"github.com/giterlab/toad/message"
	"github.com/giterlab/toad/socket"
)

// StandardOptions is the outermost Step (§4.8): it stamps the options and
// invariants RFC 7252 requires of every outbound message before anything
// inner (Retry-Buffer, Codec-IO) ever sees it, and validates the result.
// It has no opinion on inbound traffic, so PollReq/PollResp simply forward
// the inner Outcome.
type StandardOptions struct {
	nextToken uint64
}

// NewStandardOptions constructs the Standard-Option Injector.
func NewStandardOptions() *StandardOptions {
	return &StandardOptions{}
}

func (s *StandardOptions) Name() string { return "standard-options" }

func (s *StandardOptions) PollReq(snap *Snapshot, effects *Effects, inner Outcome) Outcome {
	return inner
}

func (s *StandardOptions) PollResp(snap *Snapshot, effects *Effects, token []byte, addr net.Addr, inner Outcome) Outcome {
	return inner
}

// BeforeMessageSent runs the §4.8 injections in order: Uri-Host and
// Uri-Port are stamped from the destination address when the message
// doesn't already set them, Size1/Size2 are stamped from the payload
// length when non-empty, a token is assigned to any outbound message
// still missing one (so the Response-Buffer, §4.7, can correlate it),
// and Max-Age defaults on responses that omit it (RFC 7252 §5.10.5's
// "default value applies" rule). It then runs Validate one last time so a
// malformed message never reaches Codec-IO. Every injection only fills a
// value the message doesn't already carry — user-set options are never
// overwritten.
func (s *StandardOptions) BeforeMessageSent(snap *Snapshot, effects *Effects, msg *socket.Addrd[*message.Message]) error {
	m := msg.Value
	if !m.IsEmpty() {
		s.injectHostPort(m, msg.Addr)
		s.injectSize(m)
		if len(m.Token) == 0 {
			m.Token = s.allocateToken()
		}
		if m.Code.Kind() == message.KindResponse && !m.Options.Has(message.MaxAge) {
			m.Options.SetMaxAge(60)
		}
	}
	return m.Validate()
}

// injectHostPort stamps Uri-Host/Uri-Port from the destination address
// when the message doesn't already carry them (§4.8).
func (s *StandardOptions) injectHostPort(m *message.Message, addr net.Addr) {
	if addr == nil {
		return
	}
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return
	}
	if host != "" && !m.Options.Has(message.URIHost) {
		m.Options.SetHost(host)
	}
	if !m.Options.Has(message.URIPort) {
		if p, err := strconv.ParseUint(port, 10, 16); err == nil {
			m.Options.SetPort(uint16(p))
		}
	}
}

// injectSize stamps Size1 (requests) or Size2 (responses) with the
// payload length when the payload is non-empty and the option isn't
// already set (§4.8).
func (s *StandardOptions) injectSize(m *message.Message) {
	if len(m.Payload) == 0 {
		return
	}
	switch m.Code.Kind() {
	case message.KindRequest:
		if !m.Options.Has(message.Size1) {
			m.Options.SetSize1(uint32(len(m.Payload)))
		}
	case message.KindResponse:
		if !m.Options.Has(message.Size2) {
			m.Options.SetSize2(uint32(len(m.Payload)))
		}
	}
}

func (s *StandardOptions) OnMessageSent(snap *Snapshot, msg *socket.Addrd[*message.Message]) error {
	return nil
}

// allocateToken hands out a small monotonically increasing token, enough
// entropy for correlation purposes within one Core's lifetime; it is not a
// security-sensitive nonce (RFC 7252 assigns that role to the message id
// and the DTLS layer below, out of scope here per spec.md's Non-goals).
func (s *StandardOptions) allocateToken() []byte {
	n := atomic.AddUint64(&s.nextToken, 1)
	return []byte{
		byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n),
	}
}

var _ Step = (*StandardOptions)(nil)
