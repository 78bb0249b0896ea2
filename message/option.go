package message

import (
	"encoding/binary"
	"sort"
	"strconv"
	"strings"
)

// Number identifies a CoAP option (§4.2). The wire encoding only ever deals
// in option numbers and opaque byte values; everything else (uint vs.
// string coercion, repeatable-vs-not) is metadata looked up by Number.
type Number uint16

// Well-known option numbers (RFC 7252 §12.2, plus the RFC 7959 Block
// numbers the spec reserves without implementing Block-wise transfer).
const (
	IfMatch       Number = 1
	URIHost       Number = 3
	ETag          Number = 4
	IfNoneMatch   Number = 5
	URIPort       Number = 7
	LocationPath  Number = 8
	URIPath       Number = 11
	ContentFormat Number = 12
	MaxAge        Number = 14
	URIQuery      Number = 15
	Accept        Number = 17
	LocationQuery Number = 20
	Block2        Number = 23 // reserved, RFC 7959, not implemented (Non-goal)
	Block1        Number = 27 // reserved, RFC 7959, not implemented (Non-goal)
	Size2         Number = 28 // reserved, RFC 7959, not implemented (Non-goal)
	ProxyURI      Number = 35
	ProxyScheme   Number = 39
	Size1         Number = 60
)

// valueFormat mirrors GiterLab/go-coap's optionDef.valueFormat: it tells the
// convenience accessors how to coerce the opaque byte value.
type valueFormat uint8

const (
	formatOpaque valueFormat = iota
	formatString
	formatUint
	formatEmpty
)

type optionDef struct {
	repeatable   bool
	format       valueFormat
	minLen       int
	maxLen       int
	noCacheKey   bool
}

// defs is the known-option registry, adapted from GiterLab/go-coap's
// optionDefs table but keyed by the spec's repeatable/format/cache-key
// metadata rather than just value shape.
var defs = map[Number]optionDef{
	IfMatch:       {repeatable: true, format: formatOpaque, minLen: 0, maxLen: 8},
	URIHost:       {repeatable: false, format: formatString, minLen: 1, maxLen: 255},
	ETag:          {repeatable: true, format: formatOpaque, minLen: 1, maxLen: 8},
	IfNoneMatch:   {repeatable: false, format: formatEmpty, minLen: 0, maxLen: 0},
	URIPort:       {repeatable: false, format: formatUint, minLen: 0, maxLen: 2},
	LocationPath:  {repeatable: true, format: formatString, minLen: 0, maxLen: 255},
	URIPath:       {repeatable: true, format: formatString, minLen: 0, maxLen: 255},
	ContentFormat: {repeatable: false, format: formatUint, minLen: 0, maxLen: 2},
	MaxAge:        {repeatable: false, format: formatUint, minLen: 0, maxLen: 4},
	URIQuery:      {repeatable: true, format: formatString, minLen: 0, maxLen: 255},
	Accept:        {repeatable: false, format: formatUint, minLen: 0, maxLen: 2},
	LocationQuery: {repeatable: true, format: formatString, minLen: 0, maxLen: 255},
	Block2:        {repeatable: false, format: formatUint, minLen: 0, maxLen: 3, noCacheKey: true},
	Block1:        {repeatable: false, format: formatUint, minLen: 0, maxLen: 3, noCacheKey: true},
	Size2:         {repeatable: false, format: formatUint, minLen: 0, maxLen: 4, noCacheKey: true},
	ProxyURI:      {repeatable: false, format: formatString, minLen: 1, maxLen: 1034},
	ProxyScheme:   {repeatable: false, format: formatString, minLen: 1, maxLen: 255},
	Size1:         {repeatable: false, format: formatUint, minLen: 0, maxLen: 4, noCacheKey: true},
}

func def(n Number) optionDef {
	if d, ok := defs[n]; ok {
		return d
	}
	// Unknown option numbers default to repeatable opaque values per
	// RFC 7252 §5.4.1 (skip-if-unrecognized applies to elective options
	// only; critical unrecognized options are the caller's problem).
	return optionDef{repeatable: true, format: formatOpaque, minLen: 0, maxLen: 65804}
}

// IsCritical reports whether a Number is "critical" (odd) as opposed to
// "elective" (even), per §3's bit-parity rule. This is distinct from
// cache-key participation, see CacheKeyAffecting.
func (n Number) IsCritical() bool { return n%2 == 1 }

// IsElective is the complement of IsCritical.
func (n Number) IsElective() bool { return !n.IsCritical() }

// Repeatable reports whether a Number may carry more than one value on a
// single message (§4.2).
func (n Number) Repeatable() bool { return def(n).repeatable }

// CacheKeyAffecting reports whether this option number participates in the
// cache-key fingerprint (§4.3). Per the spec's Open Question resolution
// (§9), this defers to RFC 7252 §5.4.6: every option participates except
// those explicitly registered NoCacheKey (Size1, Size2, and the reserved
// Block1/Block2 numbers, none of which identify the resource being
// requested).
func (n Number) CacheKeyAffecting() bool { return !def(n).noCacheKey }

// Map is the ordered option map described in §4.2: number -> non-empty
// sequence of opaque values, iterated in ascending-number order (required
// by the wire format's delta encoding).
type Map struct {
	values map[Number][][]byte
	order  []Number // numbers with at least one value, kept sorted lazily
}

// NewMap constructs an empty option map.
func NewMap() *Map {
	return &Map{values: make(map[Number][][]byte)}
}

// Set replaces all values for number with the single value v.
func (m *Map) Set(number Number, v []byte) {
	if _, present := m.values[number]; !present {
		m.order = append(m.order, number)
	}
	m.values[number] = [][]byte{v}
}

// Add appends a value for number, for repeatable options. If number is not
// repeatable, Add behaves like Set (last write wins), matching the
// "non-repeatable option has exactly one value" invariant of §4.2.
func (m *Map) Add(number Number, v []byte) {
	if !number.Repeatable() {
		m.Set(number, v)
		return
	}
	if _, present := m.values[number]; !present {
		m.order = append(m.order, number)
	}
	m.values[number] = append(m.values[number], v)
}

// Get returns all values currently set for number, in insertion order, or
// nil if none are set.
func (m *Map) Get(number Number) [][]byte {
	return m.values[number]
}

// GetOne returns the first value for number, or nil if unset. Convenience
// for non-repeatable options.
func (m *Map) GetOne(number Number) []byte {
	vs := m.values[number]
	if len(vs) == 0 {
		return nil
	}
	return vs[0]
}

// Has reports whether number has at least one value set.
func (m *Map) Has(number Number) bool {
	return len(m.values[number]) > 0
}

// Remove deletes all values for number.
func (m *Map) Remove(number Number) {
	delete(m.values, number)
	for i, n := range m.order {
		if n == number {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Len returns the count of distinct option numbers with values set.
func (m *Map) Len() int { return len(m.order) }

// Entry is one (number, values) pair yielded by Iter.
type Entry struct {
	Number Number
	Values [][]byte
}

// Iter returns all entries in ascending-number order, the order the wire
// codec's delta encoding requires.
func (m *Map) Iter() []Entry {
	numbers := append([]Number(nil), m.order...)
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	entries := make([]Entry, 0, len(numbers))
	for _, n := range numbers {
		entries = append(entries, Entry{Number: n, Values: m.values[n]})
	}
	return entries
}

// Clone returns a deep copy of the map.
func (m *Map) Clone() *Map {
	out := NewMap()
	for _, e := range m.Iter() {
		for _, v := range e.Values {
			cp := append([]byte(nil), v...)
			out.Add(e.Number, cp)
		}
	}
	return out
}

// --- integer / string coercion, adapted from GiterLab/go-coap's
// encodeInt/decodeInt (message.go) ---

func encodeUint(v uint32) []byte {
	switch {
	case v == 0:
		return nil
	case v < 256:
		return []byte{byte(v)}
	case v < 65536:
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, uint16(v))
		return b
	case v < 16777216:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, v)
		return b[1:]
	default:
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, v)
		return b
	}
}

func decodeUint(b []byte) uint32 {
	var tmp [4]byte
	copy(tmp[4-len(b):], b)
	return binary.BigEndian.Uint32(tmp[:])
}

// --- convenience accessors (§4.2) ---

// Host returns the Uri-Host option value, or "" if unset.
func (m *Map) Host() string { return string(m.GetOne(URIHost)) }

// SetHost sets the Uri-Host option.
func (m *Map) SetHost(host string) { m.Set(URIHost, []byte(host)) }

// Port returns the Uri-Port option value, or 0 if unset.
func (m *Map) Port() uint32 { return decodeUint(m.GetOne(URIPort)) }

// SetPort sets the Uri-Port option.
func (m *Map) SetPort(port uint16) { m.Set(URIPort, encodeUint(uint32(port))) }

// Path returns the Uri-Path segments joined by '/'.
func (m *Map) Path() string {
	segs := m.Get(URIPath)
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = string(s)
	}
	return strings.Join(parts, "/")
}

// SetPath replaces the Uri-Path option with one option per '/'-separated
// segment, matching GiterLab/go-coap's SetPathString.
func (m *Map) SetPath(path string) {
	m.Remove(URIPath)
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return
	}
	for _, seg := range strings.Split(path, "/") {
		m.Add(URIPath, []byte(seg))
	}
}

// ContentFormat returns the Content-Format option value.
func (m *Map) ContentFormat() (uint32, bool) {
	if !m.Has(ContentFormat) {
		return 0, false
	}
	return decodeUint(m.GetOne(ContentFormat)), true
}

// SetContentFormat sets the Content-Format option.
func (m *Map) SetContentFormat(mt uint32) { m.Set(ContentFormat, encodeUint(mt)) }

// Accept returns the Accept option value.
func (m *Map) Accept() (uint32, bool) {
	if !m.Has(Accept) {
		return 0, false
	}
	return decodeUint(m.GetOne(Accept)), true
}

// SetAccept sets the Accept option.
func (m *Map) SetAccept(mt uint32) { m.Set(Accept, encodeUint(mt)) }

// ETags returns all ETag option values.
func (m *Map) ETags() [][]byte { return m.Get(ETag) }

// AddETag appends an ETag option value.
func (m *Map) AddETag(tag []byte) { m.Add(ETag, tag) }

// IfMatch returns all If-Match option values.
func (m *Map) IfMatch() [][]byte { return m.Get(IfMatch) }

// IfNoneMatch reports whether the If-None-Match option is set.
func (m *Map) IfNoneMatch() bool { return m.Has(IfNoneMatch) }

// SetIfNoneMatch sets the (empty-valued) If-None-Match option.
func (m *Map) SetIfNoneMatch() { m.Set(IfNoneMatch, []byte{}) }

// ProxyURI returns the Proxy-Uri option value.
func (m *Map) ProxyURI() string { return string(m.GetOne(ProxyURI)) }

// SetProxyURI sets the Proxy-Uri option.
func (m *Map) SetProxyURI(u string) { m.Set(ProxyURI, []byte(u)) }

// ProxyScheme returns the Proxy-Scheme option value.
func (m *Map) ProxyScheme() string { return string(m.GetOne(ProxyScheme)) }

// SetProxyScheme sets the Proxy-Scheme option.
func (m *Map) SetProxyScheme(s string) { m.Set(ProxyScheme, []byte(s)) }

// MaxAge returns the Max-Age option value, defaulting to 60 per RFC 7252.
func (m *Map) MaxAge() uint32 {
	if !m.Has(MaxAge) {
		return 60
	}
	return decodeUint(m.GetOne(MaxAge))
}

// SetMaxAge sets the Max-Age option.
func (m *Map) SetMaxAge(seconds uint32) { m.Set(MaxAge, encodeUint(seconds)) }

// Size1 returns the Size1 option value (request body size estimate).
func (m *Map) Size1() (uint32, bool) {
	if !m.Has(Size1) {
		return 0, false
	}
	return decodeUint(m.GetOne(Size1)), true
}

// SetSize1 sets the Size1 option.
func (m *Map) SetSize1(n uint32) { m.Set(Size1, encodeUint(n)) }

// Size2 returns the Size2 option value (response body size estimate).
func (m *Map) Size2() (uint32, bool) {
	if !m.Has(Size2) {
		return 0, false
	}
	return decodeUint(m.GetOne(Size2)), true
}

// SetSize2 sets the Size2 option.
func (m *Map) SetSize2(n uint32) { m.Set(Size2, encodeUint(n)) }

// LocationPath returns the Location-Path segments joined by '/'.
func (m *Map) LocationPath() string {
	segs := m.Get(LocationPath)
	parts := make([]string, len(segs))
	for i, s := range segs {
		parts[i] = string(s)
	}
	return strings.Join(parts, "/")
}

// String renders the map for debug logging as number=raw-value-bytes
// pairs in ascending order, e.g. "3=example.com,11=a,11=b".
func (m *Map) String() string {
	var b strings.Builder
	for i, e := range m.Iter() {
		for j, v := range e.Values {
			if i > 0 || j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Itoa(int(e.Number)))
			b.WriteByte('=')
			b.Write(v)
		}
	}
	return b.String()
}
