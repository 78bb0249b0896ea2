// Package cachekey computes the stable 64-bit cache-key fingerprint over a
// request's method and cache-key-affecting options (§4.3).
//
// The hash function is Blake2b configured for a 64-bit digest, via
// github.com/minio/blake2b-simd — grounded on distribution/distribution's
// go.mod, the only Blake2b dependency present anywhere in the retrieved
// reference pack. The spec only requires "any stable 64-bit hash, chosen
// once"; Blake2b is what it names explicitly.
package cachekey

import (
	"encoding/binary"

	"github.com/minio/blake2b-simd"

	"github.com/giterlab/toad/message"
)

// Key is the 64-bit cache-key fingerprint of a request.
type Key uint64

// Of computes the fingerprint of m: the code byte, then for each option in
// ascending number whose Number.CacheKeyAffecting() is true, each value's
// bytes in order. Payload is never hashed (§4.3).
//
// Two requests differing only in id, token, payload, or non-cache-key
// options produce equal keys (§8 property 2); two requests differing in
// method, Uri-Path, Uri-Query, or Accept produce different keys with
// overwhelming probability (§8 property 3).
func Of(m *message.Message) Key {
	h, err := blake2b.New(&blake2b.Config{Size: 8})
	if err != nil {
		// Size 8 is always a valid Blake2b digest size (1..64); this
		// cannot fail in practice.
		panic(err)
	}

	h.Write([]byte{byte(m.Code)})
	if m.Options != nil {
		for _, entry := range m.Options.Iter() {
			if !entry.Number.CacheKeyAffecting() {
				continue
			}
			for _, v := range entry.Values {
				h.Write(v)
			}
		}
	}

	sum := h.Sum(nil)
	return Key(binary.BigEndian.Uint64(sum))
}
