// Package config holds the engine's recognized configuration options (§6).
package config

import "time"

// Config mirrors GiterLab/go-coap's flat package-level settings
// (Debug/HealthMonitor in debug.go) generalized to a struct-of-fields, the
// natural Go rendering of the original Rust crate's kwap/src/config.rs.
type Config struct {
	// MaxRetransmit caps the number of Con retries (§6, default 4).
	MaxRetransmit int

	// AckTimeout is the initial retry interval (§6, default 2s).
	AckTimeout time.Duration

	// AckRandomFactor multiplies AckTimeout for the first retry interval of
	// an exchange, drawn uniformly from [1.0, AckRandomFactor) per
	// exchange (§9 Open Question, resolved per RFC 7252: only the initial
	// interval is randomized; subsequent intervals double from there).
	// Default 1.5.
	AckRandomFactor float64

	// ExchangeLifetime is the duplicate-detection window (§6, default 247s).
	ExchangeLifetime time.Duration

	// ProbingRate caps bytes/sec sent to an unresponsive peer (§6, default
	// 1024). Not enforced by the Core directly; exposed for a platform
	// binding's socket layer to rate-limit sends to peers with exhausted
	// exchanges.
	ProbingRate int

	// MsgBufferCapacity bounds the Response-Buffer (§6, default 64).
	MsgBufferCapacity int

	// RetryBufferCapacity bounds the Retry-Buffer (§6, default 64).
	RetryBufferCapacity int

	// MTU is the datagram buffer size (§6, default 1152).
	MTU int

	// DedupCapacity bounds the Duplicate-Suppressor's sliding set. Not an
	// RFC 7252 config name, but every other bounded buffer in §6 has a
	// capacity knob and the dedup set is no exception.
	DedupCapacity int
}

// Default returns the configuration with every value at its spec-mandated
// default (§6).
func Default() Config {
	return Config{
		MaxRetransmit:       4,
		AckTimeout:          2 * time.Second,
		AckRandomFactor:     1.5,
		ExchangeLifetime:    247 * time.Second,
		ProbingRate:         1024,
		MsgBufferCapacity:   64,
		RetryBufferCapacity: 64,
		MTU:                 1152,
		DedupCapacity:       64,
	}
}
