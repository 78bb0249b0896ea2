package step

import "errors"

// ErrRetryBufferFull is returned by before_message_sent when the
// Retry-Buffer is already tracking its configured capacity of in-flight
// Confirmable exchanges (§4.7's "overflow policy = reject new
// before_message_sent"). The new send is rejected outright rather than
// evicting an active exchange's retransmission guarantee.
var ErrRetryBufferFull = errors.New("toad/step: retry buffer is full")

// ErrMessageNeverAcked is surfaced to poll_resp when a Confirmable
// exchange exhausts its retransmission schedule without a matching Ack or
// Reset ever arriving.
var ErrMessageNeverAcked = errors.New("toad/step: confirmable message exhausted retransmissions without being acked")

// ErrReset is surfaced to poll_resp when the peer resets the exchange the
// caller is awaiting a response for.
var ErrReset = errors.New("toad/step: peer reset the exchange")

// ErrResponseBufferFull names the Response-Buffer's overflow condition
// (§4.7): unlike the Retry-Buffer it doesn't reject new entries, it
// compacts by evicting the oldest unconsumed response and logs this error
// rather than the silent eviction a plain LRU would give.
var ErrResponseBufferFull = errors.New("toad/step: response buffer full, dropping oldest unconsumed response")
