package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialScheduleMatchesWorkedExample(t *testing.T) {
	// §8: initial=100ms. The initial send at 0ms is the caller's, outside the
	// timer; retries k=1,2,3 are ready at 100ms, 300ms and 700ms. With max=4
	// the fourth retry is ready at 1500ms, then the timer is Exhausted.
	fake := NewFake(time.Unix(0, 0))
	timer := NewTimer(fake, Exponential{Initial: 100 * time.Millisecond}, fake.now, 4)

	// Nothing is due at 0ms: the first retransmission waits 100ms.
	res, err := timer.Poll()
	require.NoError(t, err)
	assert.Equal(t, WouldBlock, res)

	// Not yet 100ms elapsed for k=1.
	fake.Advance(50 * time.Millisecond)
	res, err = timer.Poll()
	require.NoError(t, err)
	assert.Equal(t, WouldBlock, res)

	fake.Advance(50 * time.Millisecond) // total 100ms
	res, err = timer.Poll()
	require.NoError(t, err)
	assert.Equal(t, Retry, res)

	fake.Advance(199 * time.Millisecond) // total 299ms, k=2 needs 300ms
	res, err = timer.Poll()
	require.NoError(t, err)
	assert.Equal(t, WouldBlock, res)

	fake.Advance(1 * time.Millisecond) // total 300ms
	res, err = timer.Poll()
	require.NoError(t, err)
	assert.Equal(t, Retry, res)

	fake.Advance(399 * time.Millisecond) // total 699ms, k=3 needs 700ms
	res, err = timer.Poll()
	require.NoError(t, err)
	assert.Equal(t, WouldBlock, res)

	fake.Advance(1 * time.Millisecond) // total 700ms
	res, err = timer.Poll()
	require.NoError(t, err)
	assert.Equal(t, Retry, res)

	fake.Advance(799 * time.Millisecond) // total 1499ms, k=4 needs 1500ms
	res, err = timer.Poll()
	require.NoError(t, err)
	assert.Equal(t, WouldBlock, res)

	fake.Advance(1 * time.Millisecond) // total 1500ms
	res, err = timer.Poll()
	require.NoError(t, err)
	assert.Equal(t, Retry, res)

	// All 4 retries taken; timer is now exhausted regardless of elapsed time.
	fake.Advance(10 * time.Second)
	res, err = timer.Poll()
	require.NoError(t, err)
	assert.Equal(t, Exhausted, res)
}

func TestFixedDelaySchedule(t *testing.T) {
	fake := NewFake(time.Unix(0, 0))
	timer := NewTimer(fake, FixedDelay{Interval: 200 * time.Millisecond}, fake.now, 2)

	// k=1 ready at 200ms; at t=0 nothing is due yet.
	res, _ := timer.Poll()
	assert.Equal(t, WouldBlock, res)

	fake.Advance(200 * time.Millisecond)
	res, _ = timer.Poll()
	assert.Equal(t, Retry, res)

	fake.Advance(200 * time.Millisecond) // total 400ms, k=2 ready at 400ms
	res, _ = timer.Poll()
	assert.Equal(t, Retry, res)

	fake.Advance(time.Second)
	res, _ = timer.Poll()
	assert.Equal(t, Exhausted, res)
}

func TestTimerExhaustsAtMax(t *testing.T) {
	fake := NewFake(time.Unix(0, 0))
	timer := NewTimer(fake, Exponential{Initial: time.Millisecond}, fake.now, 1)
	fake.Advance(time.Millisecond) // k=1 ready at 1ms
	res, _ := timer.Poll()
	assert.Equal(t, Retry, res)
	res, _ = timer.Poll()
	assert.Equal(t, Exhausted, res)
}
