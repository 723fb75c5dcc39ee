package subdoc

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottle_CoalescesBurst(t *testing.T) {
	var runs atomic.Int32
	th := newThrottle(20*time.Millisecond, func() { runs.Add(1) })
	defer th.Stop()

	for i := 0; i < 5; i++ {
		th.Request()
	}
	assert.True(t, th.Pending())
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool { return !th.Pending() }, time.Second, 2*time.Millisecond)
	assert.EqualValues(t, 1, runs.Load())
}

func TestThrottle_OwedRunAfterCurrent(t *testing.T) {
	var runs atomic.Int32
	var active atomic.Int32
	var overlap atomic.Bool
	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	th := newThrottle(time.Millisecond, func() {
		if active.Add(1) > 1 {
			overlap.Store(true)
		}
		defer active.Add(-1)
		n := runs.Add(1)
		entered <- struct{}{}
		if n == 1 {
			<-release
		}
	})
	defer th.Stop()

	th.Request()
	<-entered
	th.Request()
	th.Request()
	close(release)

	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !th.Pending() }, time.Second, time.Millisecond)
	assert.EqualValues(t, 2, runs.Load())
	assert.False(t, overlap.Load())
}

func TestThrottle_FlushRunsPendingNow(t *testing.T) {
	var runs atomic.Int32
	th := newThrottle(time.Hour, func() { runs.Add(1) })
	defer th.Stop()

	th.Flush()
	assert.EqualValues(t, 0, runs.Load(), "nothing pending")

	th.Request()
	th.Flush()
	assert.EqualValues(t, 1, runs.Load())
	assert.False(t, th.Pending())
}

func TestThrottle_StopCancels(t *testing.T) {
	var runs atomic.Int32
	th := newThrottle(5*time.Millisecond, func() { runs.Add(1) })

	th.Request()
	th.Stop()
	th.Request()
	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 0, runs.Load())
	assert.False(t, th.Pending())

	th.Flush()
	assert.EqualValues(t, 0, runs.Load())
}
