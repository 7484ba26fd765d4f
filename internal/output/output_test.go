package output

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmxparams/internal/dmx"
	"dmxparams/internal/logger"
)

// fakeClock fires Every callbacks synchronously from Advance.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	every   time.Duration
	next    time.Time
	fn      func()
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Every(d time.Duration, fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{every: d, next: c.now.Add(d), fn: fn}
	c.tickers = append(c.tickers, t)
	return func() {
		c.mu.Lock()
		t.stopped = true
		c.mu.Unlock()
	}
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	end := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTicker
		for _, t := range c.tickers {
			if t.stopped || t.next.After(end) {
				continue
			}
			if next == nil || t.next.Before(next.next) {
				next = t
			}
		}
		if next == nil {
			c.now = end
			c.mu.Unlock()
			return
		}
		c.now = next.next
		next.next = next.next.Add(next.every)
		c.mu.Unlock()

		next.fn()
	}
}

// recordingDriver remembers every universe it was handed.
type recordingDriver struct {
	mu    sync.Mutex
	sent  []*dmx.Universe
	first []byte // channel 0 at each send
}

func (d *recordingDriver) Send(u *dmx.Universe) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, u)
	d.first = append(d.first, u[0])
}

func (d *recordingDriver) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

func newTestOutput() (*Output, *recordingDriver, *fakeClock) {
	driver := &recordingDriver{}
	clock := newFakeClock()
	return New(logger.NewNop(), driver, WithClock(clock)), driver, clock
}

func TestNewOutputBuffer(t *testing.T) {
	out, _, _ := newTestOutput()

	buf := out.Buffer()
	require.Len(t, *buf, 512)
	assert.Equal(t, dmx.Universe{}, *buf)
	assert.Same(t, buf, out.Buffer())
	assert.False(t, out.Running())
}

func TestStartStop(t *testing.T) {
	out, driver, clock := newTestOutput()

	out.Start(10)
	assert.True(t, out.Running())
	assert.Equal(t, 10.0, out.Framerate())
	clock.Advance(1001 * time.Millisecond)
	assert.Equal(t, 10, driver.count())

	out.Stop()
	assert.False(t, out.Running())
	clock.Advance(1001 * time.Millisecond)
	assert.Equal(t, 10, driver.count())

	out.Start(20)
	clock.Advance(501 * time.Millisecond)
	assert.Equal(t, 20, driver.count())
	assert.Equal(t, uint64(20), out.Frames())

	for _, u := range driver.sent {
		assert.Same(t, out.Buffer(), u)
	}
}

func TestStartWithoutFramerate(t *testing.T) {
	out, driver, clock := newTestOutput()

	for _, rate := range []float64{0, -5, math.NaN(), math.Inf(1), math.Inf(-1), 1e12} {
		out.Start(rate)
		clock.Advance(time.Second)

		assert.Zero(t, driver.count(), "framerate %v", rate)
		assert.False(t, out.Running(), "framerate %v", rate)
		assert.Zero(t, out.Framerate(), "framerate %v", rate)
	}
}

func TestStartTwiceKeepsRate(t *testing.T) {
	out, driver, clock := newTestOutput()

	out.Start(10)
	out.Start(10)
	out.Start(50)
	clock.Advance(1001 * time.Millisecond)

	assert.Equal(t, 10, driver.count())
	assert.Equal(t, 10.0, out.Framerate())
}

func TestStopWhenStopped(t *testing.T) {
	out, _, _ := newTestOutput()

	assert.NotPanics(t, func() {
		out.Stop()
		out.Stop()
	})
}

func TestSendWhileStopped(t *testing.T) {
	out, driver, _ := newTestOutput()

	out.Buffer()[0] = 42
	out.Send()

	require.Equal(t, 1, driver.count())
	assert.Equal(t, byte(42), driver.first[0])
}

func TestRequestFrameLoop(t *testing.T) {
	out, _, clock := newTestOutput()

	var calls []time.Duration
	var loop FrameFunc
	loop = func(elapsed time.Duration) {
		out.RequestFrame(loop)
		calls = append(calls, elapsed)
	}

	out.RequestFrame(loop)
	out.Start(10)

	clock.Advance(100 * time.Millisecond)
	require.Len(t, calls, 1)
	assert.Equal(t, 100*time.Millisecond, calls[0])

	clock.Advance(900 * time.Millisecond)
	require.Len(t, calls, 10)
	for i, elapsed := range calls {
		assert.Equal(t, time.Duration(i+1)*100*time.Millisecond, elapsed)
	}
}

func TestRequestFrameRunsOnceInOrderBeforeSend(t *testing.T) {
	out, driver, clock := newTestOutput()

	var order []string
	out.RequestFrame(func(time.Duration) {
		order = append(order, "a")
		out.Buffer()[0] = 7
	})
	out.RequestFrame(func(time.Duration) { order = append(order, "b") })

	out.Start(10)
	clock.Advance(300 * time.Millisecond)

	assert.Equal(t, []string{"a", "b"}, order)
	require.Equal(t, 3, driver.count())
	assert.Equal(t, byte(7), driver.first[0])
}

func TestAnimateCancel(t *testing.T) {
	out, _, clock := newTestOutput()

	var n int
	cancel := out.Animate(func(time.Duration) { n++ })
	out.Start(10)

	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, 5, n)

	cancel()
	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, 5, n)
}

func TestStopFromCallbackFinishesFrame(t *testing.T) {
	out, driver, clock := newTestOutput()

	out.RequestFrame(func(time.Duration) { out.Stop() })
	out.Start(10)
	clock.Advance(time.Second)

	assert.Equal(t, 1, driver.count())
	assert.False(t, out.Running())
}

func TestWaitForFrameInProgress(t *testing.T) {
	out, driver, clock := newTestOutput()

	entered := make(chan struct{})
	release := make(chan struct{})
	out.RequestFrame(func(time.Duration) {
		close(entered)
		<-release
	})
	out.Start(10)
	go clock.Advance(100 * time.Millisecond)

	<-entered
	out.Stop()

	waited := make(chan struct{})
	go func() {
		out.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned while a frame was in progress")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after the frame was sent")
	}
	assert.Equal(t, 1, driver.count())
}

func TestTickAfterStopIsDropped(t *testing.T) {
	out, driver, _ := newTestOutput()

	called := false
	out.RequestFrame(func(time.Duration) { called = true })
	out.tick()

	assert.False(t, called)
	assert.Zero(t, driver.count())
}

func TestSystemClock(t *testing.T) {
	var sent atomic.Int32
	out := New(logger.NewNop(), DriverFunc(func(*dmx.Universe) { sent.Add(1) }))

	out.Start(200)
	require.Eventually(t, func() bool { return sent.Load() >= 3 }, time.Second, 5*time.Millisecond)
	out.Stop()
	out.Wait()

	n := sent.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, n, sent.Load())
}
