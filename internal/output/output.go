// Package output owns the channel array and flushes it to a driver at a fixed framerate.
package output

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"dmxparams/internal/dmx"
	"dmxparams/internal/logger"
)

// Driver brings the channel array to its destination. Send must not keep
// the pointer after it returns; the array is mutated in place between frames.
type Driver interface {
	Send(u *dmx.Universe)
}

// DriverFunc adapts a function to Driver.
type DriverFunc func(u *dmx.Universe)

func (f DriverFunc) Send(u *dmx.Universe) { f(u) }

// FrameFunc runs before a frame is sent and receives the time since Start.
type FrameFunc func(elapsed time.Duration)

// Option configures an Output.
type Option func(*Output)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(o *Output) { o.clock = c }
}

// Output encapsulates the DMX buffer and sends it to the driver at a fixed
// framerate. To run an animation, re-request the frame first thing in the
// callback:
//
//	var loop output.FrameFunc
//	loop = func(elapsed time.Duration) {
//		out.RequestFrame(loop)
//		// ... update the buffer
//	}
//	out.Start(30)
//	out.RequestFrame(loop)
//
// Animate does the same.
type Output struct {
	log    *logger.Log
	driver Driver
	clock  Clock

	universe dmx.Universe
	frameMu  sync.Mutex // held while the driver reads the universe
	tickMu   sync.Mutex // held for the whole of a frame, see Wait

	mu        sync.Mutex
	callbacks []FrameFunc
	running   bool
	startTime time.Time
	framerate float64
	stopTick  func()

	frames atomic.Uint64
}

// New creates a stopped Output with a zeroed universe.
func New(log *logger.Log, driver Driver, opts ...Option) *Output {
	o := &Output{
		log:    log.Module("output"),
		driver: driver,
		clock:  SystemClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Buffer returns the live universe. Writes are picked up by the next frame.
func (o *Output) Buffer() *dmx.Universe {
	return &o.universe
}

// Lock blocks frames from being sent. Goroutines other than the frame loop
// hold it while mutating the buffer.
func (o *Output) Lock() { o.frameMu.Lock() }

// Unlock releases Lock.
func (o *Output) Unlock() { o.frameMu.Unlock() }

// RequestFrame registers fn to run once before the next frame.
func (o *Output) RequestFrame(fn FrameFunc) {
	o.mu.Lock()
	o.callbacks = append(o.callbacks, fn)
	o.mu.Unlock()
}

// Animate runs fn before every frame until cancel is called.
func (o *Output) Animate(fn FrameFunc) (cancel func()) {
	var canceled atomic.Bool
	var loop FrameFunc
	loop = func(elapsed time.Duration) {
		if canceled.Load() {
			return
		}
		o.RequestFrame(loop)
		fn(elapsed)
	}
	o.RequestFrame(loop)

	return func() { canceled.Store(true) }
}

// Send hands the universe to the driver right away, whether running or not.
func (o *Output) Send() {
	o.frameMu.Lock()
	o.driver.Send(&o.universe)
	o.frameMu.Unlock()
	o.frames.Add(1)
}

// Start begins sending frames at framerate frames per second. It does
// nothing when already running or when framerate is not a positive finite
// number with an interval of at least a nanosecond.
func (o *Output) Start(framerate float64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running || !(framerate > 0) || math.IsInf(framerate, 0) {
		return
	}

	interval := time.Duration(float64(time.Second) / framerate)
	if interval <= 0 {
		o.log.Warnf("framerate %v is too high, not started", framerate)
		return
	}

	o.running = true
	o.framerate = framerate
	o.startTime = o.clock.Now()
	o.stopTick = o.clock.Every(interval, o.tick)

	o.log.Infof("started at %v fps (every %v)", framerate, interval)
}

// Stop ends the frame loop. It can always be started again; a frame that is
// already being processed still completes.
func (o *Output) Stop() {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return
	}
	stop := o.stopTick
	o.running = false
	o.framerate = 0
	o.stopTick = nil
	o.mu.Unlock()

	stop()
	o.log.Info("stopped")
}

// Wait blocks until a frame in progress, if any, has been sent. After Stop
// and Wait return, no callback is running and none will run until the next
// Start. It must not be called from a frame callback.
func (o *Output) Wait() {
	o.tickMu.Lock()
	defer o.tickMu.Unlock()
}

// Running reports whether the frame loop is active.
func (o *Output) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Framerate returns the active framerate, 0 when stopped.
func (o *Output) Framerate() float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.framerate
}

// Frames returns how many frames were handed to the driver.
func (o *Output) Frames() uint64 {
	return o.frames.Load()
}

func (o *Output) tick() {
	o.tickMu.Lock()
	defer o.tickMu.Unlock()

	o.mu.Lock()
	// a tick can race with Stop on the clock's goroutine
	if !o.running {
		o.mu.Unlock()
		return
	}
	elapsed := o.clock.Now().Sub(o.startTime)
	// swap before calling, so callbacks re-requesting a frame land in the next one
	callbacks := o.callbacks
	o.callbacks = nil
	o.mu.Unlock()

	for _, fn := range callbacks {
		fn(elapsed)
	}

	o.Send()
}
