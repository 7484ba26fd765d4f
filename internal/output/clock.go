package output

import (
	"sync"
	"time"
)

// Clock is the time source of an Output.
type Clock interface {
	Now() time.Time
	// Every calls fn every d until stop is called. A call already in
	// progress when stop returns is allowed to finish.
	Every(d time.Duration, fn func()) (stop func())
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Every runs fn on its own goroutine driven by a time.Ticker.
func (SystemClock) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				// stop may have raced with the tick
				select {
				case <-done:
					return
				default:
				}
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
