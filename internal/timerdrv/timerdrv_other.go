//go:build !linux

package timerdrv

import (
	"sync"
	"sync/atomic"
	"time"
)

// portableDriver drives ticks off a time.Ticker, for platforms without a
// timerfd equivalent.
type portableDriver struct {
	interval time.Duration

	mu      sync.Mutex
	ticker  *time.Ticker
	stopped chan struct{}
	ticks   atomic.Uint64
}

// New returns the platform Driver for this build: a time.Ticker
// fallback.
func New(interval time.Duration) Driver {
	return &portableDriver{interval: interval}
}

func (d *portableDriver) Start(handler func()) error {
	d.mu.Lock()
	d.ticker = time.NewTicker(d.interval)
	d.stopped = make(chan struct{})
	ticker, stopped := d.ticker, d.stopped
	d.mu.Unlock()

	go func() {
		for {
			select {
			case <-stopped:
				return
			case <-ticker.C:
				d.ticks.Add(1)
				handler()
			}
		}
	}()
	return nil
}

func (d *portableDriver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped == nil {
		return
	}
	select {
	case <-d.stopped:
	default:
		close(d.stopped)
	}
	if d.ticker != nil {
		d.ticker.Stop()
	}
}

func (d *portableDriver) Ticks() uint64 {
	return d.ticks.Load()
}
