//go:build linux

package timerdrv

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// linuxDriver drives ticks off a timerfd, the same family of syscalls
// eventloop's Linux wake pipe uses (_examples/joeycumines-go-utilpkg/eventloop/wakeup_linux.go),
// generalized from a one-shot wake eventfd to a periodic timerfd.
type linuxDriver struct {
	interval time.Duration

	mu      sync.Mutex
	fd      int
	stopped chan struct{}
	ticks   atomic.Uint64
}

// New returns the platform Driver for this build: timerfd_create on
// Linux.
func New(interval time.Duration) Driver {
	return &linuxDriver{interval: interval}
}

func (d *linuxDriver) Start(handler func()) error {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, 0)
	if err != nil {
		return err
	}
	spec := unix.ItimerSpec{
		Interval: unix.NsecToTimespec(d.interval.Nanoseconds()),
		Value:    unix.NsecToTimespec(d.interval.Nanoseconds()),
	}
	if err := unix.TimerfdSettime(fd, 0, &spec, nil); err != nil {
		_ = unix.Close(fd)
		return err
	}

	d.mu.Lock()
	d.fd = fd
	d.stopped = make(chan struct{})
	stopped := d.stopped
	d.mu.Unlock()

	go func() {
		buf := make([]byte, 8)
		for {
			n, err := unix.Read(fd, buf)
			if err != nil || n != 8 {
				select {
				case <-stopped:
					return
				default:
					continue
				}
			}
			select {
			case <-stopped:
				return
			default:
			}
			d.ticks.Add(1)
			handler()
		}
	}()
	return nil
}

func (d *linuxDriver) Stop() {
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
	if d.fd != 0 {
		_ = unix.Close(d.fd)
		d.fd = 0
	}
}

func (d *linuxDriver) Ticks() uint64 {
	return d.ticks.Load()
}
