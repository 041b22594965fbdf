package ksync

import (
	"sync"

	"github.com/geekos-go/kernel/errno"
	"github.com/geekos-go/kernel/sched"
)

// SemaphoreRegistry is the process-wide named-semaphore table: at most one
// semaphore per name, ids allocated monotonically from 1. A real sync.Mutex
// guards the maps themselves (unlike Semaphore's own fields, the registry
// is reachable from Create/Destroy calls issued by different threads in
// quick succession, and map mutation isn't safe to leave to the
// single-active-thread invariant alone once reaping is involved).
type SemaphoreRegistry struct {
	s *sched.Scheduler

	mu     sync.Mutex
	byName map[string]*Semaphore
	byID   map[int]*Semaphore
	nextID int
}

// NewSemaphoreRegistry returns an empty registry bound to scheduler s.
func NewSemaphoreRegistry(s *sched.Scheduler) *SemaphoreRegistry {
	return &SemaphoreRegistry{
		s:      s,
		byName: make(map[string]*Semaphore),
		byID:   make(map[int]*Semaphore),
		nextID: 1,
	}
}

// Create returns the id of the semaphore named name, creating it with
// initial count if it doesn't already exist, and registers caller as an
// authorized user either way.
func (r *SemaphoreRegistry) Create(name string, count int, caller *sched.Thread) (int, error) {
	if len(name) == 0 || len(name) > MaxSemaphoreName {
		return 0, errno.InvalidArg
	}
	if count < 0 {
		return 0, errno.InvalidArg
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if sem, ok := r.byName[name]; ok {
		if err := sem.register(caller); err != nil {
			return 0, err
		}
		return sem.id, nil
	}

	sem := &Semaphore{
		s:          r.s,
		id:         r.nextID,
		name:       name,
		count:      count,
		registered: []*sched.Thread{caller},
		waitQ:      sched.NewThreadQueue(),
	}
	r.nextID++
	r.byName[name] = sem
	r.byID[sem.id] = sem
	return sem.id, nil
}

func (r *SemaphoreRegistry) lookup(sid int) *Semaphore {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[sid]
}

// P performs P(sid) on behalf of caller.
func (r *SemaphoreRegistry) P(sid int, caller *sched.Thread) error {
	sem := r.lookup(sid)
	if sem == nil {
		return errno.NotFound
	}
	return sem.p(caller)
}

// V performs V(sid) on behalf of caller.
func (r *SemaphoreRegistry) V(sid int, caller *sched.Thread) error {
	sem := r.lookup(sid)
	if sem == nil {
		return errno.NotFound
	}
	return sem.v(caller)
}

// Destroy removes caller's registration from sid; once the last registrant
// leaves, the semaphore is dropped from the registry entirely.
func (r *SemaphoreRegistry) Destroy(sid int, caller *sched.Thread) error {
	sem := r.lookup(sid)
	if sem == nil {
		return errno.NotFound
	}
	empty, err := sem.destroy(caller)
	if err != nil {
		return err
	}
	if empty {
		r.mu.Lock()
		delete(r.byName, sem.name)
		delete(r.byID, sem.id)
		r.mu.Unlock()
	}
	return nil
}

// Lookup returns the semaphore registered under sid, or nil.
func (r *SemaphoreRegistry) Lookup(sid int) *Semaphore {
	return r.lookup(sid)
}
