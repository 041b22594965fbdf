package ksync

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/geekos-go/kernel/sched"
)

func TestSemaphorePingPongAlternates(t *testing.T) {
	s := newTestScheduler()
	reg := NewSemaphoreRegistry(s)

	var owner *sched.Thread
	owned := make(chan struct{})
	var pingID, pongID int

	s.StartKernelThread(func(self *sched.Thread, _ any) {
		owner = self
		var err error
		pingID, err = reg.Create("ping", 1, self)
		require.NoError(t, err)
		pongID, err = reg.Create("pong", 0, self)
		require.NoError(t, err)
		close(owned)
	}, nil, sched.Priority(), true)
	<-owned

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup
	wg.Add(2)

	s.StartKernelThread(func(self *sched.Thread, _ any) {
		_, err := reg.Create("ping", 1, self)
		require.NoError(t, err)
		_, err = reg.Create("pong", 0, self)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			require.NoError(t, reg.P(pongID, self))
			mu.Lock()
			order = append(order, "A")
			mu.Unlock()
			require.NoError(t, reg.V(pingID, self))
		}
		wg.Done()
	}, nil, sched.Priority(), true)

	s.StartKernelThread(func(self *sched.Thread, _ any) {
		_, err := reg.Create("ping", 1, self)
		require.NoError(t, err)
		_, err = reg.Create("pong", 0, self)
		require.NoError(t, err)
		for i := 0; i < 5; i++ {
			require.NoError(t, reg.P(pingID, self))
			mu.Lock()
			order = append(order, "B")
			mu.Unlock()
			require.NoError(t, reg.V(pongID, self))
		}
		wg.Done()
	}, nil, sched.Priority(), true)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("ping/pong never finished")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, 10)
	for i := 1; i < len(order); i++ {
		require.NotEqual(t, order[i-1], order[i], "strict alternation expected at index %d", i)
	}
	_ = owner
}

func TestSemaphoreAccessControl(t *testing.T) {
	s := newTestScheduler()
	reg := NewSemaphoreRegistry(s)

	var sid int
	var aSelf *sched.Thread
	setup := make(chan struct{})
	s.StartKernelThread(func(self *sched.Thread, _ any) {
		aSelf = self
		var err error
		sid, err = reg.Create("S", 1, self)
		require.NoError(t, err)
		close(setup)
	}, nil, sched.Priority(), true)
	<-setup

	done := make(chan struct{})
	s.StartKernelThread(func(self *sched.Thread, _ any) {
		err := reg.P(sid, self)
		require.Error(t, err)
		close(done)
	}, nil, sched.Priority(), true)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("unauthorized P never returned")
	}

	aDone := make(chan struct{})
	s.StartKernelThread(func(*sched.Thread, any) {
		require.NoError(t, reg.P(sid, aSelf))
		close(aDone)
	}, nil, sched.Priority(), true)

	select {
	case <-aDone:
	case <-time.After(2 * time.Second):
		t.Fatal("owner's P never succeeded")
	}
}
