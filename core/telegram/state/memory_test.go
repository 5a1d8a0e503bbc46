package state

import (
	"sync"
	"testing"
	"time"
)

type draft struct{ Title string }

func TestMemorySessionLifecycle(t *testing.T) {
	m := NewMemory[draft]()
	if m.InProgress(1) {
		t.Fatal("new user must be idle")
	}
	m.Set(1, Session[draft]{State: "add_lab.title", Draft: draft{Title: "x"}})
	if !m.InProgress(1) || m.Get(1).Draft.Title != "x" {
		t.Fatalf("unexpected session: %+v", m.Get(1))
	}
	prev, ok := m.Clear(1)
	if !ok || prev.State != "add_lab.title" {
		t.Fatalf("Clear returned %+v, %v", prev, ok)
	}
	if got := m.Get(1); got.Active() || got.Draft.Title != "" {
		t.Fatalf("cleared session leaked draft: %+v", got)
	}
	m.Set(2, Session[draft]{State: StateIdle, Draft: draft{Title: "y"}})
	if m.Len() != 0 {
		t.Fatal("idle sessions must not be stored")
	}
}

func TestMemoryLockSerializesPerUser(t *testing.T) {
	m := NewMemory[draft]()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.Lock(7)
			defer unlock()
			mu.Lock()
			active++
			if active > maxSeen {
				maxSeen = active
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()
	if maxSeen != 1 {
		t.Fatalf("max concurrent holders = %d, want 1", maxSeen)
	}
	if len(m.locks) != 0 {
		t.Fatalf("lock table not released: %d entries", len(m.locks))
	}
}

func TestMemoryLockIndependentUsers(t *testing.T) {
	m := NewMemory[draft]()
	unlockA := m.Lock(1)
	done := make(chan struct{})
	go func() {
		unlockB := m.Lock(2)
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock for user 2 blocked by user 1")
	}
	unlockA()
}
