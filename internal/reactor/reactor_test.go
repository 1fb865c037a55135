package reactor

import (
	"testing"
)

// fakeScheduler runs deferred work immediately and records every call.
type fakeScheduler struct {
	active   []bool // successive IsActive answers; the last one repeats
	deferred int
	started  int
	stopped  int
}

func (f *fakeScheduler) IsActive() bool {
	if len(f.active) == 0 {
		return false
	}
	v := f.active[0]
	if len(f.active) > 1 {
		f.active = f.active[1:]
	}
	return v
}

func (f *fakeScheduler) RunDeferred(fn func()) {
	f.deferred++
	fn()
}

func (f *fakeScheduler) Start(onStart func()) {
	f.started++
	onStart()
}

func (f *fakeScheduler) Stop() { f.stopped++ }

func TestInThread_Running(t *testing.T) {
	s := &fakeScheduler{active: []bool{true}}
	counter := 0

	InThread(s, false, func() { counter++ })

	if counter != 1 {
		t.Errorf("counter = %d, want 1", counter)
	}
	if s.deferred != 1 {
		t.Errorf("deferred calls = %d, want 1", s.deferred)
	}
	if s.started != 0 || s.stopped != 0 {
		t.Errorf("start/stop = %d/%d, want 0/0", s.started, s.stopped)
	}
}

func TestInThread_RunningIgnoresAutostart(t *testing.T) {
	s := &fakeScheduler{active: []bool{true}}

	InThread(s, true, func() {})

	if s.deferred != 1 || s.started != 0 || s.stopped != 0 {
		t.Errorf("deferred/start/stop = %d/%d/%d, want 1/0/0", s.deferred, s.started, s.stopped)
	}
}

func TestInThread_NotRunning(t *testing.T) {
	s := &fakeScheduler{active: []bool{false}}
	counter := 0

	InThread(s, false, func() { counter++ })

	if counter != 1 {
		t.Errorf("counter = %d, want 1", counter)
	}
	if s.deferred != 0 || s.started != 0 || s.stopped != 0 {
		t.Errorf("deferred/start/stop = %d/%d/%d, want 0/0/0", s.deferred, s.started, s.stopped)
	}
}

func TestInThread_Autostart(t *testing.T) {
	s := &fakeScheduler{active: []bool{false, true}}
	counter := 0

	InThread(s, true, func() { counter++ })

	if counter != 1 {
		t.Errorf("counter = %d, want 1", counter)
	}
	if s.started != 1 {
		t.Errorf("start calls = %d, want 1", s.started)
	}
	if s.deferred != 1 {
		t.Errorf("deferred calls = %d, want 1", s.deferred)
	}
	if s.stopped != 1 {
		t.Errorf("stop calls = %d, want 1", s.stopped)
	}
}

func TestInThread_SynchronousPanicPropagates(t *testing.T) {
	s := &fakeScheduler{}

	defer func() {
		if r := recover(); r != "boom" {
			t.Errorf("recover() = %v, want %q", r, "boom")
		}
	}()
	InThread(s, false, func() { panic("boom") })
	t.Error("InThread returned normally, want panic")
}
