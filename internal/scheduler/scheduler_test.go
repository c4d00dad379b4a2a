package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	logx "steamwatch/pkg/logx"
)

func TestRunStateOverlapGuard(t *testing.T) {
	t.Parallel()
	var st runState
	if !st.tryAcquire() {
		t.Fatal("first acquire must succeed")
	}
	if st.tryAcquire() {
		t.Fatal("second acquire while in flight must fail")
	}
	st.release()
	if !st.tryAcquire() {
		t.Fatal("acquire after release must succeed")
	}
}

func TestSkipWhileRunning(t *testing.T) {
	t.Parallel()
	s := New(Config{Workers: 2}, logx.Nop())

	running := make(chan struct{})
	release := make(chan struct{})
	var runs int32
	err := s.AddInterval("slow", time.Hour, 0, func(ctx context.Context) error {
		atomic.AddInt32(&runs, 1)
		close(running)
		<-release
		return nil
	})
	if err != nil {
		t.Fatalf("AddInterval: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(false)

	// fire the first tick by hand through the shared run state, the same
	// path the cron callback takes
	d := &s.defs[0]
	if !d.state.tryAcquire() {
		t.Fatal("acquire")
	}
	s.enqueue(task{name: d.name, timeout: d.timeout, run: d.job, state: d.state})
	<-running

	// while the first invocation runs, further ticks must be skipped
	if d.state.tryAcquire() {
		t.Fatal("tick during a running invocation must be skipped")
	}
	close(release)

	deadline := time.After(2 * time.Second)
	for !d.state.tryAcquire() {
		select {
		case <-deadline:
			t.Fatal("run state never released after completion")
		case <-time.After(10 * time.Millisecond):
		}
	}
	d.state.release()
	if n := atomic.LoadInt32(&runs); n != 1 {
		t.Fatalf("expected one run, got %d", n)
	}
}

func TestDifferentJobsRunConcurrently(t *testing.T) {
	t.Parallel()
	s := New(Config{Workers: 2}, logx.Nop())

	bothRunning := make(chan struct{})
	release := make(chan struct{})
	var active int32
	body := func(ctx context.Context) error {
		if atomic.AddInt32(&active, 1) == 2 {
			close(bothRunning)
		}
		<-release
		return nil
	}
	if err := s.AddInterval("a", time.Hour, 0, body); err != nil {
		t.Fatalf("AddInterval: %v", err)
	}
	if err := s.AddInterval("b", time.Hour, 0, body); err != nil {
		t.Fatalf("AddInterval: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	defer s.Stop(false)

	for i := range s.defs {
		d := &s.defs[i]
		if !d.state.tryAcquire() {
			t.Fatal("acquire")
		}
		s.enqueue(task{name: d.name, timeout: d.timeout, run: d.job, state: d.state})
	}

	select {
	case <-bothRunning:
	case <-time.After(2 * time.Second):
		t.Fatal("two distinct jobs should run side by side")
	}
	close(release)
}

func TestAddUpsertsByName(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())

	noop := func(ctx context.Context) error { return nil }
	if err := s.AddInterval("job", time.Minute, 0, noop); err != nil {
		t.Fatalf("AddInterval: %v", err)
	}
	if err := s.AddInterval("job", 5*time.Minute, 0, noop); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	jobs := s.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("expected one definition, got %d", len(jobs))
	}
	if jobs[0].Spec != "@every 5m0s" {
		t.Fatalf("re-registration did not replace the schedule: %q", jobs[0].Spec)
	}
}

func TestAddDailySpec(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	noop := func(ctx context.Context) error { return nil }

	if err := s.AddDaily("stats", "00:00", 0, noop); err != nil {
		t.Fatalf("AddDaily: %v", err)
	}
	if err := s.AddDaily("evening", "18:30", 0, noop); err != nil {
		t.Fatalf("AddDaily: %v", err)
	}
	jobs := s.Jobs()
	if jobs[0].Spec != "0 0 * * *" || jobs[1].Spec != "30 18 * * *" {
		t.Fatalf("unexpected specs: %q %q", jobs[0].Spec, jobs[1].Spec)
	}

	if err := s.AddDaily("bad", "24:00", 0, noop); err == nil {
		t.Fatal("invalid wall clock must be rejected")
	}
}

func TestJobPanicIsContained(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	st := &runState{}
	if !st.tryAcquire() {
		t.Fatal("acquire")
	}
	s.execOne(context.Background(), task{
		name:  "boom",
		run:   func(ctx context.Context) error { panic("kaboom") },
		state: st,
	})

	hist := s.History()
	if len(hist) != 1 || hist[0].Error == "" {
		t.Fatalf("panic should surface as a failed run: %+v", hist)
	}
	if !st.tryAcquire() {
		t.Fatal("run state must be released after a panic")
	}
}

func TestJobTimeout(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	st := &runState{}
	if !st.tryAcquire() {
		t.Fatal("acquire")
	}
	s.execOne(context.Background(), task{
		name:    "slow",
		timeout: 20 * time.Millisecond,
		run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
		state: st,
	})

	hist := s.History()
	if len(hist) != 1 || hist[0].Error != context.DeadlineExceeded.Error() {
		t.Fatalf("expected deadline error in history: %+v", hist)
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop())
	noop := func(ctx context.Context) error { return nil }

	if err := s.AddInterval("", time.Minute, 0, noop); err == nil {
		t.Fatal("empty name must be rejected")
	}
	if err := s.AddInterval("x", 0, 0, noop); err == nil {
		t.Fatal("zero interval must be rejected")
	}
	if err := s.AddInterval("x", time.Minute, 0, nil); err == nil {
		t.Fatal("nil job must be rejected")
	}
}
