package app

import (
	"testing"
)

type recorder struct {
	calls []string
}

type fakeSched struct{ rec *recorder }

func (f *fakeSched) Stop(wait bool) {
	if wait {
		f.rec.calls = append(f.rec.calls, "sched.drain")
	} else {
		f.rec.calls = append(f.rec.calls, "sched.abort")
	}
}

type fakeAdapter struct{ rec *recorder }

func (f *fakeAdapter) Stop() { f.rec.calls = append(f.rec.calls, "adapter.stop") }

func TestShutdownDrainsBeforeCancelling(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	cancel := func() { rec.calls = append(rec.calls, "cancel") }

	shutdown(true, &fakeSched{rec}, &fakeAdapter{rec}, cancel)

	want := []string{"sched.drain", "cancel", "adapter.stop"}
	if len(rec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", rec.calls, want)
		}
	}
}

func TestShutdownWithoutDrainAbortsLast(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	cancel := func() { rec.calls = append(rec.calls, "cancel") }

	shutdown(false, &fakeSched{rec}, &fakeAdapter{rec}, cancel)

	want := []string{"cancel", "adapter.stop", "sched.abort"}
	if len(rec.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Fatalf("calls = %v, want %v", rec.calls, want)
		}
	}
}

func TestShutdownNilCancel(t *testing.T) {
	t.Parallel()
	rec := &recorder{}
	shutdown(true, &fakeSched{rec}, &fakeAdapter{rec}, nil)
	if len(rec.calls) != 2 || rec.calls[0] != "sched.drain" || rec.calls[1] != "adapter.stop" {
		t.Fatalf("calls = %v", rec.calls)
	}
}
