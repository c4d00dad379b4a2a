package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Config controls the scheduler service.
type Config struct {
	Workers        int
	DefaultTimeout time.Duration
	HistorySize    int
	Timezone       string // IANA TZ, e.g. "Asia/Shanghai"
}

// TriggerKind tags how a job is driven: fixed interval or fixed wall clock.
type TriggerKind int

const (
	TriggerInterval TriggerKind = iota
	TriggerDaily
)

// runState is shared between cron invocations of one definition so a tick
// can see whether the previous invocation is still in flight.
type runState struct {
	mu       sync.Mutex
	inflight bool
}

// tryAcquire marks the definition in flight. It returns false when a prior
// invocation is still queued or running; the caller must then skip.
func (r *runState) tryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inflight {
		return false
	}
	r.inflight = true
	return true
}

func (r *runState) release() {
	r.mu.Lock()
	r.inflight = false
	r.mu.Unlock()
}

type HistoryItem struct {
	Name     string
	Started  time.Time
	Duration time.Duration
	Error    string
}

type task struct {
	name    string
	timeout time.Duration
	run     func(ctx context.Context) error
	state   *runState
}

type jobDef struct {
	name    string
	kind    TriggerKind
	spec    string // cron spec or @every
	timeout time.Duration
	job     func(ctx context.Context) error
	entryID cron.EntryID
	state   *runState
}

type JobInfo struct {
	Name string
	Spec string
	Next time.Time
	Prev time.Time
}
