// Package scheduler drives the periodic polling jobs. Jobs are plain
// functions registered against interval or daily wall-clock triggers;
// a job type never overlaps itself, while different job types run freely
// side by side.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"steamwatch/internal/config"
	logx "steamwatch/pkg/logx"
)

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location

	parser cron.Parser
	c      *cron.Cron
	defs   []jobDef

	queue    chan task
	stopCh   chan struct{}
	runCtx   context.Context
	cancel   context.CancelFunc
	workerWG sync.WaitGroup

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		log:    log,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.runCtx, s.cancel = context.WithCancel(ctx)

	workers := s.cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	s.queue = make(chan task, 64)

	loc := s.loadLocationLocked()
	s.loc = loc
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))

	// Re-register definitions added before Start().
	for i := range s.defs {
		if err := s.addEntryLocked(&s.defs[i]); err != nil {
			s.log.Error("job register failed", logx.String("job", s.defs[i].name), logx.Err(err))
		}
	}

	for i := 0; i < workers; i++ {
		s.workerWG.Add(1)
		go func() {
			defer s.workerWG.Done()
			s.worker(s.runCtx, s.stopCh, s.queue)
		}()
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.Int("workers", workers), logx.String("tz", loc.String()))
}

// Stop halts all future triggers immediately. When wait is true it blocks
// until in-flight job bodies finish naturally; otherwise they are abandoned
// (state writes are idempotent upserts, so a half-finished tick is safe).
func (s *Service) Stop(wait bool) {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	s.stopCh = nil
	if s.c != nil {
		s.c.Stop()
		s.c = nil
	}
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	close(stopCh)
	if wait {
		s.workerWG.Wait()
	} else if cancel != nil {
		cancel()
	}
	s.log.Info("scheduler stopped", logx.Bool("waited", wait))
}

// AddInterval registers (or replaces, by name) a fixed-interval job.
func (s *Service) AddInterval(name string, every time.Duration, timeout time.Duration, job func(ctx context.Context) error) error {
	if every <= 0 {
		return fmt.Errorf("job %q: interval must be > 0", name)
	}
	return s.add(jobDef{
		name:    name,
		kind:    TriggerInterval,
		spec:    fmt.Sprintf("@every %s", every.String()),
		timeout: s.resolveTimeout(timeout),
		job:     job,
		state:   &runState{},
	})
}

// AddDaily registers (or replaces, by name) a job fired once per day at
// HH:MM in the scheduler timezone.
func (s *Service) AddDaily(name string, atHHMM string, timeout time.Duration, job func(ctx context.Context) error) error {
	h, m, err := config.ParseHHMM(atHHMM)
	if err != nil {
		return fmt.Errorf("job %q: %w", name, err)
	}
	return s.add(jobDef{
		name:    name,
		kind:    TriggerDaily,
		spec:    fmt.Sprintf("%d %d * * *", m, h),
		timeout: s.resolveTimeout(timeout),
		job:     job,
		state:   &runState{},
	})
}

func (s *Service) add(d jobDef) error {
	if strings.TrimSpace(d.name) == "" {
		return errors.New("job name required")
	}
	if d.job == nil {
		return fmt.Errorf("job %q: func required", d.name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Upsert by name so re-registration on config reload cannot duplicate.
	s.removeLocked(d.name)
	s.defs = append(s.defs, d)
	if s.c == nil {
		// Not started yet; registered when Start() runs.
		return nil
	}
	if err := s.addEntryLocked(&s.defs[len(s.defs)-1]); err != nil {
		return err
	}
	s.log.Debug("job registered", logx.String("job", d.name), logx.String("spec", d.spec), logx.Duration("timeout", d.timeout))
	return nil
}

func (s *Service) addEntryLocked(d *jobDef) error {
	eid, err := s.c.AddFunc(d.spec, func() {
		// Same-type overlap is forbidden: skip the tick while a previous
		// invocation is still queued or running.
		if !d.state.tryAcquire() {
			s.log.Debug("job skipped (previous run still in flight)", logx.String("job", d.name))
			return
		}
		s.enqueue(task{name: d.name, timeout: d.timeout, run: d.job, state: d.state})
	})
	if err == nil {
		d.entryID = eid
	}
	return err
}

func (s *Service) removeLocked(name string) {
	n := 0
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
}

func (s *Service) enqueue(t task) {
	s.mu.Lock()
	q := s.queue
	s.mu.Unlock()
	if q == nil {
		t.state.release()
		return
	}
	select {
	case q <- t:
	default:
		t.state.release()
		s.log.Warn("scheduler queue full; dropping tick", logx.String("job", t.name))
	}
}

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue <-chan task) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t := <-queue:
			s.execOne(ctx, t)
		}
	}
}

func (s *Service) execOne(ctx context.Context, t task) {
	defer t.state.release()
	start := time.Now()

	runCtx := ctx
	var cancel context.CancelFunc
	if t.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, t.timeout)
	}
	err := s.runGuarded(runCtx, t)
	if cancel != nil {
		cancel()
	}

	dur := time.Since(start)
	item := HistoryItem{Name: t.name, Started: start, Duration: dur}
	if err != nil {
		item.Error = err.Error()
		s.log.Warn("job failed", logx.String("job", t.name), logx.Err(err), logx.Duration("dur", dur))
	} else if dur >= 750*time.Millisecond {
		s.log.Info("job completed", logx.String("job", t.name), logx.Duration("dur", dur))
	} else {
		s.log.Debug("job completed", logx.String("job", t.name), logx.Duration("dur", dur))
	}

	s.hmu.Lock()
	defer s.hmu.Unlock()
	s.history = append(s.history, item)
	historySize := s.cfg.HistorySize
	if historySize <= 0 {
		historySize = 200
	}
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
}

// runGuarded is the outermost boundary of a job invocation: nothing that
// happens inside a job body may take down the scheduler.
func (s *Service) runGuarded(ctx context.Context, t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return t.run(ctx)
}

// History returns a copy of the recent run history, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

// Jobs lists the registered definitions with their next/prev fire times.
func (s *Service) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.defs))
	for _, d := range s.defs {
		info := JobInfo{Name: d.name, Spec: d.spec}
		if s.c != nil && d.entryID != 0 {
			e := s.c.Entry(d.entryID)
			info.Next = e.Next
			info.Prev = e.Prev
		}
		out = append(out, info)
	}
	return out
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, falling back to Local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) resolveTimeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return s.cfg.DefaultTimeout
}
