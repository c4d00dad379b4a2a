// Package app assembles the daemon: config, logging, storage, the Steam
// client, the Telegram adapter and the scheduled monitoring jobs.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"steamwatch/internal/commands"
	"steamwatch/internal/config"
	"steamwatch/internal/jobs"
	"steamwatch/internal/notify"
	"steamwatch/internal/scheduler"
	"steamwatch/internal/steam"
	"steamwatch/internal/storage"
	"steamwatch/internal/transport/telegram"
	logx "steamwatch/pkg/logx"
)

// Job names are stable identifiers: re-registration on config reload
// replaces the trigger instead of duplicating it.
const (
	jobFriends = "friends.monitor"
	jobNews    = "news.check"
	jobDeals   = "deals.check"
	jobStats   = "library.stats"
)

type App struct {
	cfgMgr *config.Manager
	logs   *logx.Service
	log    logx.Logger

	store    storage.Store
	client   *steam.Client
	adapter  *telegram.Adapter
	notifier *notify.Service
	jobs     *jobs.Service
	sched    *scheduler.Service

	mu       sync.RWMutex
	settings config.MonitorSettings

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(configPath string) (*App, error) {
	a := &App{}

	a.cfgMgr = config.NewManager(configPath)
	cfg, err := a.cfgMgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// Validate() already proved this parses.
	a.settings, _ = cfg.Monitor.Settings()

	a.logs, a.log = logx.New(logCfg(cfg))
	a.cfgMgr.SetLogger(a.log.With(logx.String("comp", "config")))

	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	a.store, err = storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, a.log.With(logx.String("comp", "storage")))
	if err != nil {
		a.logs.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	reqTimeout, _ := config.ParseDurationOrDefault("steam.request_timeout", cfg.Steam.RequestTimeout, 10*time.Second)
	a.client = steam.New(steam.Config{
		APIKey:  cfg.Steam.APIKey,
		Timeout: reqTimeout,
	}, a.log.With(logx.String("comp", "steam")))

	cmds := commands.New(a.store, a.client, a.log.With(logx.String("comp", "commands")))

	pollTimeout, _ := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	a.adapter, err = telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, cmds, a.location, a.log.With(logx.String("comp", "telegram")))
	if err != nil {
		a.store.Close()
		a.logs.Close()
		return nil, fmt.Errorf("telegram: %w", err)
	}

	a.notifier = notify.New(a.adapter, a.log.With(logx.String("comp", "notify")))
	a.notifier.SetLocation(a.settings.Location)

	a.jobs = jobs.New(a.store, a.client, a.notifier, a.monitorSettings,
		a.log.With(logx.String("comp", "jobs")))

	a.sched = scheduler.New(scheduler.Config{
		Workers:        2,
		DefaultTimeout: 4 * time.Minute,
		Timezone:       cfg.Monitor.Timezone,
	}, a.log.With(logx.String("comp", "scheduler")))

	return a, nil
}

func (a *App) monitorSettings() config.MonitorSettings {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

func (a *App) location() *time.Location {
	return a.monitorSettings().Location
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.registerJobs(a.monitorSettings()); err != nil {
		cancel()
		return err
	}
	a.sched.Start(runCtx)
	a.adapter.Start()
	a.watchConfig(runCtx)

	a.log.Info("started")
	return nil
}

// Stop shuts the daemon down. When wait is true, in-flight job
// invocations are allowed to finish first.
func (a *App) Stop(wait bool) {
	shutdown(wait, a.sched, a.adapter, a.cancel)
	a.wg.Wait()
	a.client.Close()
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
	a.log.Info("stopped")
	a.logs.Close()
}

type jobRunner interface{ Stop(wait bool) }

type poller interface{ Stop() }

// shutdown orders the teardown. A draining stop halts the scheduler
// before cancelling anything, so in-flight passes keep a live context
// and a live outbound adapter until they finish. Only then does the
// context cancel (stopping the config watcher) and the adapter stop.
func shutdown(wait bool, sched jobRunner, adapter poller, cancel context.CancelFunc) {
	if wait {
		sched.Stop(true)
	}
	if cancel != nil {
		cancel()
	}
	adapter.Stop()
	if !wait {
		sched.Stop(false)
	}
}

func (a *App) registerJobs(set config.MonitorSettings) error {
	if err := a.sched.AddInterval(jobFriends, set.CheckInterval, 0, a.jobs.MonitorFriends); err != nil {
		return err
	}
	if err := a.sched.AddInterval(jobNews, set.NewsCheckInterval, 0, a.jobs.CheckNews); err != nil {
		return err
	}
	if err := a.sched.AddInterval(jobDeals, set.DiscountCheckInterval, 0, a.jobs.CheckDeals); err != nil {
		return err
	}
	return a.sched.AddDaily(jobStats, set.StatsAt, 10*time.Minute, a.jobs.GenerateLibraryStats)
}

// watchConfig hot-reloads the parts of the config that can change at
// runtime: logging and the monitor knobs. Steam/Telegram credentials and
// the storage driver need a restart.
func (a *App) watchConfig(ctx context.Context) {
	updates := a.cfgMgr.Subscribe(1)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgMgr.Watch(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("config watch failed", logx.Err(err))
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer a.cfgMgr.Unsubscribe(updates)
		for {
			select {
			case <-ctx.Done():
				return
			case cfg := <-updates:
				if cfg == nil {
					continue
				}
				a.applyReload(cfg)
			}
		}
	}()
}

func (a *App) applyReload(cfg *config.Config) {
	a.logs.Apply(logCfg(cfg))

	set, err := cfg.Monitor.Settings()
	if err != nil {
		// Validate() runs before publish, so this should not happen.
		a.log.Warn("reload rejected", logx.Err(err))
		return
	}
	a.mu.Lock()
	a.settings = set
	a.mu.Unlock()
	a.notifier.SetLocation(set.Location)

	if err := a.registerJobs(set); err != nil {
		a.log.Warn("job re-registration failed", logx.Err(err))
		return
	}
	a.log.Info("config reloaded",
		logx.Duration("check_interval", set.CheckInterval),
		logx.Duration("news_check_interval", set.NewsCheckInterval),
		logx.Duration("discount_check_interval", set.DiscountCheckInterval),
		logx.String("stats_at", set.StatsAt))
}

func logCfg(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}
