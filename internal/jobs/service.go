// Package jobs holds the periodic monitoring passes: friend presence,
// game news, discounts and market prices, and the daily library snapshot.
// Each pass is a plain func(ctx) error registered with the scheduler.
package jobs

import (
	"context"
	"time"

	"steamwatch/internal/config"
	"steamwatch/internal/notify"
	"steamwatch/internal/steam"
	"steamwatch/internal/storage"
	logx "steamwatch/pkg/logx"
)

// steamAPI is the slice of the Steam client the jobs need. Narrowed here
// so tests can substitute a fake.
type steamAPI interface {
	GetFriendList(ctx context.Context, steamID string) ([]steam.Friend, error)
	GetPlayerSummaries(ctx context.Context, steamIDs []string) ([]steam.PlayerSummary, error)
	GetOwnedGames(ctx context.Context, steamID string) ([]steam.OwnedGame, error)
	GetNewsForApp(ctx context.Context, appID int64, count int) ([]steam.NewsItem, error)
	GetAppDetails(ctx context.Context, appID int64) (steam.AppDetails, error)
	GetMarketPrice(ctx context.Context, appID int64, marketHashName string) (steam.PriceOverview, error)
	GetFeaturedGames(ctx context.Context) ([]steam.Special, error)
}

type Service struct {
	store    storage.Store
	api      steamAPI
	notify   *notify.Service
	settings func() config.MonitorSettings
	log      logx.Logger
	now      func() time.Time
}

func New(store storage.Store, api steamAPI, n *notify.Service, settings func() config.MonitorSettings, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		store:    store,
		api:      api,
		notify:   n,
		settings: settings,
		log:      log,
		now:      time.Now,
	}
}
