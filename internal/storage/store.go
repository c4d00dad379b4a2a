package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "steamwatch/pkg/logx"
)

// Store is the persistence API used by jobs and the command surface.
//
// List methods return rows in no particular order. Lookup methods return
// (nil, nil) / (zero, false, nil) for absent rows; errors are reserved for
// storage failures.
type Store interface {
	// bindings
	Bind(ctx context.Context, userID int64, steamID string) error
	SteamID(ctx context.Context, userID int64) (string, bool, error)
	Bindings(ctx context.Context) ([]Binding, error)

	// friend states
	FriendState(ctx context.Context, userID int64, friendID string) (*FriendState, error)
	UpsertFriendState(ctx context.Context, st FriendState) error

	// group notification preferences
	SetGroupPref(ctx context.Context, p GroupPref) error
	DeleteGroupPref(ctx context.Context, userID, groupID int64) error
	GroupPrefs(ctx context.Context, userID int64) ([]GroupPref, error)

	// game subscriptions
	Subscribe(ctx context.Context, s Subscription) error
	Unsubscribe(ctx context.Context, userID, appID int64) error
	Subscriptions(ctx context.Context, userID int64) ([]Subscription, error)
	NewsSubscriptions(ctx context.Context) ([]Subscription, error)
	DealSubscriptions(ctx context.Context) ([]Subscription, error)

	// market watches
	AddWatch(ctx context.Context, w MarketWatch) (int64, error)
	Watches(ctx context.Context) ([]MarketWatch, error)
	WatchesFor(ctx context.Context, userID int64) ([]MarketWatch, error)
	UpdateWatchPrice(ctx context.Context, id int64, price float64, at time.Time, alerted bool) error
	RemoveWatch(ctx context.Context, id, userID int64) error

	// news bookkeeping: a row's existence means the item was evaluated.
	NewsSent(ctx context.Context, appID int64, newsID string) (bool, error)
	MarkNewsSent(ctx context.Context, appID int64, newsID string) error

	// daily library snapshots
	SaveSnapshot(ctx context.Context, s LibrarySnapshot) error
	Snapshot(ctx context.Context, userID int64, date string) (*LibrarySnapshot, error)

	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
