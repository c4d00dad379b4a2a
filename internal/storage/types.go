package storage

import (
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrNotFound = errors.New("not found")
)

// Config configures storage.
//
// Driver values:
//   - "sqlite" (default): SQLite database file
//   - "memory": volatile in-process store (tests, throwaway runs)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Binding associates a chat user with one Steam account.
// Rebinding overwrites; bindings are never auto-deleted.
type Binding struct {
	UserID  int64
	SteamID string
}

// FriendState is the last observed presence of one friend, per watching
// user. Absence of a row means "unknown baseline", not offline.
type FriendState struct {
	UserID   int64
	FriendID string
	State    int    // steam.PersonaState numeric value
	Game     string // current in-game title, empty when not playing
}

// GroupPref is one user's notification preference for one destination group.
// Set replaces the whole record; fields are never merged.
type GroupPref struct {
	UserID   int64    `json:"-"`
	GroupID  int64    `json:"-"`
	OnlyGame bool     `json:"only_game,omitempty"`
	Friends  []string `json:"friends,omitempty"` // allow-list of friend steam ids; empty means all
	Quiet    []string `json:"quiet,omitempty"`   // quiet spans, "HH:MM-HH:MM", may wrap midnight
}

// Subscription is one user's interest in one game's news and/or deals.
type Subscription struct {
	UserID int64
	AppID  int64
	News   bool
	Deals  bool
}

// MarketWatch monitors one market item's price against a target.
// LastPrice is nil until the first successful price observation.
// Alerted latches after a target alert fires and is cleared on any upward
// price move, re-arming the trigger for the next drop under target.
type MarketWatch struct {
	ID           int64
	UserID       int64
	AppID        int64
	HashName     string
	DesiredPrice float64
	LastPrice    *float64
	LastCheck    time.Time
	Alerted      bool
}

// LibraryGame is one entry of a snapshot's top list. Hours, not minutes.
type LibraryGame struct {
	AppID int64   `json:"appid"`
	Name  string  `json:"name"`
	Hours float64 `json:"hours"`
}

// LibrarySnapshot is the per-user daily library statistic. Date is a
// "2006-01-02" string in the scheduler timezone; one row per user per day,
// overwritten when regenerated.
type LibrarySnapshot struct {
	UserID     int64         `json:"-"`
	Date       string        `json:"-"`
	TotalGames int           `json:"total_games"`
	TotalHours float64       `json:"total_playtime"`
	DailyHours float64       `json:"daily_playtime"`
	TopGames   []LibraryGame `json:"games"`
}
