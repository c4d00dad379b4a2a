package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "steamwatch/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	// Basic pragmas.
	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- bindings ----

func (s *sqliteStore) Bind(ctx context.Context, userID int64, steamID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO bindings(user_id, steam_id) VALUES(?,?)
		 ON CONFLICT(user_id) DO UPDATE SET steam_id=excluded.steam_id`,
		userID, steamID,
	)
	return err
}

func (s *sqliteStore) SteamID(ctx context.Context, userID int64) (string, bool, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT steam_id FROM bindings WHERE user_id=?`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *sqliteStore) Bindings(ctx context.Context) ([]Binding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, steam_id FROM bindings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Binding
	for rows.Next() {
		var b Binding
		if err := rows.Scan(&b.UserID, &b.SteamID); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ---- friend states ----

func (s *sqliteStore) FriendState(ctx context.Context, userID int64, friendID string) (*FriendState, error) {
	st := FriendState{UserID: userID, FriendID: friendID}
	err := s.db.QueryRowContext(ctx,
		`SELECT state, game FROM friend_states WHERE user_id=? AND friend_id=?`,
		userID, friendID,
	).Scan(&st.State, &st.Game)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *sqliteStore) UpsertFriendState(ctx context.Context, st FriendState) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO friend_states(user_id, friend_id, state, game) VALUES(?,?,?,?)
		 ON CONFLICT(user_id, friend_id) DO UPDATE SET state=excluded.state, game=excluded.game`,
		st.UserID, st.FriendID, st.State, st.Game,
	)
	return err
}

// ---- group prefs ----

func (s *sqliteStore) SetGroupPref(ctx context.Context, p GroupPref) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO group_prefs(user_id, group_id, prefs) VALUES(?,?,?)
		 ON CONFLICT(user_id, group_id) DO UPDATE SET prefs=excluded.prefs`,
		p.UserID, p.GroupID, string(b),
	)
	return err
}

func (s *sqliteStore) DeleteGroupPref(ctx context.Context, userID, groupID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM group_prefs WHERE user_id=? AND group_id=?`, userID, groupID)
	return err
}

func (s *sqliteStore) GroupPrefs(ctx context.Context, userID int64) ([]GroupPref, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_id, prefs FROM group_prefs WHERE user_id=?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GroupPref
	for rows.Next() {
		var groupID int64
		var raw string
		if err := rows.Scan(&groupID, &raw); err != nil {
			return nil, err
		}
		var p GroupPref
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			// A malformed row must not hide the others.
			s.log.Warn("dropping malformed group pref", logx.Int64("user_id", userID), logx.Int64("group_id", groupID), logx.Err(err))
			continue
		}
		p.UserID = userID
		p.GroupID = groupID
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---- game subscriptions ----

func (s *sqliteStore) Subscribe(ctx context.Context, sub Subscription) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO game_subscriptions(user_id, app_id, news, deals) VALUES(?,?,?,?)
		 ON CONFLICT(user_id, app_id) DO UPDATE SET news=excluded.news, deals=excluded.deals`,
		sub.UserID, sub.AppID, boolInt(sub.News), boolInt(sub.Deals),
	)
	return err
}

func (s *sqliteStore) Unsubscribe(ctx context.Context, userID, appID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM game_subscriptions WHERE user_id=? AND app_id=?`, userID, appID)
	return err
}

func (s *sqliteStore) Subscriptions(ctx context.Context, userID int64) ([]Subscription, error) {
	return s.querySubscriptions(ctx,
		`SELECT user_id, app_id, news, deals FROM game_subscriptions WHERE user_id=?`, userID)
}

func (s *sqliteStore) NewsSubscriptions(ctx context.Context) ([]Subscription, error) {
	return s.querySubscriptions(ctx,
		`SELECT user_id, app_id, news, deals FROM game_subscriptions WHERE news=1`)
}

func (s *sqliteStore) DealSubscriptions(ctx context.Context) ([]Subscription, error) {
	return s.querySubscriptions(ctx,
		`SELECT user_id, app_id, news, deals FROM game_subscriptions WHERE deals=1`)
}

func (s *sqliteStore) querySubscriptions(ctx context.Context, q string, args ...any) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		var sub Subscription
		var news, deals int
		if err := rows.Scan(&sub.UserID, &sub.AppID, &news, &deals); err != nil {
			return nil, err
		}
		sub.News = news != 0
		sub.Deals = deals != 0
		out = append(out, sub)
	}
	return out, rows.Err()
}

// ---- market watches ----

func (s *sqliteStore) AddWatch(ctx context.Context, w MarketWatch) (int64, error) {
	var last any
	if w.LastPrice != nil {
		last = *w.LastPrice
	}
	at := w.LastCheck
	if at.IsZero() {
		at = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO market_watches(user_id, app_id, hash_name, desired_price, last_price, last_check, alerted)
		 VALUES(?,?,?,?,?,?,?)`,
		w.UserID, w.AppID, w.HashName, w.DesiredPrice, last, at.Unix(), boolInt(w.Alerted),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *sqliteStore) Watches(ctx context.Context) ([]MarketWatch, error) {
	return s.queryWatches(ctx,
		`SELECT id, user_id, app_id, hash_name, desired_price, last_price, last_check, alerted FROM market_watches`)
}

func (s *sqliteStore) WatchesFor(ctx context.Context, userID int64) ([]MarketWatch, error) {
	return s.queryWatches(ctx,
		`SELECT id, user_id, app_id, hash_name, desired_price, last_price, last_check, alerted FROM market_watches WHERE user_id=?`, userID)
}

func (s *sqliteStore) queryWatches(ctx context.Context, q string, args ...any) ([]MarketWatch, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MarketWatch
	for rows.Next() {
		var w MarketWatch
		var last sql.NullFloat64
		var check int64
		var alerted int
		if err := rows.Scan(&w.ID, &w.UserID, &w.AppID, &w.HashName, &w.DesiredPrice, &last, &check, &alerted); err != nil {
			return nil, err
		}
		if last.Valid {
			v := last.Float64
			w.LastPrice = &v
		}
		w.LastCheck = time.Unix(check, 0)
		w.Alerted = alerted != 0
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *sqliteStore) UpdateWatchPrice(ctx context.Context, id int64, price float64, at time.Time, alerted bool) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE market_watches SET last_price=?, last_check=?, alerted=? WHERE id=?`,
		price, at.Unix(), boolInt(alerted), id,
	)
	return err
}

func (s *sqliteStore) RemoveWatch(ctx context.Context, id, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM market_watches WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- news bookkeeping ----

func (s *sqliteStore) NewsSent(ctx context.Context, appID int64, newsID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM news_seen WHERE app_id=? AND news_id=?`, appID, newsID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) MarkNewsSent(ctx context.Context, appID int64, newsID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO news_seen(app_id, news_id, seen_at) VALUES(?,?,?)
		 ON CONFLICT(app_id, news_id) DO NOTHING`,
		appID, newsID, time.Now().Unix(),
	)
	return err
}

// ---- library snapshots ----

func (s *sqliteStore) SaveSnapshot(ctx context.Context, snap LibrarySnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO library_snapshots(user_id, date, stats) VALUES(?,?,?)
		 ON CONFLICT(user_id, date) DO UPDATE SET stats=excluded.stats`,
		snap.UserID, snap.Date, string(b),
	)
	return err
}

func (s *sqliteStore) Snapshot(ctx context.Context, userID int64, date string) (*LibrarySnapshot, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT stats FROM library_snapshots WHERE user_id=? AND date=?`, userID, date).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap LibrarySnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, err
	}
	snap.UserID = userID
	snap.Date = date
	return &snap, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
