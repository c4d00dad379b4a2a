package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memoryStore is a volatile Store for tests and throwaway runs.
// It mirrors the sqlite store's row semantics exactly.
type memoryStore struct {
	mu sync.Mutex

	bindings  map[int64]string
	friends   map[friendKey]FriendState
	prefs     map[prefKey]GroupPref
	subs      map[subKey]Subscription
	watches   map[int64]MarketWatch
	watchSeq  int64
	newsSeen  map[newsKey]struct{}
	snapshots map[snapKey]LibrarySnapshot
}

type friendKey struct {
	userID   int64
	friendID string
}
type prefKey struct {
	userID  int64
	groupID int64
}
type subKey struct {
	userID int64
	appID  int64
}
type newsKey struct {
	appID  int64
	newsID string
}
type snapKey struct {
	userID int64
	date   string
}

// NewMemory returns an empty in-memory store.
func NewMemory() Store {
	return &memoryStore{
		bindings:  map[int64]string{},
		friends:   map[friendKey]FriendState{},
		prefs:     map[prefKey]GroupPref{},
		subs:      map[subKey]Subscription{},
		watches:   map[int64]MarketWatch{},
		newsSeen:  map[newsKey]struct{}{},
		snapshots: map[snapKey]LibrarySnapshot{},
	}
}

func (m *memoryStore) Close() error { return nil }

func (m *memoryStore) Bind(_ context.Context, userID int64, steamID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[userID] = steamID
	return nil
}

func (m *memoryStore) SteamID(_ context.Context, userID int64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.bindings[userID]
	return id, ok, nil
}

func (m *memoryStore) Bindings(_ context.Context) ([]Binding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Binding, 0, len(m.bindings))
	for uid, sid := range m.bindings {
		out = append(out, Binding{UserID: uid, SteamID: sid})
	}
	return out, nil
}

func (m *memoryStore) FriendState(_ context.Context, userID int64, friendID string) (*FriendState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.friends[friendKey{userID, friendID}]
	if !ok {
		return nil, nil
	}
	cp := st
	return &cp, nil
}

func (m *memoryStore) UpsertFriendState(_ context.Context, st FriendState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.friends[friendKey{st.UserID, st.FriendID}] = st
	return nil
}

func (m *memoryStore) SetGroupPref(_ context.Context, p GroupPref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[prefKey{p.UserID, p.GroupID}] = p
	return nil
}

func (m *memoryStore) DeleteGroupPref(_ context.Context, userID, groupID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.prefs, prefKey{userID, groupID})
	return nil
}

func (m *memoryStore) GroupPrefs(_ context.Context, userID int64) ([]GroupPref, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []GroupPref
	for k, p := range m.prefs {
		if k.userID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryStore) Subscribe(_ context.Context, s Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[subKey{s.UserID, s.AppID}] = s
	return nil
}

func (m *memoryStore) Unsubscribe(_ context.Context, userID, appID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subs, subKey{userID, appID})
	return nil
}

func (m *memoryStore) Subscriptions(_ context.Context, userID int64) ([]Subscription, error) {
	return m.filterSubs(func(s Subscription) bool { return s.UserID == userID })
}

func (m *memoryStore) NewsSubscriptions(_ context.Context) ([]Subscription, error) {
	return m.filterSubs(func(s Subscription) bool { return s.News })
}

func (m *memoryStore) DealSubscriptions(_ context.Context) ([]Subscription, error) {
	return m.filterSubs(func(s Subscription) bool { return s.Deals })
}

func (m *memoryStore) filterSubs(keep func(Subscription) bool) ([]Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Subscription
	for _, s := range m.subs {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memoryStore) AddWatch(_ context.Context, w MarketWatch) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchSeq++
	w.ID = m.watchSeq
	if w.LastCheck.IsZero() {
		w.LastCheck = time.Now()
	}
	m.watches[w.ID] = w
	return w.ID, nil
}

func (m *memoryStore) Watches(_ context.Context) ([]MarketWatch, error) {
	return m.filterWatches(func(MarketWatch) bool { return true })
}

func (m *memoryStore) WatchesFor(_ context.Context, userID int64) ([]MarketWatch, error) {
	return m.filterWatches(func(w MarketWatch) bool { return w.UserID == userID })
}

func (m *memoryStore) filterWatches(keep func(MarketWatch) bool) ([]MarketWatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MarketWatch
	for _, w := range m.watches {
		if keep(w) {
			if w.LastPrice != nil {
				v := *w.LastPrice
				w.LastPrice = &v
			}
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memoryStore) UpdateWatchPrice(_ context.Context, id int64, price float64, at time.Time, alerted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.watches[id]
	if !ok {
		return fmt.Errorf("watch %d: %w", id, ErrNotFound)
	}
	w.LastPrice = &price
	w.LastCheck = at
	w.Alerted = alerted
	m.watches[id] = w
	return nil
}

func (m *memoryStore) RemoveWatch(_ context.Context, id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.watches[id]
	if !ok || w.UserID != userID {
		return ErrNotFound
	}
	delete(m.watches, id)
	return nil
}

func (m *memoryStore) NewsSent(_ context.Context, appID int64, newsID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.newsSeen[newsKey{appID, newsID}]
	return ok, nil
}

func (m *memoryStore) MarkNewsSent(_ context.Context, appID int64, newsID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newsSeen[newsKey{appID, newsID}] = struct{}{}
	return nil
}

func (m *memoryStore) SaveSnapshot(_ context.Context, s LibrarySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapKey{s.UserID, s.Date}] = s
	return nil
}

func (m *memoryStore) Snapshot(_ context.Context, userID int64, date string) (*LibrarySnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snapshots[snapKey{userID, date}]
	if !ok {
		return nil, nil
	}
	cp := s
	cp.TopGames = append([]LibraryGame(nil), s.TopGames...)
	return &cp, nil
}
