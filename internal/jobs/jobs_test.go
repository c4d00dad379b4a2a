package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"steamwatch/internal/config"
	"steamwatch/internal/notify"
	"steamwatch/internal/steam"
	"steamwatch/internal/storage"
	logx "steamwatch/pkg/logx"
)

// fakeAPI returns canned data per steam id / app id.
type fakeAPI struct {
	friends      map[string][]steam.Friend
	friendsErr   map[string]error
	summaries    map[string]steam.PlayerSummary
	owned        map[string][]steam.OwnedGame
	news         map[int64][]steam.NewsItem
	details      map[int64]steam.AppDetails
	prices       map[string][]steam.PriceOverview // consumed in order
	featured     []steam.Special
	featuredCall int
}

func (f *fakeAPI) GetFriendList(_ context.Context, steamID string) ([]steam.Friend, error) {
	if err := f.friendsErr[steamID]; err != nil {
		return nil, err
	}
	return f.friends[steamID], nil
}

func (f *fakeAPI) GetPlayerSummaries(_ context.Context, ids []string) ([]steam.PlayerSummary, error) {
	out := make([]steam.PlayerSummary, 0, len(ids))
	for _, id := range ids {
		if s, ok := f.summaries[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeAPI) GetOwnedGames(_ context.Context, steamID string) ([]steam.OwnedGame, error) {
	return f.owned[steamID], nil
}

func (f *fakeAPI) GetNewsForApp(_ context.Context, appID int64, _ int) ([]steam.NewsItem, error) {
	return f.news[appID], nil
}

func (f *fakeAPI) GetAppDetails(_ context.Context, appID int64) (steam.AppDetails, error) {
	d, ok := f.details[appID]
	if !ok {
		return steam.AppDetails{}, errors.New("no details")
	}
	return d, nil
}

func (f *fakeAPI) GetMarketPrice(_ context.Context, _ int64, hashName string) (steam.PriceOverview, error) {
	q := f.prices[hashName]
	if len(q) == 0 {
		return steam.PriceOverview{}, errors.New("no price")
	}
	p := q[0]
	f.prices[hashName] = q[1:]
	return p, nil
}

func (f *fakeAPI) GetFeaturedGames(_ context.Context) ([]steam.Special, error) {
	f.featuredCall++
	return f.featured, nil
}

type captureOut struct {
	user  []string
	group []string
}

func (c *captureOut) SendToUser(_ context.Context, _ int64, text string) error {
	c.user = append(c.user, text)
	return nil
}

func (c *captureOut) SendToGroup(_ context.Context, _ int64, text string) error {
	c.group = append(c.group, text)
	return nil
}

func testSettings() config.MonitorSettings {
	set, err := config.MonitorConfig{}.Settings()
	if err != nil {
		panic(err)
	}
	return set
}

func newTestService(t *testing.T, api *fakeAPI) (*Service, storage.Store, *captureOut) {
	t.Helper()
	store := storage.NewMemory()
	out := &captureOut{}
	n := notify.New(out, logx.Nop())
	svc := New(store, api, n, testSettings, logx.Nop())
	return svc, store, out
}

func bindUser(t *testing.T, store storage.Store, userID int64, steamID string) {
	t.Helper()
	if err := store.Bind(context.Background(), userID, steamID); err != nil {
		t.Fatalf("bind: %v", err)
	}
}

func price(s string) steam.PriceOverview {
	return steam.PriceOverview{Success: true, LowestPrice: s}
}

func TestMonitorFriendsBaselineNeverNotifies(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{
		friends:   map[string][]steam.Friend{"owner": {{SteamID: "f1"}}},
		summaries: map[string]steam.PlayerSummary{"f1": {SteamID: "f1", PersonaName: "Alice", PersonaState: steam.StateOnline, GameExtraInfo: "Dota 2"}},
	}
	svc, store, out := newTestService(t, api)
	bindUser(t, store, 10, "owner")

	// first observation, even mid-game, is only a baseline
	if err := svc.MonitorFriends(context.Background()); err != nil {
		t.Fatalf("MonitorFriends: %v", err)
	}
	if len(out.user) != 0 {
		t.Fatalf("baseline observation must not notify, got %v", out.user)
	}

	st, err := store.FriendState(context.Background(), 10, "f1")
	if err != nil || st == nil {
		t.Fatalf("expected stored baseline, got %v, %v", st, err)
	}
	if st.Game != "Dota 2" || steam.PersonaState(st.State) != steam.StateOnline {
		t.Fatalf("baseline mismatch: %+v", st)
	}
}

func TestMonitorFriendsTransitions(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name string
		prev storage.FriendState
		next steam.PlayerSummary
		want string // substring of the expected message; empty means silence
	}{
		{
			name: "offline to online",
			prev: storage.FriendState{State: int(steam.StateOffline)},
			next: steam.PlayerSummary{PersonaState: steam.StateOnline},
			want: "is now online",
		},
		{
			name: "offline straight into game",
			prev: storage.FriendState{State: int(steam.StateOffline)},
			next: steam.PlayerSummary{PersonaState: steam.StateOnline, GameExtraInfo: "Dota 2"},
			want: "started playing Dota 2",
		},
		{
			name: "online starts game",
			prev: storage.FriendState{State: int(steam.StateOnline)},
			next: steam.PlayerSummary{PersonaState: steam.StateOnline, GameExtraInfo: "CS2"},
			want: "started playing CS2",
		},
		{
			name: "switches game",
			prev: storage.FriendState{State: int(steam.StateOnline), Game: "Dota 2"},
			next: steam.PlayerSummary{PersonaState: steam.StateOnline, GameExtraInfo: "CS2"},
			want: "started playing CS2",
		},
		{
			name: "away to online is not a transition",
			prev: storage.FriendState{State: int(steam.StateAway)},
			next: steam.PlayerSummary{PersonaState: steam.StateOnline},
		},
		{
			name: "stops playing silently",
			prev: storage.FriendState{State: int(steam.StateOnline), Game: "Dota 2"},
			next: steam.PlayerSummary{PersonaState: steam.StateOnline},
		},
		{
			name: "goes offline silently",
			prev: storage.FriendState{State: int(steam.StateOnline), Game: "Dota 2"},
			next: steam.PlayerSummary{PersonaState: steam.StateOffline},
		},
		{
			name: "same game unchanged",
			prev: storage.FriendState{State: int(steam.StateOnline), Game: "Dota 2"},
			next: steam.PlayerSummary{PersonaState: steam.StateOnline, GameExtraInfo: "Dota 2"},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tc.next.SteamID = "f1"
			tc.next.PersonaName = "Alice"
			api := &fakeAPI{
				friends:   map[string][]steam.Friend{"owner": {{SteamID: "f1"}}},
				summaries: map[string]steam.PlayerSummary{"f1": tc.next},
			}
			svc, store, out := newTestService(t, api)
			bindUser(t, store, 10, "owner")

			tc.prev.UserID = 10
			tc.prev.FriendID = "f1"
			if err := store.UpsertFriendState(context.Background(), tc.prev); err != nil {
				t.Fatalf("seed state: %v", err)
			}

			if err := svc.MonitorFriends(context.Background()); err != nil {
				t.Fatalf("MonitorFriends: %v", err)
			}

			if tc.want == "" {
				if len(out.user) != 0 {
					t.Fatalf("expected silence, got %v", out.user)
				}
			} else {
				if len(out.user) != 1 || !strings.Contains(out.user[0], tc.want) {
					t.Fatalf("expected message containing %q, got %v", tc.want, out.user)
				}
			}

			// state is recorded regardless of notification
			st, err := store.FriendState(context.Background(), 10, "f1")
			if err != nil || st == nil {
				t.Fatalf("state not stored: %v", err)
			}
			if st.Game != tc.next.GameExtraInfo || steam.PersonaState(st.State) != tc.next.PersonaState {
				t.Fatalf("stored state mismatch: %+v", st)
			}
		})
	}
}

func TestMonitorFriendsUserFailureIsolation(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{
		friends: map[string][]steam.Friend{
			"good": {{SteamID: "f1"}},
		},
		friendsErr: map[string]error{"bad": errors.New("api down")},
		summaries:  map[string]steam.PlayerSummary{"f1": {SteamID: "f1", PersonaName: "Alice", PersonaState: steam.StateOnline}},
	}
	svc, store, _ := newTestService(t, api)
	bindUser(t, store, 1, "bad")
	bindUser(t, store, 2, "good")

	if err := svc.MonitorFriends(context.Background()); err != nil {
		t.Fatalf("one failing user must not fail the pass: %v", err)
	}
	st, err := store.FriendState(context.Background(), 2, "f1")
	if err != nil || st == nil {
		t.Fatal("healthy user should still have been processed")
	}
}

func TestCheckNewsIdempotent(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{
		news: map[int64][]steam.NewsItem{
			570: {{GID: "n1", Title: "Patch", URL: "https://example.com/1"}},
		},
		details: map[int64]steam.AppDetails{570: {Name: "Dota 2"}},
	}
	svc, store, out := newTestService(t, api)
	if err := store.Subscribe(context.Background(), storage.Subscription{UserID: 10, AppID: 570, News: true}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := svc.CheckNews(context.Background()); err != nil {
		t.Fatalf("CheckNews: %v", err)
	}
	if len(out.user) != 1 || !strings.Contains(out.user[0], "Dota 2") {
		t.Fatalf("expected one news message, got %v", out.user)
	}

	// second pass with the same item: nothing new
	if err := svc.CheckNews(context.Background()); err != nil {
		t.Fatalf("CheckNews: %v", err)
	}
	if len(out.user) != 1 {
		t.Fatalf("same item delivered twice: %v", out.user)
	}

	// a fresh item goes out
	api.news[570] = append(api.news[570], steam.NewsItem{GID: "n2", Title: "Hotfix", URL: "https://example.com/2"})
	if err := svc.CheckNews(context.Background()); err != nil {
		t.Fatalf("CheckNews: %v", err)
	}
	if len(out.user) != 2 || !strings.Contains(out.user[1], "Hotfix") {
		t.Fatalf("expected the new item, got %v", out.user)
	}
}

func TestCheckNewsNameFallback(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{
		news: map[int64][]steam.NewsItem{730: {{GID: "n1", Title: "Update"}}},
	}
	svc, store, out := newTestService(t, api)
	if err := store.Subscribe(context.Background(), storage.Subscription{UserID: 10, AppID: 730, News: true}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := svc.CheckNews(context.Background()); err != nil {
		t.Fatalf("CheckNews: %v", err)
	}
	if len(out.user) != 1 || !strings.Contains(out.user[0], "AppID 730") {
		t.Fatalf("expected appid fallback name, got %v", out.user)
	}
}

func TestCheckDealsNotifiesEveryPass(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{
		featured: []steam.Special{
			{AppID: 570, Name: "Dota 2 Pass", DiscountPercent: 50, FinalPrice: 2950, OriginalPrice: 5900},
			{AppID: 999, Name: "Unrelated", DiscountPercent: 80, FinalPrice: 100, OriginalPrice: 500},
		},
	}
	svc, store, out := newTestService(t, api)
	if err := store.Subscribe(context.Background(), storage.Subscription{UserID: 10, AppID: 570, Deals: true}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for pass := 1; pass <= 2; pass++ {
		if err := svc.CheckDeals(context.Background()); err != nil {
			t.Fatalf("CheckDeals pass %d: %v", pass, err)
		}
		if len(out.user) != pass {
			t.Fatalf("expected %d discount messages after pass %d, got %v", pass, pass, out.user)
		}
	}
	if api.featuredCall != 2 {
		t.Fatalf("expected one featured fetch per pass, got %d", api.featuredCall)
	}
}

func TestCheckDealsNoSubscribersSkipsFetch(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{featured: []steam.Special{{AppID: 570, DiscountPercent: 50}}}
	svc, _, _ := newTestService(t, api)
	if err := svc.CheckDeals(context.Background()); err != nil {
		t.Fatalf("CheckDeals: %v", err)
	}
	if api.featuredCall != 0 {
		t.Fatal("featured fetch should be skipped with no deal subscribers")
	}
}

func TestCheckDealsPriceAlerts(t *testing.T) {
	t.Parallel()
	// sequence across passes: 120 -> 90 (target crossing) -> 80 (already
	// below, silent) -> 95 (upward bounce re-arms) -> 85 (re-crossing)
	api := &fakeAPI{
		prices: map[string][]steam.PriceOverview{
			"AK-47 | Redline": {price("¥ 120.00"), price("¥ 90.00"), price("¥ 80.00"), price("¥ 95.00"), price("¥ 85.00")},
		},
	}
	svc, store, out := newTestService(t, api)
	id, err := store.AddWatch(context.Background(), storage.MarketWatch{
		UserID: 10, AppID: 730, HashName: "AK-47 | Redline", DesiredPrice: 100,
	})
	if err != nil {
		t.Fatalf("AddWatch: %v", err)
	}

	counts := make([]int, 0, 5)
	for pass := 0; pass < 5; pass++ {
		if err := svc.CheckDeals(context.Background()); err != nil {
			t.Fatalf("CheckDeals: %v", err)
		}
		counts = append(counts, len(out.user))
	}

	// pass 1: baseline 120, no alert. pass 2: crossed 100, target alert
	// plus 25% swing. pass 3: stays below, latched, swing 11% is under
	// threshold. pass 4: bounce to 95 re-arms, 18.75% swing fires. pass 5:
	// target re-crossing, 10.5% swing is silent.
	want := []int{0, 2, 2, 3, 4}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("message counts per pass = %v, want %v (all: %v)", counts, want, out.user)
		}
	}

	ws, err := store.Watches(context.Background())
	if err != nil || len(ws) != 1 {
		t.Fatalf("Watches: %v %v", ws, err)
	}
	if ws[0].ID != id || ws[0].LastPrice == nil || *ws[0].LastPrice != 85 {
		t.Fatalf("expected last price 85, got %+v", ws[0])
	}
	if !ws[0].Alerted {
		t.Fatalf("target latch should be set after the re-crossing: %+v", ws[0])
	}
}

func TestCheckDealsPriceFetchFailureKeepsState(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{
		prices: map[string][]steam.PriceOverview{"Item": {price("¥ 120.00")}},
	}
	svc, store, out := newTestService(t, api)
	if _, err := store.AddWatch(context.Background(), storage.MarketWatch{
		UserID: 10, AppID: 730, HashName: "Item", DesiredPrice: 100,
	}); err != nil {
		t.Fatalf("AddWatch: %v", err)
	}

	if err := svc.CheckDeals(context.Background()); err != nil {
		t.Fatalf("CheckDeals: %v", err)
	}
	// queue exhausted: the next pass fails to fetch and must leave state alone
	if err := svc.CheckDeals(context.Background()); err != nil {
		t.Fatalf("CheckDeals: %v", err)
	}
	ws, _ := store.Watches(context.Background())
	if ws[0].LastPrice == nil || *ws[0].LastPrice != 120 {
		t.Fatalf("failed fetch must not clobber last price: %+v", ws[0])
	}
	if len(out.user) != 0 {
		t.Fatalf("no alerts expected, got %v", out.user)
	}
}

func TestGenerateLibraryStatsDailyDelta(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{
		owned: map[string][]steam.OwnedGame{
			"owner": {
				{AppID: 1, Name: "Dota 2", PlaytimeForever: 12 * 60}, // 12h, was 10h
				{AppID: 2, Name: "CS2", PlaytimeForever: 3 * 60},     // 3h, new since yesterday
				{AppID: 3, Name: "Idle", PlaytimeForever: 5 * 60},    // unchanged
			},
		},
	}
	svc, store, _ := newTestService(t, api)
	now := time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	bindUser(t, store, 10, "owner")

	if err := store.SaveSnapshot(context.Background(), storage.LibrarySnapshot{
		UserID: 10,
		Date:   "2026-03-09",
		TopGames: []storage.LibraryGame{
			{AppID: 1, Name: "Dota 2", Hours: 10},
			{AppID: 3, Name: "Idle", Hours: 5},
		},
	}); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	if err := svc.GenerateLibraryStats(context.Background()); err != nil {
		t.Fatalf("GenerateLibraryStats: %v", err)
	}

	snap, err := store.Snapshot(context.Background(), 10, "2026-03-10")
	if err != nil || snap == nil {
		t.Fatalf("snapshot missing: %v", err)
	}
	if snap.TotalGames != 3 {
		t.Fatalf("TotalGames = %d", snap.TotalGames)
	}
	if snap.TotalHours != 20 {
		t.Fatalf("TotalHours = %v", snap.TotalHours)
	}
	if snap.DailyHours != 5 { // (12-10) + 3
		t.Fatalf("DailyHours = %v, want 5", snap.DailyHours)
	}
	if len(snap.TopGames) != 3 || snap.TopGames[0].Name != "Dota 2" {
		t.Fatalf("top games not sorted by hours: %+v", snap.TopGames)
	}
}

func TestGenerateLibraryStatsNoYesterday(t *testing.T) {
	t.Parallel()
	api := &fakeAPI{
		owned: map[string][]steam.OwnedGame{
			"owner": {{AppID: 1, Name: "Dota 2", PlaytimeForever: 600}},
		},
	}
	svc, store, _ := newTestService(t, api)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) }
	bindUser(t, store, 10, "owner")

	if err := svc.GenerateLibraryStats(context.Background()); err != nil {
		t.Fatalf("GenerateLibraryStats: %v", err)
	}
	snap, _ := store.Snapshot(context.Background(), 10, "2026-03-10")
	if snap == nil || snap.DailyHours != 0 {
		t.Fatalf("without a previous snapshot daily hours must be 0: %+v", snap)
	}
}
