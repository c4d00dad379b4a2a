package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	logx "steamwatch/pkg/logx"
)

const (
	defaultAPIBase    = "https://api.steampowered.com"
	defaultStoreBase  = "https://store.steampowered.com/api"
	defaultMarketBase = "https://steamcommunity.com/market"

	// newsMaxLength caps the contents field returned by GetNewsForApp.
	newsMaxLength = "300"

	// marketCurrency selects the storefront currency for priceoverview.
	marketCurrency = "23"
)

// TTLConfig holds the per-endpoint cache TTLs.
//
// Presence lookups (friend list, player summaries) are deliberately not
// cached: change detection needs them fresh every poll. Catalog-ish data
// gets longer TTLs than promotional data.
type TTLConfig struct {
	Achievements time.Duration
	Schema       time.Duration
	OwnedGames   time.Duration
	News         time.Duration
	AppDetails   time.Duration
	MarketPrice  time.Duration
	Featured     time.Duration
}

func DefaultTTLs() TTLConfig {
	return TTLConfig{
		Achievements: 30 * time.Minute,
		Schema:       30 * time.Minute,
		OwnedGames:   30 * time.Minute,
		News:         time.Hour,
		AppDetails:   time.Hour,
		MarketPrice:  30 * time.Minute,
		Featured:     4 * time.Hour,
	}
}

type Config struct {
	APIKey  string
	Timeout time.Duration // per-request timeout; 0 means 10s
	TTL     TTLConfig     // zero fields fall back to DefaultTTLs
}

// Client talks to the Steam Web API, the storefront API and the community
// market. It applies a read-through in-memory cache per endpoint and never
// retries: a failed call means "no data this tick" and the caller's next
// scheduled poll is the retry.
//
// The underlying HTTP client is created lazily on first use and torn down
// by Close().
type Client struct {
	key     string
	timeout time.Duration
	ttl     TTLConfig
	log     logx.Logger

	apiBase    string
	storeBase  string
	marketBase string

	// mu guards httpc; jobs of different types may call concurrently.
	mu    sync.Mutex
	httpc *resty.Client

	cache *memoCache
}

func New(cfg Config, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		key:        cfg.APIKey,
		timeout:    timeout,
		ttl:        cfg.TTL.withDefaults(),
		log:        log,
		apiBase:    defaultAPIBase,
		storeBase:  defaultStoreBase,
		marketBase: defaultMarketBase,
		cache:      newMemoCache(),
	}
}

func (t TTLConfig) withDefaults() TTLConfig {
	def := DefaultTTLs()
	if t.Achievements <= 0 {
		t.Achievements = def.Achievements
	}
	if t.Schema <= 0 {
		t.Schema = def.Schema
	}
	if t.OwnedGames <= 0 {
		t.OwnedGames = def.OwnedGames
	}
	if t.News <= 0 {
		t.News = def.News
	}
	if t.AppDetails <= 0 {
		t.AppDetails = def.AppDetails
	}
	if t.MarketPrice <= 0 {
		t.MarketPrice = def.MarketPrice
	}
	if t.Featured <= 0 {
		t.Featured = def.Featured
	}
	return t
}

func (c *Client) client() *resty.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpc == nil {
		c.httpc = resty.New().
			SetTimeout(c.timeout).
			SetHeader("Accept", "application/json").
			SetRetryCount(0)
	}
	return c.httpc
}

// Close releases the connection pool. In-flight requests are not awaited.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.httpc != nil {
		c.httpc.GetClient().CloseIdleConnections()
		c.httpc = nil
	}
}

func (c *Client) apiURL(iface, method, version string) string {
	return fmt.Sprintf("%s/%s/%s/%s/", c.apiBase, iface, method, version)
}

func (c *Client) getBody(ctx context.Context, url string, params map[string]string, withKey bool) ([]byte, error) {
	req := c.client().R().SetContext(ctx).SetQueryParams(params)
	if withKey {
		req.SetQueryParam("key", c.key)
	}
	resp, err := req.Get(url)
	if err != nil {
		return nil, fmt.Errorf("steam: GET %s: %w", url, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("steam: GET %s: status %d", url, resp.StatusCode())
	}
	return resp.Body(), nil
}

// fetch performs a GET with read-through caching. The API key is never part
// of the cache key. ttl == 0 disables caching for the endpoint.
func (c *Client) fetch(ctx context.Context, endpoint, url string, params map[string]string, withKey bool, ttl time.Duration, out any) error {
	key := cacheKey(endpoint, params)
	if ttl > 0 {
		if body, ok := c.cache.get(key); ok {
			return decodeBody(endpoint, body, out)
		}
	}
	body, err := c.getBody(ctx, url, params, withKey)
	if err != nil {
		return err
	}
	if err := decodeBody(endpoint, body, out); err != nil {
		return err
	}
	if ttl > 0 {
		c.cache.put(key, body, ttl)
	}
	return nil
}

func decodeBody(endpoint string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("steam: %s: decode: %w", endpoint, err)
	}
	return nil
}

// GetFriendList returns the friend ids of the given account. Not cached.
func (c *Client) GetFriendList(ctx context.Context, steamID string) ([]Friend, error) {
	var env friendListEnvelope
	params := map[string]string{"steamid": steamID, "relationship": "friend"}
	err := c.fetch(ctx, "ISteamUser/GetFriendList", c.apiURL("ISteamUser", "GetFriendList", "v1"), params, true, 0, &env)
	if err != nil {
		return nil, err
	}
	return env.FriendsList.Friends, nil
}

// GetPlayerSummaries resolves presence for up to 100 accounts in one call.
// Not cached.
func (c *Client) GetPlayerSummaries(ctx context.Context, steamIDs []string) ([]PlayerSummary, error) {
	if len(steamIDs) == 0 {
		return nil, nil
	}
	var env playerSummariesEnvelope
	params := map[string]string{"steamids": strings.Join(steamIDs, ",")}
	err := c.fetch(ctx, "ISteamUser/GetPlayerSummaries", c.apiURL("ISteamUser", "GetPlayerSummaries", "v2"), params, true, 0, &env)
	if err != nil {
		return nil, err
	}
	return env.Response.Players, nil
}

func (c *Client) GetOwnedGames(ctx context.Context, steamID string) ([]OwnedGame, error) {
	var env ownedGamesEnvelope
	params := map[string]string{
		"steamid":                   steamID,
		"include_appinfo":           "1",
		"include_played_free_games": "1",
	}
	err := c.fetch(ctx, "IPlayerService/GetOwnedGames", c.apiURL("IPlayerService", "GetOwnedGames", "v1"), params, true, c.ttl.OwnedGames, &env)
	if err != nil {
		return nil, err
	}
	return env.Response.Games, nil
}

func (c *Client) GetNewsForApp(ctx context.Context, appID int64, count int) ([]NewsItem, error) {
	var env newsEnvelope
	params := map[string]string{
		"appid":     strconv.FormatInt(appID, 10),
		"count":     strconv.Itoa(count),
		"maxlength": newsMaxLength,
	}
	err := c.fetch(ctx, "ISteamNews/GetNewsForApp", c.apiURL("ISteamNews", "GetNewsForApp", "v1"), params, true, c.ttl.News, &env)
	if err != nil {
		return nil, err
	}
	return env.AppNews.NewsItems, nil
}

func (c *Client) GetPlayerAchievements(ctx context.Context, steamID string, appID int64) (PlayerAchievements, error) {
	var env achievementsEnvelope
	params := map[string]string{"steamid": steamID, "appid": strconv.FormatInt(appID, 10)}
	err := c.fetch(ctx, "ISteamUserStats/GetPlayerAchievements", c.apiURL("ISteamUserStats", "GetPlayerAchievements", "v1"), params, true, c.ttl.Achievements, &env)
	if err != nil {
		return PlayerAchievements{}, err
	}
	return env.PlayerStats, nil
}

func (c *Client) GetSchemaForGame(ctx context.Context, appID int64) (GameSchema, error) {
	var env schemaEnvelope
	params := map[string]string{"appid": strconv.FormatInt(appID, 10)}
	err := c.fetch(ctx, "ISteamUserStats/GetSchemaForGame", c.apiURL("ISteamUserStats", "GetSchemaForGame", "v1"), params, true, c.ttl.Schema, &env)
	if err != nil {
		return GameSchema{}, err
	}
	return env.Game, nil
}

// GetAppDetails returns storefront metadata for one app. It errors when the
// storefront reports no data for the id; callers should fall back to a
// placeholder name rather than fail their pipeline.
func (c *Client) GetAppDetails(ctx context.Context, appID int64) (AppDetails, error) {
	id := strconv.FormatInt(appID, 10)
	var env map[string]appDetailsEntry
	params := map[string]string{"appids": id}
	err := c.fetch(ctx, "store/appdetails", c.storeBase+"/appdetails", params, false, c.ttl.AppDetails, &env)
	if err != nil {
		return AppDetails{}, err
	}
	entry, ok := env[id]
	if !ok || !entry.Success {
		return AppDetails{}, fmt.Errorf("steam: appdetails: no data for app %d", appID)
	}
	return entry.Data, nil
}

func (c *Client) GetMarketPrice(ctx context.Context, appID int64, marketHashName string) (PriceOverview, error) {
	var out PriceOverview
	params := map[string]string{
		"appid":            strconv.FormatInt(appID, 10),
		"currency":         marketCurrency,
		"market_hash_name": marketHashName,
	}
	err := c.fetch(ctx, "market/priceoverview", c.marketBase+"/priceoverview/", params, false, c.ttl.MarketPrice, &out)
	if err != nil {
		return PriceOverview{}, err
	}
	return out, nil
}

// GetFeaturedGames returns the storefront's current discounted specials.
// One call per discount tick serves every subscriber.
func (c *Client) GetFeaturedGames(ctx context.Context) ([]Special, error) {
	var env featuredEnvelope
	err := c.fetch(ctx, "store/featured", c.storeBase+"/featured", nil, false, c.ttl.Featured, &env)
	if err != nil {
		return nil, err
	}
	return env.Specials, nil
}
