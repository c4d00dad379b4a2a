package steam

// PersonaState is the coarse presence state reported by GetPlayerSummaries.
type PersonaState int

const (
	StateOffline PersonaState = iota
	StateOnline
	StateBusy
	StateAway
	StateSnooze
	StateLookingToTrade
	StateLookingToPlay
)

func (s PersonaState) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateOnline:
		return "online"
	case StateBusy:
		return "busy"
	case StateAway:
		return "away"
	case StateSnooze:
		return "snooze"
	case StateLookingToTrade:
		return "looking to trade"
	case StateLookingToPlay:
		return "looking to play"
	default:
		return "unknown"
	}
}

// Online reports whether the state is any non-offline sub-state.
func (s PersonaState) Online() bool { return s != StateOffline }

type Friend struct {
	SteamID string `json:"steamid"`
}

// PlayerSummary is one entry from GetPlayerSummaries (v2).
// GameExtraInfo is empty when the player is not in a game.
type PlayerSummary struct {
	SteamID       string       `json:"steamid"`
	PersonaName   string       `json:"personaname"`
	PersonaState  PersonaState `json:"personastate"`
	GameExtraInfo string       `json:"gameextrainfo"`
}

// OwnedGame is one entry from GetOwnedGames. PlaytimeForever is minutes.
type OwnedGame struct {
	AppID           int64  `json:"appid"`
	Name            string `json:"name"`
	PlaytimeForever int64  `json:"playtime_forever"`
}

type NewsItem struct {
	GID      string `json:"gid"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Contents string `json:"contents"`
	Date     int64  `json:"date"`
}

type Achievement struct {
	APIName    string `json:"apiname"`
	Achieved   int    `json:"achieved"`
	UnlockTime int64  `json:"unlocktime"`
}

type PlayerAchievements struct {
	GameName     string        `json:"gameName"`
	Achievements []Achievement `json:"achievements"`
}

// AppDetails is the subset of the storefront appdetails payload we use.
type AppDetails struct {
	Name string `json:"name"`
}

// PriceOverview is the market priceoverview payload. Prices are formatted
// strings like "¥ 12.34" and must go through ParsePrice.
type PriceOverview struct {
	Success     bool   `json:"success"`
	LowestPrice string `json:"lowest_price"`
	MedianPrice string `json:"median_price"`
	Volume      string `json:"volume"`
}

// Special is one discounted entry of the storefront featured listing.
// Prices are in cents of the storefront currency.
type Special struct {
	AppID           int64  `json:"id"`
	Name            string `json:"name"`
	DiscountPercent int    `json:"discount_percent"`
	FinalPrice      int64  `json:"final_price"`
	OriginalPrice   int64  `json:"original_price"`
}

// ---- response envelopes (every field may be absent) ----

type friendListEnvelope struct {
	FriendsList struct {
		Friends []Friend `json:"friends"`
	} `json:"friendslist"`
}

type playerSummariesEnvelope struct {
	Response struct {
		Players []PlayerSummary `json:"players"`
	} `json:"response"`
}

type ownedGamesEnvelope struct {
	Response struct {
		GameCount int         `json:"game_count"`
		Games     []OwnedGame `json:"games"`
	} `json:"response"`
}

type newsEnvelope struct {
	AppNews struct {
		AppID     int64      `json:"appid"`
		NewsItems []NewsItem `json:"newsitems"`
	} `json:"appnews"`
}

type achievementsEnvelope struct {
	PlayerStats PlayerAchievements `json:"playerstats"`
}

type schemaEnvelope struct {
	Game GameSchema `json:"game"`
}

// GameSchema is the achievement schema of a game (near-static catalog data).
type GameSchema struct {
	GameName string `json:"gameName"`
	Stats    struct {
		Achievements []SchemaAchievement `json:"achievements"`
	} `json:"availableGameStats"`
}

type SchemaAchievement struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Hidden      int    `json:"hidden"`
}

type appDetailsEntry struct {
	Success bool       `json:"success"`
	Data    AppDetails `json:"data"`
}

type featuredEnvelope struct {
	Specials []Special `json:"specials"`
}
