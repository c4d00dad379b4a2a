// Package notify turns detected events into user-facing messages and
// pushes them through the outbound transport, applying per-group
// preferences and a global send rate limit.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"steamwatch/internal/steam"
	"steamwatch/internal/storage"
	"steamwatch/internal/transport"
	logx "steamwatch/pkg/logx"
)

const contentsMaxLen = 200

type Service struct {
	out     transport.Outbound
	log     logx.Logger
	limiter *rate.Limiter

	mu  sync.RWMutex
	loc *time.Location

	now func() time.Time
}

func New(out transport.Outbound, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		out: out,
		log: log,
		// Telegram allows ~30 messages/sec overall; stay under it.
		limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 20),
		loc:     time.Local,
		now:     time.Now,
	}
}

// SetLocation changes the timezone used to evaluate quiet hours. Safe to
// call while jobs are running, for config hot reload.
func (s *Service) SetLocation(loc *time.Location) {
	if loc == nil {
		return
	}
	s.mu.Lock()
	s.loc = loc
	s.mu.Unlock()
}

func (s *Service) location() *time.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loc
}

func (s *Service) send(ctx context.Context, userID int64, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.out.SendToUser(ctx, userID, text)
}

func (s *Service) sendGroup(ctx context.Context, groupID int64, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	return s.out.SendToGroup(ctx, groupID, text)
}

// FriendStatus delivers at most one message per friend transition. A game
// change takes precedence over a presence change when both fire at once.
// The message is always sent to the owner's private chat; group mirrors go
// through their stored preferences, and one failing group does not stop
// the others.
func (s *Service) FriendStatus(ctx context.Context, userID int64, friend steam.PlayerSummary, statusChanged, gameChanged bool, prefs []storage.GroupPref) error {
	var text string
	switch {
	case friend.GameExtraInfo != "" && gameChanged:
		text = fmt.Sprintf("🎮 %s started playing %s", friend.PersonaName, friend.GameExtraInfo)
	case friend.GameExtraInfo != "" && statusChanged:
		text = fmt.Sprintf("🎮 %s is playing %s", friend.PersonaName, friend.GameExtraInfo)
	case statusChanged:
		text = fmt.Sprintf("🔔 %s is now online", friend.PersonaName)
	default:
		return nil
	}

	if err := s.send(ctx, userID, text); err != nil {
		return fmt.Errorf("notify user %d: %w", userID, err)
	}

	now := s.now().In(s.location())
	for _, pref := range prefs {
		if !GroupAllowed(pref, friend.SteamID, friend.GameExtraInfo, now) {
			continue
		}
		if err := s.sendGroup(ctx, pref.GroupID, text); err != nil {
			s.log.Warn("group notify failed",
				logx.Int64("group", pref.GroupID),
				logx.Int64("user", userID),
				logx.Err(err))
		}
	}
	return nil
}

// News delivers a news item for a subscribed game. Long bodies are
// truncated on a rune boundary; Telegram rejects invalid UTF-8.
func (s *Service) News(ctx context.Context, userID int64, gameName string, item steam.NewsItem) error {
	contents := item.Contents
	if len(contents) > contentsMaxLen {
		cut := contentsMaxLen
		for cut > 0 && !utf8.RuneStart(contents[cut]) {
			cut--
		}
		contents = contents[:cut] + "…"
	}
	text := fmt.Sprintf("📰 %s\n%s\n\n%s\n%s", gameName, item.Title, contents, item.URL)
	return s.send(ctx, userID, text)
}

// Discount announces a featured discount. Prices arrive in cents.
func (s *Service) Discount(ctx context.Context, userID int64, sp steam.Special) error {
	text := fmt.Sprintf("🔥 %s is %d%% off: %.2f (was %.2f)",
		sp.Name, sp.DiscountPercent,
		float64(sp.FinalPrice)/100, float64(sp.OriginalPrice)/100)
	return s.send(ctx, userID, text)
}

// PriceTarget announces a watched market item dropping to its target.
func (s *Service) PriceTarget(ctx context.Context, userID int64, w storage.MarketWatch, current float64) error {
	text := fmt.Sprintf("💰 %s hit your target: %.2f (target %.2f)",
		w.HashName, current, w.DesiredPrice)
	return s.send(ctx, userID, text)
}

// PriceChange announces a large swing relative to the last observed price.
func (s *Service) PriceChange(ctx context.Context, userID int64, w storage.MarketWatch, last, current, pct float64) error {
	arrow := "📈"
	if current < last {
		arrow = "📉"
	}
	text := fmt.Sprintf("%s %s moved %.1f%%: %.2f → %.2f",
		arrow, w.HashName, pct, last, current)
	return s.send(ctx, userID, text)
}
