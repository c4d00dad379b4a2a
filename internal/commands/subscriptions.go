package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"steamwatch/internal/storage"
	logx "steamwatch/pkg/logx"
)

const subscribeUsage = "❌ Usage: /subscribe <add|remove|list> [appid] [news=false] [deals=false]"

// Subscribe manages per-game news/deal subscriptions. `add` with no
// options enables both channels; re-adding an app replaces its flags.
func (s *Service) Subscribe(ctx context.Context, userID int64, args []string) string {
	if len(args) < 1 {
		return subscribeUsage
	}
	action := strings.ToLower(args[0])
	if action == "list" {
		return s.listSubscriptions(ctx, userID)
	}
	if action != "add" && action != "remove" {
		return subscribeUsage
	}
	if len(args) < 2 {
		return subscribeUsage
	}
	appID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || appID <= 0 {
		return "❌ appid must be a positive number"
	}

	if action == "remove" {
		if err := s.store.Unsubscribe(ctx, userID, appID); err != nil {
			s.log.Error("unsubscribe failed", logx.Int64("user", userID), logx.Err(err))
			return "❌ Could not remove the subscription, try again later"
		}
		return fmt.Sprintf("✅ Unsubscribed from AppID %d", appID)
	}

	sub := storage.Subscription{UserID: userID, AppID: appID, News: true, Deals: true}
	for _, opt := range args[2:] {
		k, v, _ := strings.Cut(opt, "=")
		enabled := !strings.EqualFold(v, "false") && v != "0"
		switch strings.ToLower(k) {
		case "news":
			sub.News = enabled
		case "deals":
			sub.Deals = enabled
		default:
			return fmt.Sprintf("❌ Unknown option %q", opt)
		}
	}
	if !sub.News && !sub.Deals {
		return "❌ At least one of news/deals must stay enabled"
	}
	if err := s.store.Subscribe(ctx, sub); err != nil {
		s.log.Error("subscribe failed", logx.Int64("user", userID), logx.Err(err))
		return "❌ Could not save the subscription, try again later"
	}
	return fmt.Sprintf("✅ Subscribed to AppID %d (news: %t, deals: %t)", appID, sub.News, sub.Deals)
}

func (s *Service) listSubscriptions(ctx context.Context, userID int64) string {
	subs, err := s.store.Subscriptions(ctx, userID)
	if err != nil {
		s.log.Error("subscription list failed", logx.Int64("user", userID), logx.Err(err))
		return "❌ Could not load subscriptions"
	}
	if len(subs) == 0 {
		return "No game subscriptions"
	}
	var b strings.Builder
	b.WriteString("Subscriptions:\n")
	for _, sub := range subs {
		var channels []string
		if sub.News {
			channels = append(channels, "news")
		}
		if sub.Deals {
			channels = append(channels, "deals")
		}
		fmt.Fprintf(&b, "• AppID %d (%s)\n", sub.AppID, strings.Join(channels, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
