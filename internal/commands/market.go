package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"steamwatch/internal/storage"
	logx "steamwatch/pkg/logx"
)

const watchUsage = "❌ Usage: /watch <appid> <market_hash_name> <target_price>"

// Watch starts monitoring one market item. The hash name may contain
// spaces; the target price is always the last argument.
func (s *Service) Watch(ctx context.Context, userID int64, args []string) string {
	if len(args) < 3 {
		return watchUsage
	}
	appID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || appID <= 0 {
		return "❌ appid must be a positive number"
	}
	price, err := strconv.ParseFloat(args[len(args)-1], 64)
	if err != nil || price <= 0 {
		return "❌ target_price must be a positive number"
	}
	hashName := strings.Join(args[1:len(args)-1], " ")

	id, err := s.store.AddWatch(ctx, storage.MarketWatch{
		UserID:       userID,
		AppID:        appID,
		HashName:     hashName,
		DesiredPrice: price,
	})
	if err != nil {
		s.log.Error("watch add failed", logx.Int64("user", userID), logx.Err(err))
		return "❌ Could not add the watch, try again later"
	}
	return fmt.Sprintf("✅ Watching %s (target %.2f). Watch ID: %d", hashName, price, id)
}

// Unwatch removes one of the caller's watches by its ID.
func (s *Service) Unwatch(ctx context.Context, userID int64, args []string) string {
	if len(args) < 1 {
		return "❌ Usage: /unwatch <watch_id>"
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return "❌ watch_id must be a number"
	}
	switch err := s.store.RemoveWatch(ctx, id, userID); {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Sprintf("❌ No watch with ID %d", id)
	case err != nil:
		s.log.Error("watch remove failed", logx.Int64("user", userID), logx.Err(err))
		return "❌ Could not remove the watch, try again later"
	}
	return fmt.Sprintf("✅ Watch %d removed", id)
}

// Watches lists the caller's active market watches.
func (s *Service) Watches(ctx context.Context, userID int64) string {
	watches, err := s.store.WatchesFor(ctx, userID)
	if err != nil {
		s.log.Error("watch list failed", logx.Int64("user", userID), logx.Err(err))
		return "❌ Could not load watches"
	}
	if len(watches) == 0 {
		return "No market watches"
	}
	var b strings.Builder
	b.WriteString("Market watches:\n")
	for _, w := range watches {
		fmt.Fprintf(&b, "• [%d] %s target %.2f", w.ID, w.HashName, w.DesiredPrice)
		if w.LastPrice != nil {
			fmt.Fprintf(&b, ", last %.2f", *w.LastPrice)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
