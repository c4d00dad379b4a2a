package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	logx "steamwatch/pkg/logx"
)

// Stats renders today's library snapshot for the caller. The snapshot is
// produced by the daily job; before the first run there is nothing to show.
func (s *Service) Stats(ctx context.Context, userID int64, loc *time.Location) string {
	if _, err := s.steamID(ctx, userID); err != nil {
		if errors.Is(err, errNotBound) {
			return notBoundReply
		}
		s.log.Error("stats lookup failed", logx.Int64("user", userID), logx.Err(err))
		return "❌ Could not load stats, try again later"
	}
	today := time.Now().In(loc).Format("2006-01-02")
	snap, err := s.store.Snapshot(ctx, userID, today)
	if err != nil {
		s.log.Error("snapshot lookup failed", logx.Int64("user", userID), logx.Err(err))
		return "❌ Could not load stats, try again later"
	}
	if snap == nil {
		return "📊 No statistics for today yet. The daily snapshot has not run."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 Library stats for %s\n", snap.Date)
	fmt.Fprintf(&b, "Games owned: %d\n", snap.TotalGames)
	fmt.Fprintf(&b, "Total playtime: %.1f h\n", snap.TotalHours)
	fmt.Fprintf(&b, "Played today: %.1f h\n", snap.DailyHours)
	if len(snap.TopGames) > 0 {
		b.WriteString("\nMost played:\n")
		limit := 5
		if len(snap.TopGames) < limit {
			limit = len(snap.TopGames)
		}
		for _, g := range snap.TopGames[:limit] {
			fmt.Fprintf(&b, "• %s: %.1f h\n", g.Name, g.Hours)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Achievements shows the caller's completion for one game, including up
// to five locked achievements resolved against the game schema.
func (s *Service) Achievements(ctx context.Context, userID int64, args []string) string {
	if len(args) < 1 {
		return "❌ Usage: /achievements <appid>"
	}
	appID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || appID <= 0 {
		return "❌ appid must be a positive number"
	}
	steamID, err := s.steamID(ctx, userID)
	if err != nil {
		if errors.Is(err, errNotBound) {
			return notBoundReply
		}
		s.log.Error("achievements lookup failed", logx.Int64("user", userID), logx.Err(err))
		return "❌ Could not load achievements, try again later"
	}

	stats, err := s.api.GetPlayerAchievements(ctx, steamID, appID)
	if err != nil {
		s.log.Warn("achievements fetch failed", logx.Int64("app", appID), logx.Err(err))
		return "❌ Could not fetch achievements. The game may have none, or the profile is private."
	}
	if len(stats.Achievements) == 0 {
		return "❌ This game has no achievements, or the profile is private."
	}

	name := stats.GameName
	if name == "" {
		name = fmt.Sprintf("AppID %d", appID)
	}
	completed := 0
	for _, a := range stats.Achievements {
		if a.Achieved == 1 {
			completed++
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏆 %s\n", name)
	fmt.Fprintf(&b, "Completed: %d/%d (%.0f%%)\n",
		completed, len(stats.Achievements),
		float64(completed)/float64(len(stats.Achievements))*100)

	if completed < len(stats.Achievements) {
		// Schema lookup is best-effort; fall back to API names.
		display := map[string]string{}
		if schema, err := s.api.GetSchemaForGame(ctx, appID); err == nil {
			for _, a := range schema.Stats.Achievements {
				display[a.Name] = a.DisplayName
			}
		}
		b.WriteString("\nStill locked:\n")
		shown := 0
		for _, a := range stats.Achievements {
			if a.Achieved == 1 {
				continue
			}
			title := display[a.APIName]
			if title == "" {
				title = a.APIName
			}
			fmt.Fprintf(&b, "• %s\n", title)
			if shown++; shown == 5 {
				break
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
