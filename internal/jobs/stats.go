package jobs

import (
	"context"
	"fmt"
	"sort"

	"steamwatch/internal/storage"
	logx "steamwatch/pkg/logx"
)

const topGamesLimit = 20

// GenerateLibraryStats builds today's library snapshot for every bound
// user: owned-game totals plus the playtime gained since yesterday's
// snapshot. Rerunning on the same day overwrites today's row.
func (s *Service) GenerateLibraryStats(ctx context.Context) error {
	bindings, err := s.store.Bindings(ctx)
	if err != nil {
		return fmt.Errorf("load bindings: %w", err)
	}
	set := s.settings()
	now := s.now().In(set.Location)
	today := now.Format("2006-01-02")
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")

	for _, b := range bindings {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.snapshotUser(ctx, b, today, yesterday); err != nil {
			s.log.Warn("library snapshot failed",
				logx.Int64("user", b.UserID), logx.Err(err))
		}
	}
	return nil
}

func (s *Service) snapshotUser(ctx context.Context, b storage.Binding, today, yesterday string) error {
	games, err := s.api.GetOwnedGames(ctx, b.SteamID)
	if err != nil {
		return fmt.Errorf("owned games: %w", err)
	}
	if len(games) == 0 {
		return nil
	}

	prev, err := s.store.Snapshot(ctx, b.UserID, yesterday)
	if err != nil {
		return fmt.Errorf("load previous snapshot: %w", err)
	}
	prevHours := map[int64]float64{}
	if prev != nil {
		for _, g := range prev.TopGames {
			prevHours[g.AppID] = g.Hours
		}
	}

	snap := storage.LibrarySnapshot{
		UserID:     b.UserID,
		Date:       today,
		TotalGames: len(games),
	}
	top := make([]storage.LibraryGame, 0, len(games))
	for _, g := range games {
		hours := float64(g.PlaytimeForever) / 60
		snap.TotalHours += hours
		// Per-game playtime never decreases; a negative delta means
		// yesterday's row tracked a different account state, so clamp.
		if delta := hours - prevHours[g.AppID]; prev != nil && delta > 0 {
			snap.DailyHours += delta
		}
		top = append(top, storage.LibraryGame{AppID: g.AppID, Name: g.Name, Hours: hours})
	}
	sort.Slice(top, func(i, j int) bool { return top[i].Hours > top[j].Hours })
	if len(top) > topGamesLimit {
		top = top[:topGamesLimit]
	}
	snap.TopGames = top

	return s.store.SaveSnapshot(ctx, snap)
}
