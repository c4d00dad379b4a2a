package jobs

import (
	"context"
	"fmt"

	"steamwatch/internal/steam"
	"steamwatch/internal/storage"
	logx "steamwatch/pkg/logx"
)

// summariesBatch is the GetPlayerSummaries API limit per call.
const summariesBatch = 100

// MonitorFriends runs one presence pass over every bound user. A failure
// for one user is logged and does not stop the others; the pass itself
// only errors when the binding list cannot be read.
func (s *Service) MonitorFriends(ctx context.Context) error {
	bindings, err := s.store.Bindings(ctx)
	if err != nil {
		return fmt.Errorf("load bindings: %w", err)
	}
	for _, b := range bindings {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.monitorUser(ctx, b); err != nil {
			s.log.Warn("friend pass failed for user",
				logx.Int64("user", b.UserID), logx.Err(err))
		}
	}
	return nil
}

func (s *Service) monitorUser(ctx context.Context, b storage.Binding) error {
	friends, err := s.api.GetFriendList(ctx, b.SteamID)
	if err != nil {
		return fmt.Errorf("friend list: %w", err)
	}
	if len(friends) == 0 {
		return nil
	}

	ids := make([]string, 0, len(friends))
	for _, f := range friends {
		ids = append(ids, f.SteamID)
	}
	summaries, err := s.fetchSummaries(ctx, ids)
	if err != nil {
		return fmt.Errorf("player summaries: %w", err)
	}

	prefs, err := s.store.GroupPrefs(ctx, b.UserID)
	if err != nil {
		return fmt.Errorf("group prefs: %w", err)
	}

	for _, sum := range summaries {
		if err := s.observeFriend(ctx, b.UserID, sum, prefs); err != nil {
			s.log.Warn("friend observation failed",
				logx.Int64("user", b.UserID),
				logx.String("friend", sum.SteamID),
				logx.Err(err))
		}
	}
	return nil
}

func (s *Service) fetchSummaries(ctx context.Context, ids []string) ([]steam.PlayerSummary, error) {
	out := make([]steam.PlayerSummary, 0, len(ids))
	for start := 0; start < len(ids); start += summariesBatch {
		end := start + summariesBatch
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := s.api.GetPlayerSummaries(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
	}
	return out, nil
}

// observeFriend compares one summary against the stored state, notifies on
// a qualifying transition, and records the observation. The very first
// observation of a friend only establishes a baseline and never notifies.
func (s *Service) observeFriend(ctx context.Context, userID int64, sum steam.PlayerSummary, prefs []storage.GroupPref) error {
	prev, err := s.store.FriendState(ctx, userID, sum.SteamID)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	if prev != nil {
		statusChanged := steam.PersonaState(prev.State) == steam.StateOffline && sum.PersonaState.Online()
		gameChanged := sum.GameExtraInfo != "" && sum.GameExtraInfo != prev.Game
		if statusChanged || gameChanged {
			if err := s.notify.FriendStatus(ctx, userID, sum, statusChanged, gameChanged, prefs); err != nil {
				s.log.Warn("friend notify failed",
					logx.Int64("user", userID),
					logx.String("friend", sum.SteamID),
					logx.Err(err))
			}
		}
	}

	// The observation is recorded regardless of whether anything was sent,
	// so a dropped notification is never re-fired on the next tick.
	return s.store.UpsertFriendState(ctx, storage.FriendState{
		UserID:   userID,
		FriendID: sum.SteamID,
		State:    int(sum.PersonaState),
		Game:     sum.GameExtraInfo,
	})
}
