// Package commands implements the chat command surface. Each handler
// takes parsed arguments, talks to storage and the Steam client, and
// returns the reply text; the transport layer stays free of domain logic.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"steamwatch/internal/steam"
	"steamwatch/internal/storage"
	logx "steamwatch/pkg/logx"
)

var errNotBound = errors.New("not bound")

// steamAPI is the slice of the Steam client the command surface needs.
type steamAPI interface {
	GetPlayerAchievements(ctx context.Context, steamID string, appID int64) (steam.PlayerAchievements, error)
	GetSchemaForGame(ctx context.Context, appID int64) (steam.GameSchema, error)
	GetOwnedGames(ctx context.Context, steamID string) ([]steam.OwnedGame, error)
}

type Service struct {
	store storage.Store
	api   steamAPI
	log   logx.Logger
}

func New(store storage.Store, api steamAPI, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: store, api: api, log: log}
}

// Bind associates the caller with a Steam account. Rebinding overwrites.
func (s *Service) Bind(ctx context.Context, userID int64, steamID string) string {
	steamID = strings.TrimSpace(steamID)
	if !validSteamID(steamID) {
		return "❌ Invalid Steam ID. Expected the 17-digit SteamID64, e.g. 76561198000000000"
	}
	if err := s.store.Bind(ctx, userID, steamID); err != nil {
		s.log.Error("bind failed", logx.Int64("user", userID), logx.Err(err))
		return "❌ Could not save the binding, try again later"
	}
	return fmt.Sprintf("✅ Bound to Steam ID %s", steamID)
}

func validSteamID(id string) bool {
	if len(id) != 17 {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (s *Service) steamID(ctx context.Context, userID int64) (string, error) {
	id, ok, err := s.store.SteamID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errNotBound
	}
	return id, nil
}

const notBoundReply = "❌ You are not bound yet. Use /bind <steamid> first"
