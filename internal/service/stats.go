// Package service provides business logic implementations.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"bingo-bot/internal/game/bingo"
	"bingo-bot/internal/model"
)

// DefaultTopLimit is the leaderboard size when none is given.
const DefaultTopLimit = 10

// GameStore persists finished games.
type GameStore interface {
	Save(ctx context.Context, game *model.GameRecord, players []model.GamePlayer) error
	ListByChannel(ctx context.Context, channelKey string, limit int) ([]model.GameRecord, error)
}

// PlayerStore answers per-player queries.
type PlayerStore interface {
	Stats(ctx context.Context, playerID string) (*model.PlayerStats, error)
	Top(ctx context.Context, limit int) ([]model.PlayerStats, error)
}

// StatsService records finished bingo sessions and serves the leaderboard.
// It implements bingo.Recorder.
type StatsService struct {
	games   GameStore
	players PlayerStore
}

// NewStatsService creates a new StatsService instance.
func NewStatsService(games GameStore, players PlayerStore) *StatsService {
	return &StatsService{games: games, players: players}
}

var _ bingo.Recorder = (*StatsService)(nil)

// RecordGame stores a finished session.
func (s *StatsService) RecordGame(ctx context.Context, r bingo.Result) error {
	game, players, err := toRecord(r)
	if err != nil {
		return err
	}
	if err := s.games.Save(ctx, game, players); err != nil {
		return err
	}

	log.Debug().
		Str("game_id", r.ID).
		Str("channel", string(r.Key)).
		Str("outcome", string(r.Outcome)).
		Int("players", len(players)).
		Msg("Game recorded")
	return nil
}

// TopPlayers returns the leaderboard. Non-positive limits use DefaultTopLimit.
func (s *StatsService) TopPlayers(ctx context.Context, limit int) ([]model.PlayerStats, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	return s.players.Top(ctx, limit)
}

// PlayerStats returns one player's aggregated stats.
func (s *StatsService) PlayerStats(ctx context.Context, playerID bingo.PlayerID) (*model.PlayerStats, error) {
	return s.players.Stats(ctx, string(playerID))
}

// RecentGames returns the latest games played in a channel.
func (s *StatsService) RecentGames(ctx context.Context, key bingo.ChannelKey, limit int) ([]model.GameRecord, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}
	return s.games.ListByChannel(ctx, string(key), limit)
}

// toRecord converts an engine result into database rows.
func toRecord(r bingo.Result) (*model.GameRecord, []model.GamePlayer, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid game id %q: %w", r.ID, err)
	}

	won := make(map[bingo.PlayerID]bool, len(r.Winners))
	winners := make([]string, 0, len(r.Winners))
	for _, w := range r.Winners {
		won[w.ID] = true
		winners = append(winners, string(w.ID))
	}

	called := make([]int32, len(r.Called))
	for i, n := range r.Called {
		called[i] = int32(n)
	}

	game := &model.GameRecord{
		ID:         id,
		ChannelKey: string(r.Key),
		Outcome:    string(r.Outcome),
		Called:     called,
		Winners:    winners,
		StartedAt:  r.StartedAt,
		EndedAt:    r.EndedAt,
	}

	players := make([]model.GamePlayer, len(r.Players))
	for i, p := range r.Players {
		players[i] = model.GamePlayer{
			GameID:   id,
			PlayerID: string(p.ID),
			Name:     p.String(),
			Auto:     p.Auto,
			Score:    p.Score,
			Won:      won[p.ID],
		}
	}
	return game, players, nil
}
