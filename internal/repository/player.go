package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bingo-bot/internal/model"
)

// PlayerRepository answers per-player queries over finished games.
// Only completed games count towards stats; auto players are excluded.
type PlayerRepository struct {
	pool *pgxpool.Pool
}

// NewPlayerRepository creates a new PlayerRepository instance.
func NewPlayerRepository(pool *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{pool: pool}
}

const statsSelect = `
	SELECT
		p.player_id,
		(ARRAY_AGG(p.name ORDER BY g.ended_at DESC))[1] AS name,
		COUNT(*)::INT AS games,
		COUNT(*) FILTER (WHERE p.won)::INT AS wins,
		MAX(p.score)::INT AS best_score,
		MAX(g.ended_at) AS last_played
	FROM bingo_players p
	JOIN bingo_games g ON g.id = p.game_id
	WHERE g.outcome = 'completed' AND NOT p.auto
`

// Stats returns the aggregated stats of one player.
// A player with no completed games gets zero stats.
func (r *PlayerRepository) Stats(ctx context.Context, playerID string) (*model.PlayerStats, error) {
	query := statsSelect + `
		AND p.player_id = $1
		GROUP BY p.player_id
	`

	rows, err := r.pool.Query(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player stats: %w", err)
	}
	stats, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.PlayerStats])
	if err != nil {
		return nil, fmt.Errorf("failed to scan player stats: %w", err)
	}
	if len(stats) == 0 {
		return &model.PlayerStats{PlayerID: playerID}, nil
	}
	return &stats[0], nil
}

// Top returns players ordered by wins; ties go to the player with fewer games.
func (r *PlayerRepository) Top(ctx context.Context, limit int) ([]model.PlayerStats, error) {
	query := statsSelect + `
		GROUP BY p.player_id
		ORDER BY wins DESC, games ASC, last_played DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top players: %w", err)
	}
	stats, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.PlayerStats])
	if err != nil {
		return nil, fmt.Errorf("failed to scan top players: %w", err)
	}
	return stats, nil
}
