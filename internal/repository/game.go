package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bingo-bot/internal/model"
)

// GameRepository handles finished game persistence.
type GameRepository struct {
	pool *pgxpool.Pool
}

// NewGameRepository creates a new GameRepository instance.
func NewGameRepository(pool *pgxpool.Pool) *GameRepository {
	return &GameRepository{pool: pool}
}

// Save stores a game together with its players in one transaction.
func (r *GameRepository) Save(ctx context.Context, game *model.GameRecord, players []model.GamePlayer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const gameQuery = `
		INSERT INTO bingo_games (id, channel_key, outcome, called, winners, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.Exec(ctx, gameQuery,
		game.ID, game.ChannelKey, game.Outcome, game.Called, game.Winners, game.StartedAt, game.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save game: %w", err)
	}

	const playerQuery = `
		INSERT INTO bingo_players (game_id, player_id, name, auto, score, won)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	batch := &pgx.Batch{}
	for _, p := range players {
		batch.Queue(playerQuery, game.ID, p.PlayerID, p.Name, p.Auto, p.Score, p.Won)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save game players: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit game: %w", err)
	}
	return nil
}

// ListByChannel returns the most recent games played in a channel.
func (r *GameRepository) ListByChannel(ctx context.Context, channelKey string, limit int) ([]model.GameRecord, error) {
	const query = `
		SELECT id, channel_key, outcome, called, winners, started_at, ended_at
		FROM bingo_games
		WHERE channel_key = $1
		ORDER BY ended_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, channelKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	games, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.GameRecord])
	if err != nil {
		return nil, fmt.Errorf("failed to scan games: %w", err)
	}
	return games, nil
}
