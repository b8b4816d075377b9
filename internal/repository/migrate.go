// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "bingo_games table",
		sql: `
			CREATE TABLE IF NOT EXISTS bingo_games (
				id UUID PRIMARY KEY,
				channel_key VARCHAR(255) NOT NULL,
				outcome VARCHAR(20) NOT NULL,
				called INT[] NOT NULL DEFAULT '{}',
				winners TEXT[] NOT NULL DEFAULT '{}',
				started_at TIMESTAMPTZ NOT NULL,
				ended_at TIMESTAMPTZ NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_bingo_games_channel ON bingo_games(channel_key, ended_at DESC);
		`,
	},
	{
		name: "bingo_players table",
		sql: `
			CREATE TABLE IF NOT EXISTS bingo_players (
				game_id UUID NOT NULL REFERENCES bingo_games(id) ON DELETE CASCADE,
				player_id VARCHAR(64) NOT NULL,
				name VARCHAR(255) NOT NULL,
				auto BOOLEAN NOT NULL DEFAULT FALSE,
				score INT NOT NULL,
				won BOOLEAN NOT NULL,
				PRIMARY KEY (game_id, player_id)
			);
			CREATE INDEX IF NOT EXISTS idx_bingo_players_player ON bingo_players(player_id);
		`,
	},
}

// Migrate applies the database schema. It is safe to run repeatedly.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")
	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("migration", i+1).Msgf("Migration %d: %s created", i+1, m.name)
	}
	return nil
}
