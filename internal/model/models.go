// Package model defines the data models persisted by the bingo bot.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Game outcomes as stored in bingo_games.outcome.
const (
	OutcomeCompleted = "completed"
	OutcomeAbandoned = "abandoned"
)

// GameRecord is a finished bingo session.
type GameRecord struct {
	ID         uuid.UUID `db:"id"`
	ChannelKey string    `db:"channel_key"`
	Outcome    string    `db:"outcome"`
	Called     []int32   `db:"called"`
	Winners    []string  `db:"winners"`
	StartedAt  time.Time `db:"started_at"`
	EndedAt    time.Time `db:"ended_at"`
}

// GamePlayer is one participant's final state in a finished session.
type GamePlayer struct {
	GameID   uuid.UUID `db:"game_id"`
	PlayerID string    `db:"player_id"`
	Name     string    `db:"name"`
	Auto     bool      `db:"auto"`
	Score    int       `db:"score"`
	Won      bool      `db:"won"`
}

// PlayerStats aggregates a player's completed games for the leaderboard.
type PlayerStats struct {
	PlayerID   string    `db:"player_id"`
	Name       string    `db:"name"`
	Games      int       `db:"games"`
	Wins       int       `db:"wins"`
	BestScore  int       `db:"best_score"`
	LastPlayed time.Time `db:"last_played"`
}

// WinRate returns the fraction of games won, 0 for players with no games.
func (s PlayerStats) WinRate() float64 {
	if s.Games == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Games)
}
