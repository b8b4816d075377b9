// Package handler provides the bot command handlers and the reply texts
// shared by every chat platform.
package handler

import (
	"errors"
	"fmt"
	"strings"

	"bingo-bot/internal/game"
	"bingo-bot/internal/game/bingo"
	"bingo-bot/internal/model"
)

// ErrorReply maps engine errors to user-facing replies.
func ErrorReply(err error) string {
	switch {
	case errors.Is(err, bingo.ErrSessionAlreadyActive):
		return "❌ A bingo game is already running in this channel"
	case errors.Is(err, bingo.ErrNoActiveSession):
		return "❌ There is no bingo game running in this channel"
	case errors.Is(err, bingo.ErrNotAParticipant):
		return "❌ You are not playing in this game"
	case errors.Is(err, bingo.ErrNoParticipants):
		return "❌ Invite at least one player or add auto to play against the bot"
	case errors.Is(err, bingo.ErrPlayerBusy):
		return "❌ Someone in this game is already playing bingo in another chat"
	case errors.Is(err, bingo.ErrParticipantUnreachable):
		return "❌ I could not send everyone their chart. Every player must open a private chat with me first"
	default:
		return "❌ Something went wrong, please try again later"
	}
}

// StatusReply describes a running session.
func StatusReply(s bingo.Snapshot) string {
	var b strings.Builder
	b.WriteString("🎱 ")
	b.WriteString(bingo.TextRenderer{}.Scoreboard(s).Text)
	if s.Current != 0 {
		fmt.Fprintf(&b, "\nLast call: %d", s.Current)
	}
	fmt.Fprintf(&b, "\nTurn: %s", s.Turn)
	return b.String()
}

// TopReply renders the leaderboard.
func TopReply(stats []model.PlayerStats) string {
	msg := "🏆 Bingo leaderboard\n"
	msg += "━━━━━━━━━━━━━━━\n"

	if len(stats) == 0 {
		return msg + "No games played yet"
	}

	medals := []string{"🥇", "🥈", "🥉"}
	for i, s := range stats {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}

		name := s.Name
		if name == "" {
			name = s.PlayerID
		}
		msg += fmt.Sprintf("%s %s: %d wins / %d games (%.0f%%)\n", rank, name, s.Wins, s.Games, s.WinRate()*100)
	}
	return strings.TrimRight(msg, "\n")
}

// StatsReply renders one player's stats.
func StatsReply(name string, s *model.PlayerStats) string {
	if s == nil || s.Games == 0 {
		return fmt.Sprintf("📊 %s has not finished a bingo game yet", name)
	}
	return fmt.Sprintf("📊 %s\nGames: %d\nWins: %d (%.0f%%)\nBest score: %d lines",
		name, s.Games, s.Wins, s.WinRate()*100, s.BestScore)
}

// HistoryReply renders the latest games of a channel.
func HistoryReply(games []model.GameRecord) string {
	msg := "📜 Recent bingo games\n"
	msg += "━━━━━━━━━━━━━━━\n"

	if len(games) == 0 {
		return msg + "No games played yet"
	}
	for _, g := range games {
		result := "abandoned"
		if g.Outcome == model.OutcomeCompleted {
			result = fmt.Sprintf("won by %d player(s)", len(g.Winners))
		}
		msg += fmt.Sprintf("%s: %s after %d calls\n", g.EndedAt.Format("2006-01-02 15:04"), result, len(g.Called))
	}
	return strings.TrimRight(msg, "\n")
}

// HelpReply lists the registered games using the platform's command prefix.
func HelpReply(games []game.Game, prefix string) string {
	var b strings.Builder
	b.WriteString("🎮 Games\n")
	for _, g := range games {
		fmt.Fprintf(&b, "%s%s - %s\n", prefix, g.Command(), g.Description())
	}
	if len(games) == 0 {
		b.WriteString("No games available\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
