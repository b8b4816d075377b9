package handler

import (
	"context"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"bingo-bot/internal/gateway/telegram"
	"bingo-bot/internal/service"
)

// HistoryLimit is the number of games /bingo_history shows.
const HistoryLimit = 5

// RankingHandler handles leaderboard commands.
type RankingHandler struct {
	stats *service.StatsService
}

// NewRankingHandler creates a new RankingHandler. stats may be nil when the
// database is disabled.
func NewRankingHandler(stats *service.StatsService) *RankingHandler {
	return &RankingHandler{stats: stats}
}

// HandleTop handles the /bingo_top command.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	if h.stats == nil {
		return c.Reply("❌ The leaderboard is not available")
	}

	top, err := h.stats.TopPlayers(context.Background(), service.DefaultTopLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load leaderboard")
		return c.Reply("❌ Failed to load the leaderboard, please try again later")
	}
	return c.Reply(TopReply(top))
}

// HandleMyStats handles the /bingo_stats command.
func (h *RankingHandler) HandleMyStats(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if h.stats == nil {
		return c.Reply("❌ Stats are not available")
	}

	stats, err := h.stats.PlayerStats(context.Background(), telegram.PlayerID(sender))
	if err != nil {
		log.Error().Err(err).Int64("user_id", sender.ID).Msg("Failed to load player stats")
		return c.Reply("❌ Failed to load your stats, please try again later")
	}
	return c.Reply(StatsReply(telegram.Player(sender).String(), stats))
}

// HandleHistory handles the /bingo_history command.
func (h *RankingHandler) HandleHistory(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	if h.stats == nil {
		return c.Reply("❌ History is not available")
	}

	games, err := h.stats.RecentGames(context.Background(), telegram.ChannelKey(chat), HistoryLimit)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", chat.ID).Msg("Failed to load game history")
		return c.Reply("❌ Failed to load the history, please try again later")
	}
	return c.Reply(HistoryReply(games))
}
