package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"bingo-bot/internal/config"
	"bingo-bot/internal/game"
	"bingo-bot/internal/game/bingo"
	"bingo-bot/internal/handler"
	"bingo-bot/internal/service"
)

// Prefix starts every Discord bingo command.
const Prefix = "!bingo"

// Router turns Discord messages into engine operations.
type Router struct {
	cfg      *config.Config
	engine   *bingo.Engine
	gateway  *Gateway
	registry *game.Registry
	stats    *service.StatsService // nil when the database is disabled
}

// NewRouter creates a new Router.
func NewRouter(cfg *config.Config, engine *bingo.Engine, gw *Gateway, registry *game.Registry, stats *service.StatsService) *Router {
	return &Router{
		cfg:      cfg,
		engine:   engine,
		gateway:  gw,
		registry: registry,
		stats:    stats,
	}
}

// OnMessageCreate is the discordgo handler for new messages.
func (r *Router) OnMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	r.Handle(context.Background(), m.Message)
}

// Handle routes one message: commands go to the engine, anything else is
// offered to players waiting for their turn.
func (r *Router) Handle(ctx context.Context, m *discordgo.Message) {
	if m == nil || m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID != "" && !r.cfg.IsChatAllowed(m.GuildID) && !r.cfg.IsChatAllowed(m.ChannelID) {
		return
	}

	fields := strings.Fields(m.Content)
	if len(fields) == 0 || !strings.EqualFold(fields[0], Prefix) {
		if !r.gateway.Dispatch(m) && r.gateway.Pending() > 0 {
			log.Debug().
				Str("user_id", m.Author.ID).
				Str("channel_id", m.ChannelID).
				Int("pending", r.gateway.Pending()).
				Msg("Message matched no pending turn")
		}
		return
	}

	log.Debug().
		Str("user_id", m.Author.ID).
		Str("guild_id", m.GuildID).
		Str("channel_id", m.ChannelID).
		Str("text", m.Content).
		Msg("Received command")

	key := ChannelKey(m.GuildID, m.ChannelID)
	sub := ""
	if len(fields) > 1 {
		sub = strings.ToLower(fields[1])
	}

	var reply string
	switch sub {
	case "quit":
		reply = r.quit(ctx, key, m.Author)
	case "status":
		reply = r.status(key)
	case "top":
		reply = r.top(ctx)
	case "stats":
		reply = r.playerStats(ctx, m.Author)
	case "history":
		reply = r.history(ctx, key)
	case "abort":
		reply = r.abort(ctx, key, m.Author)
	case "help":
		reply = handler.HelpReply(r.registry.List(), "!")
	default:
		reply = r.start(ctx, key, m, fields[1:])
	}
	if reply == "" {
		return
	}
	if err := r.gateway.SendToChannel(ctx, key, bingo.Message{Text: reply}); err != nil {
		log.Warn().Err(err).Str("channel", string(key)).Msg("Failed to reply")
	}
}

func (r *Router) start(ctx context.Context, key bingo.ChannelKey, m *discordgo.Message, args []string) string {
	if m.GuildID == "" {
		return "❌ Bingo is played in server channels"
	}

	_, auto := handler.ParseStartArgs(args)
	var invitees []bingo.Player
	for _, u := range m.Mentions {
		if u == nil || u.Bot || u.ID == m.Author.ID {
			continue
		}
		invitees = append(invitees, Player(u))
	}

	ctx, cancel := context.WithTimeout(ctx, handler.StartTimeout)
	defer cancel()

	s, err := r.engine.Start(ctx, bingo.StartRequest{
		Key:       key,
		Requester: Player(m.Author),
		Invitees:  invitees,
		WithAuto:  auto,
	})
	if err != nil {
		log.Info().Err(err).Str("channel", string(key)).Str("user_id", m.Author.ID).Msg("Bingo start rejected")
		return handler.ErrorReply(err)
	}
	log.Info().Str("game_id", s.ID).Str("channel", string(key)).Msg("Bingo game started")
	return ""
}

func (r *Router) quit(ctx context.Context, key bingo.ChannelKey, u *discordgo.User) string {
	if err := r.engine.Quit(ctx, key, bingo.PlayerID(u.ID)); err != nil {
		return handler.ErrorReply(err)
	}
	return fmt.Sprintf("🛑 %s left, the bingo game is over", u.DisplayName())
}

func (r *Router) status(key bingo.ChannelKey) string {
	snap, err := r.engine.Snapshot(key)
	if err != nil {
		return handler.ErrorReply(err)
	}
	return handler.StatusReply(snap)
}

func (r *Router) abort(ctx context.Context, key bingo.ChannelKey, u *discordgo.User) string {
	if !r.cfg.IsAdmin(u.ID) {
		log.Warn().Str("user_id", u.ID).Msg("Non-admin attempted admin command")
		return "❌ Only admins can do that"
	}
	if err := r.engine.Abort(ctx, key); err != nil {
		return handler.ErrorReply(err)
	}
	return "🛑 The bingo game was stopped by an admin"
}

func (r *Router) top(ctx context.Context) string {
	if r.stats == nil {
		return "❌ The leaderboard is not available"
	}
	top, err := r.stats.TopPlayers(ctx, service.DefaultTopLimit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load leaderboard")
		return "❌ Failed to load the leaderboard, please try again later"
	}
	return handler.TopReply(top)
}

func (r *Router) playerStats(ctx context.Context, u *discordgo.User) string {
	if r.stats == nil {
		return "❌ Stats are not available"
	}
	stats, err := r.stats.PlayerStats(ctx, bingo.PlayerID(u.ID))
	if err != nil {
		log.Error().Err(err).Str("user_id", u.ID).Msg("Failed to load player stats")
		return "❌ Failed to load your stats, please try again later"
	}
	return handler.StatsReply(u.DisplayName(), stats)
}

func (r *Router) history(ctx context.Context, key bingo.ChannelKey) string {
	if r.stats == nil {
		return "❌ History is not available"
	}
	games, err := r.stats.RecentGames(ctx, key, handler.HistoryLimit)
	if err != nil {
		log.Error().Err(err).Str("channel", string(key)).Msg("Failed to load game history")
		return "❌ Failed to load the history, please try again later"
	}
	return handler.HistoryReply(games)
}
