// Package bot provides the chat bot initialization and handler registration.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"bingo-bot/internal/config"
	"bingo-bot/internal/discord"
	"bingo-bot/internal/game"
	"bingo-bot/internal/game/bingo"
	"bingo-bot/internal/gateway/telegram"
	"bingo-bot/internal/handler"
	"bingo-bot/internal/service"
)

// Runner is a chat bot that serves until its context is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config   *config.Config
	Engine   *bingo.Engine
	Registry *game.Registry
	Stats    *service.StatsService // nil when the database is disabled
}

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot     *tele.Bot
	cfg     *config.Config
	gateway *telegram.Gateway
	users   *PrivateUsers
	dir     *telegram.Directory

	// Handlers
	bingoHandler   *handler.BingoHandler
	rankingHandler *handler.RankingHandler
}

// NewTelegramBot creates the telebot instance and the gateway the engine
// sends through. The engine is attached with Attach once it exists.
func NewTelegramBot(cfg *config.Config) (*Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.Error().Err(err).Str("text", c.Text()).Msg("Handler failed")
		},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &Bot{
		bot:     teleBot,
		cfg:     cfg,
		gateway: telegram.New(teleBot),
		users:   NewPrivateUsers(),
		dir:     telegram.NewDirectory(),
	}, nil
}

// Gateway returns the gateway the engine should deliver through.
func (b *Bot) Gateway() *telegram.Gateway {
	return b.gateway
}

// Attach wires the handlers to the engine and registers them.
func (b *Bot) Attach(deps *Dependencies) {
	b.bingoHandler = handler.NewBingoHandler(deps.Engine, b.gateway, b.dir, deps.Registry)
	b.rankingHandler = handler.NewRankingHandler(deps.Stats)

	// Register middleware
	b.registerMiddleware()

	// Register handlers
	b.registerHandlers()
}

// registerMiddleware registers all middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(LoggingMiddleware())
	b.bot.Use(DirectoryMiddleware(b.cfg, b.dir))
}

// registerHandlers registers all command handlers.
func (b *Bot) registerHandlers() {
	commands := b.bot.Group()
	commands.Use(WhitelistMiddleware(b.cfg, b.users))
	commands.Handle("/bingo", b.bingoHandler.HandleStart)
	commands.Handle("/bingo_quit", b.bingoHandler.HandleQuit)
	commands.Handle("/bingo_status", b.bingoHandler.HandleStatus)
	commands.Handle("/bingo_top", b.rankingHandler.HandleTop)
	commands.Handle("/bingo_stats", b.rankingHandler.HandleMyStats)
	commands.Handle("/bingo_history", b.rankingHandler.HandleHistory)
	commands.Handle("/help", b.bingoHandler.HandleHelp)
	commands.Handle("/start", b.bingoHandler.HandleHelp)

	// Admin handlers (with admin middleware)
	adminGroup := b.bot.Group()
	adminGroup.Use(WhitelistMiddleware(b.cfg, b.users), AdminMiddleware(b.cfg))
	adminGroup.Handle("/bingo_abort", b.bingoHandler.HandleAbort)

	// Turn replies come from group chats and private chats alike; the
	// waiters only accept numbers from the player whose turn it is.
	b.bot.Handle(tele.OnText, b.bingoHandler.HandleText)
}

// Run starts polling and stops when ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting Telegram bot...")
	go b.bot.Start()

	<-ctx.Done()
	log.Info().Msg("Stopping Telegram bot...")
	b.bot.Stop()
	return nil
}

// DiscordBot runs the !bingo router on a Discord session.
type DiscordBot struct {
	session *discordgo.Session
	gateway *discord.Gateway
}

// NewDiscordBot creates the Discord session and gateway.
func NewDiscordBot(cfg *config.Config) (*DiscordBot, error) {
	if cfg.Bot.DiscordToken == "" {
		return nil, fmt.Errorf("discord token is required")
	}

	session, err := discordgo.New("Bot " + cfg.Bot.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &DiscordBot{session: session, gateway: discord.NewGateway(session)}, nil
}

// Gateway returns the gateway the engine should deliver through.
func (d *DiscordBot) Gateway() *discord.Gateway {
	return d.gateway
}

// Attach registers the command router.
func (d *DiscordBot) Attach(deps *Dependencies) {
	router := discord.NewRouter(deps.Config, deps.Engine, d.gateway, deps.Registry, deps.Stats)
	d.session.AddHandler(router.OnMessageCreate)
}

// Run opens the gateway connection and closes it when ctx is done.
func (d *DiscordBot) Run(ctx context.Context) error {
	log.Info().Msg("Starting Discord bot...")
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	<-ctx.Done()
	log.Info().Msg("Stopping Discord bot...")
	return d.session.Close()
}
