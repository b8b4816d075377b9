package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"bingo-bot/internal/game"
	"bingo-bot/internal/game/bingo"
	"bingo-bot/internal/gateway/telegram"
)

// StartTimeout bounds dealing charts when a game is started.
const StartTimeout = 30 * time.Second

// BingoHandler handles the Telegram bingo commands.
type BingoHandler struct {
	engine    *bingo.Engine
	gateway   *telegram.Gateway
	directory *telegram.Directory
	registry  *game.Registry
}

// NewBingoHandler creates a new BingoHandler.
func NewBingoHandler(
	engine *bingo.Engine,
	gateway *telegram.Gateway,
	directory *telegram.Directory,
	registry *game.Registry,
) *BingoHandler {
	return &BingoHandler{
		engine:    engine,
		gateway:   gateway,
		directory: directory,
		registry:  registry,
	}
}

// HandleStart handles the /bingo command.
// Format: /bingo [@user ...] [auto], or /bingo as a reply to invite its author.
func (h *BingoHandler) HandleStart(c tele.Context) error {
	chat, sender := c.Chat(), c.Sender()
	if chat == nil || sender == nil {
		return nil
	}
	if chat.Type == tele.ChatPrivate {
		return c.Reply("❌ Bingo is played in group chats")
	}

	usernames, auto := ParseStartArgs(c.Args())
	invitees, missing := h.invitees(c.Message(), usernames)
	if len(missing) > 0 {
		return c.Reply(fmt.Sprintf("❌ I don't know @%s yet. They need to say something in this chat first", missing[0]))
	}

	ctx, cancel := context.WithTimeout(context.Background(), StartTimeout)
	defer cancel()

	s, err := h.engine.Start(ctx, bingo.StartRequest{
		Key:       telegram.ChannelKey(chat),
		Requester: telegram.Player(sender),
		Invitees:  invitees,
		WithAuto:  auto,
	})
	if err != nil {
		log.Info().
			Err(err).
			Int64("chat_id", chat.ID).
			Int64("user_id", sender.ID).
			Msg("Bingo start rejected")
		return c.Reply(ErrorReply(err))
	}

	log.Info().
		Str("game_id", s.ID).
		Int64("chat_id", chat.ID).
		Int("players", len(s.Players())).
		Msg("Bingo game started")
	return nil
}

// invitees resolves @usernames, text mentions and the replied-to author.
func (h *BingoHandler) invitees(msg *tele.Message, usernames []string) (players []bingo.Player, missing []string) {
	for _, name := range usernames {
		u, ok := h.directory.Lookup(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		players = append(players, telegram.Player(u))
	}
	if msg == nil {
		return players, missing
	}

	// Users without a username are mentioned by entity.
	for _, e := range msg.Entities {
		if e.Type == tele.EntityTMention && e.User != nil && !e.User.IsBot {
			players = append(players, telegram.Player(e.User))
		}
	}
	if msg.ReplyTo != nil && msg.ReplyTo.Sender != nil && !msg.ReplyTo.Sender.IsBot {
		players = append(players, telegram.Player(msg.ReplyTo.Sender))
	}
	return players, missing
}

// HandleQuit handles the /bingo_quit command.
func (h *BingoHandler) HandleQuit(c tele.Context) error {
	chat, sender := c.Chat(), c.Sender()
	if chat == nil || sender == nil {
		return nil
	}

	err := h.engine.Quit(context.Background(), telegram.ChannelKey(chat), telegram.PlayerID(sender))
	if err != nil {
		return c.Reply(ErrorReply(err))
	}
	return c.Send(fmt.Sprintf("🛑 %s left, the bingo game is over", telegram.Player(sender)))
}

// HandleStatus handles the /bingo_status command.
func (h *BingoHandler) HandleStatus(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}

	snap, err := h.engine.Snapshot(telegram.ChannelKey(chat))
	if err != nil {
		return c.Reply(ErrorReply(err))
	}
	return c.Reply(StatusReply(snap))
}

// HandleAbort handles the /bingo_abort admin command.
func (h *BingoHandler) HandleAbort(c tele.Context) error {
	chat, sender := c.Chat(), c.Sender()
	if chat == nil || sender == nil {
		return nil
	}

	if err := h.engine.Abort(context.Background(), telegram.ChannelKey(chat)); err != nil {
		return c.Reply(ErrorReply(err))
	}

	log.Info().
		Int64("chat_id", chat.ID).
		Int64("admin_id", sender.ID).
		Msg("Bingo game aborted by admin")
	return c.Send("🛑 The bingo game was stopped by an admin")
}

// HandleHelp handles the /help command.
func (h *BingoHandler) HandleHelp(c tele.Context) error {
	return c.Reply(HelpReply(h.registry.List(), "/"))
}

// HandleText offers plain messages to players waiting for their turn.
func (h *BingoHandler) HandleText(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if h.gateway.Dispatch(c) {
		log.Debug().
			Int64("user_id", sender.ID).
			Msg("Reply delivered to bingo session")
	} else if n := h.gateway.Pending(); n > 0 {
		log.Debug().
			Int64("user_id", sender.ID).
			Int("pending", n).
			Msg("Message matched no pending turn")
	}
	return nil
}
