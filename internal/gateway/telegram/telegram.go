// Package telegram implements the bingo gateway on top of telebot.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v3"

	"bingo-bot/internal/game/bingo"
	"bingo-bot/internal/gateway"
)

// Sender is the subset of the telebot API the gateway sends through.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Gateway delivers bingo messages through a Telegram bot.
// Channel keys are chat IDs and player IDs are user IDs, both in decimal.
type Gateway struct {
	sender  Sender
	waiters *gateway.Waiters
}

// New creates a gateway sending through s.
func New(s Sender) *Gateway {
	return &Gateway{sender: s, waiters: gateway.NewWaiters()}
}

// ChannelKey returns the key of a Telegram chat.
func ChannelKey(chat *tele.Chat) bingo.ChannelKey {
	return bingo.ChannelKey(strconv.FormatInt(chat.ID, 10))
}

// PlayerID returns the ID of a Telegram user.
func PlayerID(u *tele.User) bingo.PlayerID {
	return bingo.PlayerID(strconv.FormatInt(u.ID, 10))
}

// Player converts a Telegram user to a bingo player.
func Player(u *tele.User) bingo.Player {
	name := u.Username
	if name != "" {
		name = "@" + name
	} else {
		name = u.FirstName
	}
	return bingo.Player{ID: PlayerID(u), Name: name}
}

// SendToChannel posts msg to the chat identified by key.
func (g *Gateway) SendToChannel(ctx context.Context, key bingo.ChannelKey, msg bingo.Message) error {
	return g.send(ctx, string(key), msg)
}

// SendPrivately posts msg to the user's private chat with the bot.
func (g *Gateway) SendPrivately(ctx context.Context, id bingo.PlayerID, msg bingo.Message) error {
	return g.send(ctx, string(id), msg)
}

// AwaitReply waits for a message from id that accept takes.
func (g *Gateway) AwaitReply(ctx context.Context, id bingo.PlayerID, accept func(bingo.Reply) bool, timeout time.Duration) (bingo.Reply, error) {
	return g.waiters.Await(ctx, id, accept, timeout)
}

// Pending returns the number of turns waiting for a reply.
func (g *Gateway) Pending() int {
	return g.waiters.Len()
}

// Dispatch offers an incoming text message to pending waits.
// It reports whether the message was consumed.
func (g *Gateway) Dispatch(c tele.Context) bool {
	sender, chat := c.Sender(), c.Chat()
	if sender == nil || chat == nil {
		return false
	}
	return g.waiters.Dispatch(bingo.Reply{
		From:    PlayerID(sender),
		Channel: ChannelKey(chat),
		Private: chat.Type == tele.ChatPrivate,
		Text:    c.Text(),
	})
}

func (g *Gateway) send(ctx context.Context, target string, msg bingo.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", target, err)
	}

	var what interface{} = msg.Text
	if len(msg.Image) > 0 {
		what = &tele.Photo{
			File:    tele.FromReader(bytes.NewReader(msg.Image)),
			Caption: msg.Text,
		}
	}
	if _, err := g.sender.Send(tele.ChatID(id), what); err != nil {
		return mapError(err)
	}
	return nil
}

// mapError translates Telegram's "forbidden" family into ErrPermissionDenied.
func mapError(err error) error {
	if errors.Is(err, tele.ErrBlockedByUser) || errors.Is(err, tele.ErrNotStartedByUser) {
		return fmt.Errorf("%w: %w", bingo.ErrPermissionDenied, err)
	}
	var terr *tele.Error
	if errors.As(err, &terr) && terr.Code == 403 {
		return fmt.Errorf("%w: %w", bingo.ErrPermissionDenied, err)
	}
	return err
}
