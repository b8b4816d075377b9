// Package discord runs bingo on Discord: a gateway over discordgo and the
// !bingo command router.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"bingo-bot/internal/game/bingo"
	"bingo-bot/internal/gateway"
)

// API is the subset of *discordgo.Session the gateway sends through.
type API interface {
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Gateway delivers bingo messages through Discord.
// Channel keys are "guildID#channelID"; player IDs are user snowflakes.
type Gateway struct {
	api     API
	waiters *gateway.Waiters

	mu  sync.Mutex
	dms map[bingo.PlayerID]string // user -> DM channel
}

// NewGateway creates a gateway sending through api.
func NewGateway(api API) *Gateway {
	return &Gateway{
		api:     api,
		waiters: gateway.NewWaiters(),
		dms:     make(map[bingo.PlayerID]string),
	}
}

// ChannelKey returns the key of a guild channel. Direct messages have an
// empty guild.
func ChannelKey(guildID, channelID string) bingo.ChannelKey {
	return bingo.ChannelKey(guildID + "#" + channelID)
}

func channelOf(key bingo.ChannelKey) string {
	k := string(key)
	if i := strings.LastIndexByte(k, '#'); i >= 0 {
		return k[i+1:]
	}
	return k
}

// Player converts a Discord user to a bingo player.
func Player(u *discordgo.User) bingo.Player {
	return bingo.Player{ID: bingo.PlayerID(u.ID), Name: u.DisplayName()}
}

// SendToChannel posts msg to the channel identified by key.
func (g *Gateway) SendToChannel(ctx context.Context, key bingo.ChannelKey, msg bingo.Message) error {
	return g.send(ctx, channelOf(key), msg)
}

// SendPrivately opens (or reuses) the user's DM channel and posts msg there.
func (g *Gateway) SendPrivately(ctx context.Context, id bingo.PlayerID, msg bingo.Message) error {
	ch, err := g.dmChannel(ctx, id)
	if err != nil {
		return err
	}
	return g.send(ctx, ch, msg)
}

// AwaitReply waits for a message from id that accept takes.
func (g *Gateway) AwaitReply(ctx context.Context, id bingo.PlayerID, accept func(bingo.Reply) bool, timeout time.Duration) (bingo.Reply, error) {
	return g.waiters.Await(ctx, id, accept, timeout)
}

// Pending returns the number of turns waiting for a reply.
func (g *Gateway) Pending() int {
	return g.waiters.Len()
}

// Dispatch offers an incoming message to pending waits.
// It reports whether the message was consumed.
func (g *Gateway) Dispatch(m *discordgo.Message) bool {
	if m == nil || m.Author == nil {
		return false
	}
	return g.waiters.Dispatch(bingo.Reply{
		From:    bingo.PlayerID(m.Author.ID),
		Channel: ChannelKey(m.GuildID, m.ChannelID),
		Private: m.GuildID == "",
		Text:    m.Content,
	})
}

func (g *Gateway) dmChannel(ctx context.Context, id bingo.PlayerID) (string, error) {
	g.mu.Lock()
	ch, ok := g.dms[id]
	g.mu.Unlock()
	if ok {
		return ch, nil
	}

	c, err := g.api.UserChannelCreate(string(id), discordgo.WithContext(ctx))
	if err != nil {
		return "", mapError(err)
	}

	g.mu.Lock()
	g.dms[id] = c.ID
	g.mu.Unlock()
	return c.ID, nil
}

func (g *Gateway) send(ctx context.Context, channelID string, msg bingo.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data := &discordgo.MessageSend{Content: msg.Text}
	if len(msg.Image) > 0 {
		name := msg.ImageName
		if name == "" {
			name = "chart.png"
		}
		data.Files = []*discordgo.File{{
			Name:        name,
			ContentType: "image/png",
			Reader:      bytes.NewReader(msg.Image),
		}}
	}

	if _, err := g.api.ChannelMessageSendComplex(channelID, data, discordgo.WithContext(ctx)); err != nil {
		return mapError(err)
	}
	return nil
}

// mapError translates refused deliveries into ErrPermissionDenied.
func mapError(err error) error {
	var rerr *discordgo.RESTError
	if !errors.As(err, &rerr) {
		return err
	}
	if rerr.Message != nil && rerr.Message.Code == discordgo.ErrCodeCannotSendMessagesToThisUser {
		return fmt.Errorf("%w: %w", bingo.ErrPermissionDenied, err)
	}
	if rerr.Response != nil && rerr.Response.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%w: %w", bingo.ErrPermissionDenied, err)
	}
	return err
}
