package discord

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bingo-bot/internal/config"
	"bingo-bot/internal/game"
	"bingo-bot/internal/game/bingo"
)

type fakeAPI struct {
	mu          sync.Mutex
	sent        map[string][]*discordgo.MessageSend
	dmCreates   int
	unreachable map[string]bool
	sendErr     error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{sent: make(map[string][]*discordgo.MessageSend), unreachable: make(map[string]bool)}
}

func (f *fakeAPI) UserChannelCreate(id string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dmCreates++
	return &discordgo.Channel{ID: "dm-" + id}, nil
}

func (f *fakeAPI) ChannelMessageSendComplex(ch string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	if f.unreachable[strings.TrimPrefix(ch, "dm-")] {
		return nil, &discordgo.RESTError{
			Response: &http.Response{Status: "403 Forbidden", StatusCode: http.StatusForbidden},
			Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeCannotSendMessagesToThisUser, Message: "Cannot send messages to this user"},
		}
	}
	f.sent[ch] = append(f.sent[ch], data)
	return &discordgo.Message{ChannelID: ch}, nil
}

func (f *fakeAPI) texts(ch string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.sent[ch] {
		out = append(out, m.Content)
	}
	return out
}

func (f *fakeAPI) last(ch string) string {
	texts := f.texts(ch)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (f *fakeAPI) contains(ch, substr string) bool {
	for _, t := range f.texts(ch) {
		if strings.Contains(t, substr) {
			return true
		}
	}
	return false
}

var (
	alice = &discordgo.User{ID: "a1", Username: "alice"}
	bob   = &discordgo.User{ID: "b2", Username: "bob", GlobalName: "Bobby"}
	admin = &discordgo.User{ID: "admin", Username: "root"}
)

func msg(from *discordgo.User, content string, mentions ...*discordgo.User) *discordgo.Message {
	return &discordgo.Message{
		GuildID:   "G1",
		ChannelID: "general",
		Author:    from,
		Content:   content,
		Mentions:  mentions,
	}
}

func setup(t *testing.T) (*Router, *fakeAPI, *bingo.Engine) {
	t.Helper()
	api := newFakeAPI()
	gw := NewGateway(api)
	engine := bingo.NewEngine(gw, bingo.Config{})
	reg := game.NewRegistry()
	require.NoError(t, reg.Register(engine))
	cfg := &config.Config{Admin: config.AdminConfig{IDs: []string{"admin"}}}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = engine.Shutdown(ctx)
	})
	return NewRouter(cfg, engine, gw, reg, nil), api, engine
}

func TestChannelKey(t *testing.T) {
	key := ChannelKey("G1", "general")
	assert.Equal(t, bingo.ChannelKey("G1#general"), key)
	assert.Equal(t, "general", channelOf(key))
	assert.Equal(t, "dm", channelOf(ChannelKey("", "dm")))
	assert.Equal(t, "raw", channelOf("raw"))
}

func TestPlayer(t *testing.T) {
	assert.Equal(t, bingo.Player{ID: "a1", Name: "alice"}, Player(alice))
	assert.Equal(t, bingo.Player{ID: "b2", Name: "Bobby"}, Player(bob))
}

func TestMapError(t *testing.T) {
	cannotDM := &discordgo.RESTError{
		Response: &http.Response{Status: "400 Bad Request", StatusCode: http.StatusBadRequest},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeCannotSendMessagesToThisUser},
	}
	forbidden := &discordgo.RESTError{Response: &http.Response{Status: "403 Forbidden", StatusCode: http.StatusForbidden}}
	notFound := &discordgo.RESTError{Response: &http.Response{Status: "404 Not Found", StatusCode: http.StatusNotFound}}
	plain := errors.New("dial tcp: timeout")

	assert.ErrorIs(t, mapError(cannotDM), bingo.ErrPermissionDenied)
	assert.ErrorIs(t, mapError(forbidden), bingo.ErrPermissionDenied)
	assert.NotErrorIs(t, mapError(notFound), bingo.ErrPermissionDenied)
	assert.Equal(t, plain, mapError(plain))
}

func TestSendPrivatelyCachesDMChannel(t *testing.T) {
	api := newFakeAPI()
	gw := NewGateway(api)
	ctx := context.Background()

	require.NoError(t, gw.SendPrivately(ctx, "a1", bingo.Message{Text: "one"}))
	require.NoError(t, gw.SendPrivately(ctx, "a1", bingo.Message{Text: "two"}))

	assert.Equal(t, 1, api.dmCreates)
	assert.Equal(t, []string{"one", "two"}, api.texts("dm-a1"))
}

func TestSendImageAsFile(t *testing.T) {
	api := newFakeAPI()
	gw := NewGateway(api)

	require.NoError(t, gw.SendToChannel(context.Background(), "G1#general", bingo.Message{Text: "chart", Image: []byte("png")}))

	sent := api.sent["general"]
	require.Len(t, sent, 1)
	require.Len(t, sent[0].Files, 1)
	assert.Equal(t, "chart.png", sent[0].Files[0].Name)
	assert.Equal(t, "image/png", sent[0].Files[0].ContentType)
	body, err := io.ReadAll(sent[0].Files[0].Reader)
	require.NoError(t, err)
	assert.Equal(t, "png", string(body))
}

func TestSendPrivatelyDenied(t *testing.T) {
	api := newFakeAPI()
	api.unreachable["b2"] = true
	gw := NewGateway(api)

	err := gw.SendPrivately(context.Background(), "b2", bingo.Message{Text: "x"})
	assert.ErrorIs(t, err, bingo.ErrPermissionDenied)
}

func TestRouterStartStatusQuit(t *testing.T) {
	r, api, engine := setup(t)
	ctx := context.Background()

	r.Handle(ctx, msg(alice, "!bingo auto"))
	require.True(t, engine.IsSessionActive("G1#general"))
	assert.NotEmpty(t, api.texts("dm-a1"), "alice gets her chart")
	assert.Eventually(t, func() bool { return api.contains("general", "Bingo started") }, time.Second, 10*time.Millisecond)

	r.Handle(ctx, msg(alice, "!bingo status"))
	assert.Eventually(t, func() bool { return api.contains("general", "🎱 Bingo scoreboard") }, time.Second, 10*time.Millisecond)

	r.Handle(ctx, msg(bob, "!bingo quit"))
	assert.Eventually(t, func() bool { return api.contains("general", "not playing") }, time.Second, 10*time.Millisecond)
	assert.True(t, engine.IsSessionActive("G1#general"))

	r.Handle(ctx, msg(alice, "!bingo quit"))
	assert.False(t, engine.IsSessionActive("G1#general"))
	assert.True(t, api.contains("general", "alice left"))
}

func TestRouterDispatchesCalls(t *testing.T) {
	r, api, engine := setup(t)
	ctx := context.Background()

	r.Handle(ctx, msg(alice, "!bingo bot"))
	require.True(t, engine.IsSessionActive("G1#general"))

	// alice goes first; wait for her prompt before answering
	require.Eventually(t, func() bool { return r.gateway.Pending() == 1 }, time.Second, 5*time.Millisecond)
	r.Handle(ctx, msg(alice, "7"))

	assert.Eventually(t, func() bool { return api.contains("general", "alice calls 7.") }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		snap, err := engine.Snapshot("G1#general")
		return err == nil && len(snap.Called) >= 1 && snap.Called[0] == 7
	}, time.Second, 10*time.Millisecond)
}

func TestRouterStartWithMentions(t *testing.T) {
	r, api, engine := setup(t)

	r.Handle(context.Background(), msg(alice, "!bingo <@b2>", bob, alice))

	snap, err := engine.Snapshot("G1#general")
	require.NoError(t, err)
	require.Len(t, snap.Players, 2, "the author is not invited twice")
	assert.Equal(t, bingo.PlayerID("a1"), snap.Players[0].ID)
	assert.Equal(t, bingo.PlayerID("b2"), snap.Players[1].ID)
	assert.NotEmpty(t, api.texts("dm-b2"))
}

func TestRouterStartUnreachable(t *testing.T) {
	r, api, engine := setup(t)
	api.unreachable["b2"] = true

	r.Handle(context.Background(), msg(alice, "!bingo <@b2>", bob))

	assert.False(t, engine.IsSessionActive("G1#general"))
	assert.Contains(t, api.last("general"), "private chat")
}

func TestRouterStartErrors(t *testing.T) {
	r, api, engine := setup(t)
	ctx := context.Background()

	r.Handle(ctx, msg(alice, "!bingo"))
	assert.Contains(t, api.last("general"), "Invite at least one player")

	dm := msg(alice, "!bingo auto")
	dm.GuildID, dm.ChannelID = "", "dm-a1"
	r.Handle(ctx, dm)
	assert.Contains(t, api.last("dm-a1"), "server channels")
	assert.Equal(t, 0, engine.ActiveSessions())

	r.Handle(ctx, msg(alice, "!bingo auto"))
	r.Handle(ctx, msg(bob, "!bingo auto"))
	assert.Eventually(t, func() bool { return api.contains("general", "already running") }, time.Second, 10*time.Millisecond)
}

func TestRouterAbortRequiresAdmin(t *testing.T) {
	r, api, engine := setup(t)
	ctx := context.Background()

	r.Handle(ctx, msg(alice, "!bingo auto"))
	r.Handle(ctx, msg(alice, "!bingo abort"))
	assert.Eventually(t, func() bool { return api.contains("general", "Only admins") }, time.Second, 10*time.Millisecond)
	assert.True(t, engine.IsSessionActive("G1#general"))

	r.Handle(ctx, msg(admin, "!bingo abort"))
	assert.False(t, engine.IsSessionActive("G1#general"))
	assert.True(t, api.contains("general", "stopped by an admin"))
}

func TestRouterIgnoresBotsAndUnlistedGuilds(t *testing.T) {
	r, api, engine := setup(t)
	ctx := context.Background()

	r.Handle(ctx, msg(&discordgo.User{ID: "x", Bot: true}, "!bingo auto"))
	assert.Equal(t, 0, engine.ActiveSessions())

	r.cfg.Whitelist.Chats = []string{"G2"}
	r.Handle(ctx, msg(alice, "!bingo auto"))
	assert.Equal(t, 0, engine.ActiveSessions())
	assert.Empty(t, api.texts("general"))
}

func TestRouterHelpAndTop(t *testing.T) {
	r, api, _ := setup(t)
	ctx := context.Background()

	r.Handle(ctx, msg(alice, "!bingo help"))
	assert.Contains(t, api.last("general"), "!bingo - ")

	r.Handle(ctx, msg(alice, "!bingo top"))
	assert.Contains(t, api.last("general"), "not available")
}
