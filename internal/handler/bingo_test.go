package handler

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v3"

	"bingo-bot/internal/game"
	"bingo-bot/internal/game/bingo"
	"bingo-bot/internal/gateway/telegram"
)

// recordingSender captures what the gateway sends.
type recordingSender struct {
	mu   sync.Mutex
	sent map[string][]interface{}
}

func (s *recordingSender) Send(to tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = make(map[string][]interface{})
	}
	s.sent[to.Recipient()] = append(s.sent[to.Recipient()], what)
	return &tele.Message{}, nil
}

func (s *recordingSender) count(to string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent[to])
}

// teleContext implements the parts of tele.Context the handlers use.
type teleContext struct {
	tele.Context
	chat    *tele.Chat
	sender  *tele.User
	msg     *tele.Message
	args    []string
	text    string
	replies []string
	sends   []string
}

func (c *teleContext) Chat() *tele.Chat       { return c.chat }
func (c *teleContext) Sender() *tele.User     { return c.sender }
func (c *teleContext) Message() *tele.Message { return c.msg }
func (c *teleContext) Args() []string         { return c.args }
func (c *teleContext) Text() string           { return c.text }

func (c *teleContext) Reply(what interface{}, _ ...interface{}) error {
	c.replies = append(c.replies, fmt.Sprint(what))
	return nil
}

func (c *teleContext) Send(what interface{}, _ ...interface{}) error {
	c.sends = append(c.sends, fmt.Sprint(what))
	return nil
}

func (c *teleContext) last() string {
	return c.replies[len(c.replies)-1]
}

func (c *teleContext) lastSent() string {
	return c.sends[len(c.sends)-1]
}

func (c *teleContext) quiet() bool {
	return len(c.replies) == 0 && len(c.sends) == 0
}

var (
	groupChat = &tele.Chat{ID: -100, Type: tele.ChatGroup}
	aliceUser = &tele.User{ID: 1, Username: "alice"}
	bobUser   = &tele.User{ID: 2, Username: "bob"}
	carolUser = &tele.User{ID: 3, FirstName: "Carol"}
)

const groupKey = bingo.ChannelKey("-100")

func command(from *tele.User, args ...string) *teleContext {
	return &teleContext{chat: groupChat, sender: from, msg: &tele.Message{}, args: args}
}

type fixture struct {
	h      *BingoHandler
	engine *bingo.Engine
	gw     *telegram.Gateway
	sender *recordingSender
	dir    *telegram.Directory
}

func newFixture(t *testing.T, opts ...bingo.Option) *fixture {
	t.Helper()
	sender := &recordingSender{}
	gw := telegram.New(sender)
	engine := bingo.NewEngine(gw, bingo.Config{TurnTimeout: time.Minute}, opts...)
	t.Cleanup(func() { _ = engine.Shutdown(context.Background()) })

	registry := game.NewRegistry()
	require.NoError(t, registry.Register(engine))
	dir := telegram.NewDirectory()
	dir.Remember(bobUser)

	return &fixture{
		h:      NewBingoHandler(engine, gw, dir, registry),
		engine: engine,
		gw:     gw,
		sender: sender,
		dir:    dir,
	}
}

func (f *fixture) players(t *testing.T) []bingo.PlayerID {
	t.Helper()
	snap, err := f.engine.Snapshot(groupKey)
	require.NoError(t, err)
	var ids []bingo.PlayerID
	for _, p := range snap.Players {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestHandleStartRejectsPrivateChat(t *testing.T) {
	f := newFixture(t)
	c := command(aliceUser, "auto")
	c.chat = &tele.Chat{ID: 1, Type: tele.ChatPrivate}

	require.NoError(t, f.h.HandleStart(c))
	assert.Contains(t, c.last(), "group chats")
	assert.Equal(t, 0, f.engine.ActiveSessions())
}

func TestHandleStartUnknownUsername(t *testing.T) {
	f := newFixture(t)
	c := command(aliceUser, "@carol")

	require.NoError(t, f.h.HandleStart(c))
	assert.Contains(t, c.last(), "I don't know @carol yet")
	assert.False(t, f.engine.IsSessionActive(groupKey))
}

func TestHandleStartWithUsername(t *testing.T) {
	f := newFixture(t)
	c := command(aliceUser, "@Bob")

	require.NoError(t, f.h.HandleStart(c))
	assert.True(t, c.quiet(), "the engine announces the game itself")
	assert.Equal(t, []bingo.PlayerID{"1", "2"}, f.players(t))
	assert.GreaterOrEqual(t, f.sender.count("2"), 1, "bob got his chart")
}

func TestHandleStartWithMentionAndReply(t *testing.T) {
	f := newFixture(t)
	c := command(aliceUser, "auto")
	c.msg = &tele.Message{
		Entities: tele.Entities{{Type: tele.EntityTMention, User: carolUser}},
		ReplyTo:  &tele.Message{Sender: bobUser},
	}

	require.NoError(t, f.h.HandleStart(c))
	assert.True(t, c.quiet())
	assert.Equal(t, []bingo.PlayerID{"1", "3", "2", bingo.AutoPlayerID}, f.players(t))
}

func TestHandleStartErrors(t *testing.T) {
	f := newFixture(t)

	c := command(aliceUser)
	require.NoError(t, f.h.HandleStart(c))
	assert.Contains(t, c.last(), "Invite at least one player")

	require.NoError(t, f.h.HandleStart(command(aliceUser, "auto")))
	c = command(bobUser, "auto")
	require.NoError(t, f.h.HandleStart(c))
	assert.Contains(t, c.last(), "already running")
}

func TestHandleQuit(t *testing.T) {
	f := newFixture(t)

	c := command(aliceUser)
	require.NoError(t, f.h.HandleQuit(c))
	assert.Contains(t, c.last(), "no bingo game")

	require.NoError(t, f.h.HandleStart(command(aliceUser, "@bob")))

	c = command(carolUser)
	require.NoError(t, f.h.HandleQuit(c))
	assert.Contains(t, c.last(), "not playing")
	assert.True(t, f.engine.IsSessionActive(groupKey))

	c = command(bobUser)
	require.NoError(t, f.h.HandleQuit(c))
	assert.Equal(t, "🛑 @bob left, the bingo game is over", c.lastSent())
	assert.False(t, f.engine.IsSessionActive(groupKey))
}

func TestHandleStatus(t *testing.T) {
	f := newFixture(t)

	c := command(aliceUser)
	require.NoError(t, f.h.HandleStatus(c))
	assert.Contains(t, c.last(), "no bingo game")

	require.NoError(t, f.h.HandleStart(command(aliceUser, "auto")))
	c = command(bobUser)
	require.NoError(t, f.h.HandleStatus(c))
	assert.Contains(t, c.last(), "Turn: @alice")
}

func TestHandleAbort(t *testing.T) {
	f := newFixture(t)

	c := command(aliceUser)
	require.NoError(t, f.h.HandleAbort(c))
	assert.Contains(t, c.last(), "no bingo game")

	require.NoError(t, f.h.HandleStart(command(aliceUser, "auto")))
	c = command(carolUser)
	require.NoError(t, f.h.HandleAbort(c))
	assert.Equal(t, "🛑 The bingo game was stopped by an admin", c.lastSent())
	assert.False(t, f.engine.IsSessionActive(groupKey))
}

func TestHandleTextDeliversCall(t *testing.T) {
	rows := [bingo.Size][bingo.Size]int{
		{1, 2, 3, 4, 5},
		{6, 7, 8, 9, 10},
		{11, 12, 13, 14, 15},
		{16, 17, 18, 19, 20},
		{21, 22, 23, 24, 25},
	}
	f := newFixture(t, bingo.WithDealer(func(bingo.Player, *rand.Rand) *bingo.Chart {
		c, err := bingo.ChartFromRows(rows)
		if err != nil {
			panic(err)
		}
		return c
	}))
	require.NoError(t, f.h.HandleStart(command(aliceUser, "auto")))
	require.Eventually(t, func() bool { return f.gw.Pending() == 1 }, time.Second, 5*time.Millisecond)

	// someone else's number is ignored
	require.NoError(t, f.h.HandleText(&teleContext{chat: groupChat, sender: bobUser, text: "13"}))
	assert.Equal(t, 1, f.gw.Pending())

	dm := &tele.Chat{ID: 1, Type: tele.ChatPrivate}
	require.NoError(t, f.h.HandleText(&teleContext{chat: dm, sender: aliceUser, text: "13"}))
	require.Eventually(t, func() bool {
		snap, err := f.engine.Snapshot(groupKey)
		return err == nil && slices.Contains(snap.Called, 13)
	}, time.Second, 5*time.Millisecond)
}

func TestHandleHelp(t *testing.T) {
	f := newFixture(t)
	c := command(aliceUser)
	require.NoError(t, f.h.HandleHelp(c))
	assert.Contains(t, c.last(), "/bingo - ")
}
