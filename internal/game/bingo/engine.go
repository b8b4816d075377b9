// Package bingo implements the turn-based multiplayer Bingo session engine.
//
// A session is bound to one channel. Participants take turns calling a number
// from their own 5x5 chart; the number is struck on every chart and the first
// participants to complete ScoreLimit lines win. Humans are prompted through a
// Gateway; an auto-controlled participant computes its own moves.
package bingo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"bingo-bot/internal/metrics"
	"bingo-bot/internal/pkg/lock"
)

const (
	// DefaultScoreLimit is the number of lines needed to win.
	DefaultScoreLimit = 5
	// DefaultTurnTimeout is how long a human has to call a number.
	DefaultTurnTimeout = 30 * time.Second
	// DefaultMaxRetries is how many invalid calls a human may retry per turn.
	DefaultMaxRetries = 3
	// DefaultIdleRounds is how many full rounds without any human call end a game.
	DefaultIdleRounds = 2
	// DefaultNotifyTimeout bounds each best-effort delivery.
	DefaultNotifyTimeout = 2 * time.Second
	// DefaultAutoPlayerName is the display name of the auto-controlled player.
	DefaultAutoPlayerName = "BingoBot"
)

// AutoPlayerID is the ID given to the auto-controlled participant.
const AutoPlayerID PlayerID = "auto"

// Negative MaxRetries and IdleRounds resolve to these.
const (
	// NoRetries skips a turn on the first invalid call.
	NoRetries = -1
	// NeverIdle disables abandoning idle games.
	NeverIdle = -1
)

// Config holds engine tuning. Zero values fall back to the defaults;
// a negative MaxRetries disables retries and a negative IdleRounds keeps
// idle games running until someone wins or quits.
type Config struct {
	ScoreLimit     int
	TurnTimeout    time.Duration
	MaxRetries     int
	IdleRounds     int
	NotifyTimeout  time.Duration
	AutoPlayerName string
}

func (c Config) withDefaults() Config {
	if c.ScoreLimit <= 0 {
		c.ScoreLimit = DefaultScoreLimit
	}
	if c.ScoreLimit > MaxLines {
		c.ScoreLimit = MaxLines
	}
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = DefaultTurnTimeout
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = NoRetries
	}
	if c.IdleRounds == 0 {
		c.IdleRounds = DefaultIdleRounds
	}
	if c.IdleRounds < 0 {
		c.IdleRounds = NeverIdle
	}
	if c.NotifyTimeout <= 0 {
		c.NotifyTimeout = DefaultNotifyTimeout
	}
	if c.AutoPlayerName == "" {
		c.AutoPlayerName = DefaultAutoPlayerName
	}
	return c
}

// Result summarizes a finished session for recording.
type Result struct {
	ID        string
	Key       ChannelKey
	Players   []PlayerState
	Called    []int
	Winners   []Player
	Outcome   Outcome
	StartedAt time.Time
	EndedAt   time.Time
}

// Recorder persists finished sessions.
type Recorder interface {
	RecordGame(ctx context.Context, r Result) error
}

// Dealer produces the chart for a participant.
type Dealer func(p Player, r *rand.Rand) *Chart

// Option configures an Engine.
type Option func(*Engine)

// WithRenderer sets how charts and scoreboards are drawn. Defaults to text.
func WithRenderer(r Renderer) Option {
	return func(e *Engine) { e.renderer = r }
}

// WithRecorder sets where finished sessions are recorded.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithMetrics sets the metrics the engine reports to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithDealer replaces random chart dealing.
func WithDealer(d Dealer) Option {
	return func(e *Engine) { e.deal = d }
}

// WithRand sets the source of per-session random generators.
func WithRand(newRand func() *rand.Rand) Option {
	return func(e *Engine) { e.newRand = newRand }
}

// StartRequest describes a start command.
type StartRequest struct {
	Key       ChannelKey
	Requester Player
	Invitees  []Player
	WithAuto  bool
}

// Engine manages Bingo sessions keyed by channel.
// Sessions on different keys run independently.
type Engine struct {
	cfg      Config
	gateway  Gateway
	renderer Renderer
	recorder Recorder
	metrics  *metrics.Metrics
	deal     Dealer
	newRand  func() *rand.Rand

	root     context.Context
	cancel   context.CancelFunc
	starting *lock.KeyLock[ChannelKey]
	sessions map[ChannelKey]*Session
	playing  map[PlayerID]ChannelKey // humans in live or starting sessions
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewEngine creates an engine delivering through gw.
func NewEngine(gw Gateway, cfg Config, opts ...Option) *Engine {
	root, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:      cfg.withDefaults(),
		gateway:  gw,
		renderer: TextRenderer{},
		metrics:  metrics.New(),
		deal:     func(_ Player, r *rand.Rand) *Chart { return NewChart(r) },
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
		root:     root,
		cancel:   cancel,
		starting: lock.New[ChannelKey](),
		sessions: make(map[ChannelKey]*Session),
		playing:  make(map[PlayerID]ChannelKey),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the game's display name.
func (e *Engine) Name() string {
	return "Bingo"
}

// Command returns the command that starts a session.
func (e *Engine) Command() string {
	return "bingo"
}

// Description returns a brief description of the game.
func (e *Engine) Description() string {
	return fmt.Sprintf("Turn-based 5x5 bingo. Call numbers from your chart; first to %d lines wins.", e.cfg.ScoreLimit)
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Start creates a session, deals charts, delivers them privately and starts
// the turn loop. Nothing is registered if any human cannot be reached.
func (e *Engine) Start(ctx context.Context, req StartRequest) (*Session, error) {
	if !e.starting.TryLock(req.Key) {
		return nil, ErrSessionAlreadyActive
	}
	defer e.starting.Unlock(req.Key)

	if e.IsSessionActive(req.Key) {
		return nil, ErrSessionAlreadyActive
	}

	lineup := e.lineup(req)
	if len(lineup) < 2 {
		return nil, ErrNoParticipants
	}
	if err := e.reserve(req.Key, lineup); err != nil {
		return nil, err
	}

	rng := e.newRand()
	id := uuid.NewString()
	s := &Session{
		ID:         id,
		Key:        req.Key,
		StartedAt:  time.Now(),
		ScoreLimit: e.cfg.ScoreLimit,
		rng:        rng,
		done:       make(chan struct{}),
		log:        log.With().Str("channel", string(req.Key)).Str("game_id", id).Logger(),
	}
	for _, p := range lineup {
		s.players = append(s.players, &participant{Player: p, chart: e.deal(p, rng)})
	}

	for _, p := range s.players {
		if p.Auto {
			continue
		}
		msg := e.renderer.Chart(ChartView{Owner: p.Player, Chart: p.chart.Clone(), ScoreLimit: s.ScoreLimit})
		if err := e.gateway.SendPrivately(ctx, p.ID, msg); err != nil {
			s.log.Info().Err(err).Str("player", string(p.ID)).Msg("Participant unreachable, start aborted")
			e.release(req.Key, lineup)
			return nil, fmt.Errorf("%w: %s: %w", ErrParticipantUnreachable, p.Player, err)
		}
	}

	s.ctx, s.cancel = context.WithCancel(e.root)

	e.mu.Lock()
	e.sessions[req.Key] = s
	e.mu.Unlock()

	e.metrics.SessionsStarted.Observe(1)
	e.metrics.ActiveSessions.Observe(1)
	s.log.Info().Int("players", len(s.players)).Int("score_limit", s.ScoreLimit).Msg("Bingo session started")

	e.wg.Add(1)
	go e.run(s)
	return s, nil
}

// lineup orders participants: requester, unique invitees, then the auto player.
func (e *Engine) lineup(req StartRequest) []Player {
	players := []Player{req.Requester}
	for _, p := range req.Invitees {
		if p.Auto || p.ID == "" {
			continue
		}
		if slices.ContainsFunc(players, func(q Player) bool { return q.ID == p.ID }) {
			continue
		}
		players = append(players, p)
	}
	if req.WithAuto {
		players = append(players, Player{ID: AutoPlayerID, Name: e.cfg.AutoPlayerName, Auto: true})
	}
	return players
}

// reserve claims every human in players for key. A human can only play in
// one channel at a time, otherwise private replies could not be routed.
func (e *Engine) reserve(key ChannelKey, players []Player) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, p := range players {
		if p.Auto {
			continue
		}
		if other, ok := e.playing[p.ID]; ok && other != key {
			return fmt.Errorf("%w: %s", ErrPlayerBusy, p)
		}
	}
	for _, p := range players {
		if !p.Auto {
			e.playing[p.ID] = key
		}
	}
	return nil
}

// release drops the claims key holds on players.
func (e *Engine) release(key ChannelKey, players []Player) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.releaseLocked(key, players)
}

func (e *Engine) releaseLocked(key ChannelKey, players []Player) {
	for _, p := range players {
		if cur, ok := e.playing[p.ID]; ok && cur == key {
			delete(e.playing, p.ID)
		}
	}
}

// Quit abandons the session on key on behalf of requester.
func (e *Engine) Quit(ctx context.Context, key ChannelKey, requester PlayerID) error {
	s, ok := e.Session(key)
	if !ok {
		return ErrNoActiveSession
	}
	if !s.hasPlayer(requester) {
		return ErrNotAParticipant
	}
	return e.abandon(s, fmt.Sprintf("quit by %s", requester))
}

// Abort abandons the session on key regardless of who asks.
func (e *Engine) Abort(ctx context.Context, key ChannelKey) error {
	s, ok := e.Session(key)
	if !ok {
		return ErrNoActiveSession
	}
	return e.abandon(s, "aborted")
}

func (e *Engine) abandon(s *Session, reason string) error {
	if !s.end(OutcomeAbandoned) {
		return ErrNoActiveSession
	}
	e.remove(s)
	s.log.Info().Str("reason", reason).Msg("Bingo session abandoned")
	return nil
}

// remove drops s from the registry and cancels anything it is waiting on.
func (e *Engine) remove(s *Session) {
	e.mu.Lock()
	if cur, ok := e.sessions[s.Key]; ok && cur == s {
		delete(e.sessions, s.Key)
		e.releaseLocked(s.Key, s.Players())
		e.metrics.ActiveSessions.Observe(-1)
	}
	e.mu.Unlock()
	s.cancel()
}

// Session returns the live session on key.
func (e *Engine) Session(key ChannelKey) (*Session, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[key]
	return s, ok
}

// Snapshot returns the state of the live session on key.
func (e *Engine) Snapshot(key ChannelKey) (Snapshot, error) {
	s, ok := e.Session(key)
	if !ok {
		return Snapshot{}, ErrNoActiveSession
	}
	return s.Snapshot(), nil
}

// IsSessionActive checks if there's a live session on key.
func (e *Engine) IsSessionActive(key ChannelKey) bool {
	_, ok := e.Session(key)
	return ok
}

// ActiveSessions returns the number of live sessions.
func (e *Engine) ActiveSessions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// Shutdown abandons every session and waits for their loops to exit.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.RLock()
	live := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		live = append(live, s)
	}
	e.mu.RUnlock()

	for _, s := range live {
		_ = e.abandon(s, "shutdown")
	}
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
