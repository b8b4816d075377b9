package bingo

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PlayerID identifies a platform user. It is opaque to the engine.
type PlayerID string

// ChannelKey identifies the channel a session is bound to.
type ChannelKey string

// Player is a session participant.
type Player struct {
	ID   PlayerID
	Name string
	Auto bool // moves are computed instead of requested
}

// String returns the display name, falling back to the ID.
func (p Player) String() string {
	if p.Name != "" {
		return p.Name
	}
	return string(p.ID)
}

// Outcome describes how a session ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeAbandoned Outcome = "abandoned"
)

// participant is a player together with the state it owns in a session.
type participant struct {
	Player
	chart *Chart
	score int
}

// PlayerState is a read-only view of one participant.
type PlayerState struct {
	Player
	Score int
	Chart *Chart
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	ID         string
	Key        ChannelKey
	StartedAt  time.Time
	ScoreLimit int
	Players    []PlayerState
	Called     []int
	Current    int // most recently called number, 0 if none
	Turn       Player
	Over       bool
	Outcome    Outcome
	Winners    []Player
}

// Session is one active game bound to a channel.
// Only the engine's turn loop mutates it; readers use Snapshot.
type Session struct {
	ID         string
	Key        ChannelKey
	StartedAt  time.Time
	ScoreLimit int

	mu      sync.RWMutex
	players []*participant
	called  []int
	current int
	turn    int
	over    bool
	outcome Outcome
	winners []Player

	// owned by the turn loop
	rng       *rand.Rand
	idleTurns int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	log    zerolog.Logger
}

// Done is closed once the session's turn loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		ID:         s.ID,
		Key:        s.Key,
		StartedAt:  s.StartedAt,
		ScoreLimit: s.ScoreLimit,
		Called:     slices.Clone(s.called),
		Current:    s.current,
		Turn:       s.players[s.turn].Player,
		Over:       s.over,
		Outcome:    s.outcome,
		Winners:    slices.Clone(s.winners),
	}
	for _, p := range s.players {
		snap.Players = append(snap.Players, PlayerState{Player: p.Player, Score: p.score, Chart: p.chart.Clone()})
	}
	return snap
}

// Players returns the participants in turn order.
func (s *Session) Players() []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Player, len(s.players))
	for i, p := range s.players {
		out[i] = p.Player
	}
	return out
}

// IsOver reports whether the session has ended.
func (s *Session) IsOver() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.over
}

// Outcome returns how the session ended, or "" while it runs.
func (s *Session) Outcome() Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.outcome
}

func (s *Session) hasPlayer(id PlayerID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.ContainsFunc(s.players, func(p *participant) bool { return p.ID == id })
}

func (s *Session) humans() []Player {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Player
	for _, p := range s.players {
		if !p.Auto {
			out = append(out, p.Player)
		}
	}
	return out
}

// end marks the session over. It reports false if it was already over.
func (s *Session) end(outcome Outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.over {
		return false
	}
	s.over = true
	s.outcome = outcome
	return true
}

// currentTurn returns the player whose turn it is with a copy of their chart.
func (s *Session) currentTurn() PlayerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.players[s.turn]
	return PlayerState{Player: p.Player, Score: p.score, Chart: p.chart.Clone()}
}

// checkCall validates a number called by id.
func (s *Session) checkCall(id PlayerID, n int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx := slices.IndexFunc(s.players, func(p *participant) bool { return p.ID == id })
	if idx < 0 {
		return ErrNotAParticipant
	}
	if !s.players[idx].chart.Contains(n) || slices.Contains(s.called, n) {
		return ErrInvalidNumber
	}
	return nil
}

// callResult is what applying one called number did to the session.
type callResult struct {
	applied  bool
	improved bool
	winners  []Player
}

// applyCall records n, strikes it on every chart and rescores.
// Nothing changes once the session is over.
func (s *Session) applyCall(n int) callResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res callResult
	if s.over {
		return res
	}
	res.applied = true
	s.called = append(s.called, n)
	s.current = n

	for _, p := range s.players {
		p.chart.Strike(n)
		if score := p.chart.Score(); score > p.score {
			p.score = score
			res.improved = true
		}
	}
	if !res.improved {
		return res
	}

	for _, p := range s.players {
		if p.score >= s.ScoreLimit {
			s.winners = append(s.winners, p.Player)
		}
	}
	if len(s.winners) > 0 {
		s.over = true
		s.outcome = OutcomeCompleted
		res.winners = slices.Clone(s.winners)
	}
	return res
}

// advance passes the turn to the next participant in fixed rotation.
func (s *Session) advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.over {
		return
	}
	s.turn = (s.turn + 1) % len(s.players)
}
