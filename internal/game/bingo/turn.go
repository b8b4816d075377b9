package bingo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// run drives the session's turns until it is over, then finishes it.
func (e *Engine) run(s *Session) {
	defer e.wg.Done()
	defer close(s.done)

	players := s.Players()
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.String()
	}
	e.sendToChannel(s.ctx, s, Message{Text: fmt.Sprintf(
		"Bingo started: %s. First to %d lines wins. %s goes first.",
		strings.Join(names, ", "), s.ScoreLimit, players[0],
	)})

	for !s.IsOver() {
		e.playTurn(s.ctx, s)
		if e.idle(s) {
			e.sendToChannel(s.ctx, s, Message{Text: "Nobody has called a number in a while, the game is abandoned."})
			_ = e.abandon(s, "idle")
		}
	}

	if s.Outcome() == OutcomeCompleted {
		e.endSession(s)
	}
	e.record(s)
}

// playTurn resolves one turn for the current player and advances the rotation.
func (e *Engine) playTurn(ctx context.Context, s *Session) {
	p := s.currentTurn()

	if !p.Auto {
		e.sendPrivately(ctx, s, p.ID, e.renderer.Chart(ChartView{
			Owner: p.Player, Chart: p.Chart, Score: p.Score, ScoreLimit: s.ScoreLimit,
		}))
	}
	e.fanOut(ctx, s, e.others(s, p.ID), func(Player) Message {
		return Message{Text: fmt.Sprintf("It is %s's turn.", p.Player)}
	})

	var (
		n  int
		ok bool
	)
	if p.Auto {
		n, ok = e.autoCall(ctx, s, p)
	} else {
		n, ok = e.humanCall(ctx, s, p.Player)
		if ok {
			s.idleTurns = 0
		} else {
			s.idleTurns++
		}
	}

	if ok {
		res := s.applyCall(n)
		if res.applied {
			outcome := "called"
			if p.Auto {
				outcome = "auto"
			}
			e.metrics.TurnsCount.Observe(1, outcome)
			s.log.Debug().Str("player", string(p.ID)).Int("number", n).Bool("improved", res.improved).Msg("Number called")
		}
		if res.improved {
			e.broadcastProgress(ctx, s)
		}
	} else {
		e.metrics.TurnsCount.Observe(1, "skipped")
	}

	s.advance()
}

// autoCall computes the auto player's move and announces it.
func (e *Engine) autoCall(ctx context.Context, s *Session, p PlayerState) (int, bool) {
	n, ok := ChooseMove(p.Chart, s.rng)
	if !ok {
		return 0, false
	}
	e.sendToChannel(ctx, s, Message{Text: fmt.Sprintf("%s calls %d.", p.Player, n)})
	return n, true
}

// humanCall prompts p for a number. Each attempt gets a fresh timeout;
// invalid numbers are retried at most MaxRetries times.
func (e *Engine) humanCall(ctx context.Context, s *Session, p Player) (int, bool) {
	accept := func(r Reply) bool {
		if r.From != p.ID || (!r.Private && r.Channel != s.Key) {
			return false
		}
		_, err := strconv.Atoi(strings.TrimSpace(r.Text))
		return err == nil
	}

	e.sendPrivately(ctx, s, p.ID, Message{Text: fmt.Sprintf(
		"Your turn! Call a number from your chart within %s.", e.cfg.TurnTimeout,
	)})

	for attempt := 0; ; attempt++ {
		asked := time.Now()
		reply, err := e.gateway.AwaitReply(ctx, p.ID, accept, e.cfg.TurnTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return 0, false
			}
			if !errors.Is(err, ErrTimedOut) {
				s.log.Warn().Err(err).Str("player", string(p.ID)).Msg("Failed to await reply")
			}
			e.sendToChannel(ctx, s, Message{Text: fmt.Sprintf("%s did not call a number in time, turn skipped.", p)})
			return 0, false
		}
		e.metrics.ReplyLatency.Observe(time.Since(asked).Seconds())

		n, _ := strconv.Atoi(strings.TrimSpace(reply.Text))
		err = s.checkCall(p.ID, n)
		if err == nil {
			e.sendToChannel(ctx, s, Message{Text: fmt.Sprintf("%s calls %d.", p, n)})
			return n, true
		}
		if attempt >= max(e.cfg.MaxRetries, 0) {
			e.sendToChannel(ctx, s, Message{Text: fmt.Sprintf("%s made too many invalid calls, turn skipped.", p)})
			return 0, false
		}
		e.sendPrivately(ctx, s, p.ID, Message{Text: fmt.Sprintf("%d cannot be called: %v. Try again.", n, err)})
	}
}

// idle reports whether humans have skipped IdleRounds full rounds in a row.
func (e *Engine) idle(s *Session) bool {
	if e.cfg.IdleRounds == NeverIdle {
		return false
	}
	humans := len(s.humans())
	return humans > 0 && s.idleTurns >= e.cfg.IdleRounds*humans
}

// broadcastProgress posts the scoreboard and sends every human their chart.
func (e *Engine) broadcastProgress(ctx context.Context, s *Session) {
	snap := s.Snapshot()
	e.sendToChannel(ctx, s, e.renderer.Scoreboard(snap))

	charts := make(map[PlayerID]PlayerState, len(snap.Players))
	for _, ps := range snap.Players {
		charts[ps.ID] = ps
	}
	e.fanOut(ctx, s, s.humans(), func(p Player) Message {
		ps := charts[p.ID]
		return e.renderer.Chart(ChartView{Owner: p, Chart: ps.Chart, Score: ps.Score, ScoreLimit: snap.ScoreLimit})
	})
}

// endSession tells everyone the result and removes the session.
func (e *Engine) endSession(s *Session) {
	snap := s.Snapshot()
	winners := FormatWinners(snap.Winners)

	e.fanOut(s.ctx, s, s.humans(), func(p Player) Message {
		for _, w := range snap.Winners {
			if w.ID == p.ID {
				return Message{Text: "BINGO! You won the game."}
			}
		}
		return Message{Text: fmt.Sprintf("Game over. Winner: %s.", winners)}
	})
	e.sendToChannel(s.ctx, s, Message{Text: fmt.Sprintf("BINGO! %s won the game.", winners)})

	e.remove(s)
	s.log.Info().Str("winners", winners).Int("calls", len(snap.Called)).Msg("Bingo session completed")
}

// record stores the finished session. Failures are logged only.
func (e *Engine) record(s *Session) {
	snap := s.Snapshot()
	e.metrics.GamesFinished.Observe(1, string(snap.Outcome))
	if e.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), e.cfg.NotifyTimeout)
	defer cancel()
	err := e.recorder.RecordGame(ctx, Result{
		ID:        snap.ID,
		Key:       snap.Key,
		Players:   snap.Players,
		Called:    snap.Called,
		Winners:   snap.Winners,
		Outcome:   snap.Outcome,
		StartedAt: snap.StartedAt,
		EndedAt:   time.Now(),
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to record bingo result")
	}
}

func (e *Engine) others(s *Session, id PlayerID) []Player {
	var out []Player
	for _, p := range s.humans() {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

// fanOut delivers a private message to each player concurrently.
// Delivery errors are logged and swallowed.
func (e *Engine) fanOut(ctx context.Context, s *Session, to []Player, msg func(Player) Message) {
	var g errgroup.Group
	for _, p := range to {
		g.Go(func() error {
			e.sendPrivately(ctx, s, p.ID, msg(p))
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) sendPrivately(ctx context.Context, s *Session, id PlayerID, msg Message) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.NotifyTimeout)
	defer cancel()
	if err := e.gateway.SendPrivately(ctx, id, msg); err != nil {
		s.log.Warn().Err(err).Str("player", string(id)).Msg("Failed to deliver private message")
	}
}

func (e *Engine) sendToChannel(ctx context.Context, s *Session, msg Message) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.NotifyTimeout)
	defer cancel()
	if err := e.gateway.SendToChannel(ctx, s.Key, msg); err != nil {
		s.log.Warn().Err(err).Msg("Failed to deliver channel message")
	}
}
