package game

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

// ErrDuplicateCommand is returned when two games claim the same command.
var ErrDuplicateCommand = errors.New("game command already registered")

// Registry lists the games the bot offers, in registration order.
type Registry struct {
	mu    sync.RWMutex
	games []Game
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds g. Commands must be non-empty and unique.
func (r *Registry) Register(g Game) error {
	if g == nil {
		return errors.New("cannot register nil game")
	}
	cmd := g.Command()
	if cmd == "" {
		return errors.New("game command cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.ContainsFunc(r.games, func(o Game) bool { return o.Command() == cmd }) {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, cmd)
	}
	r.games = append(r.games, g)
	return nil
}

// List returns a copy of the registered games.
func (r *Registry) List() []Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.games)
}

// Count returns the number of registered games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// ActiveSessions sums live sessions across every SessionGame.
func (r *Registry) ActiveSessions() int {
	total := 0
	for _, g := range r.List() {
		if sg, ok := g.(SessionGame); ok {
			total += sg.ActiveSessions()
		}
	}
	return total
}
