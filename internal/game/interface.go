// Package game defines the game interfaces and registry the bot's help and
// status commands are built from.
package game

// Game is a chat game reachable through a bot command.
type Game interface {
	// Name returns the game's display name (e.g., "Bingo")
	Name() string

	// Command returns the command that starts this game (e.g., "bingo")
	Command() string

	// Description returns a brief description of the game
	Description() string
}

// SessionGame is a game whose sessions outlive the command that started
// them, bound to a channel until they end.
type SessionGame interface {
	Game

	// ActiveSessions returns the number of sessions currently running.
	ActiveSessions() int
}
