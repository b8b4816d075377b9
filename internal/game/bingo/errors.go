package bingo

import "errors"

// Errors for Bingo sessions.
var (
	ErrSessionAlreadyActive   = errors.New("a bingo session is already active in this channel")
	ErrNoActiveSession        = errors.New("no active bingo session in this channel")
	ErrParticipantUnreachable = errors.New("participant cannot receive private messages")
	ErrNotAParticipant        = errors.New("not a participant of this session")
	ErrPlayerBusy             = errors.New("player is already in a bingo session in another channel")
	ErrNoParticipants         = errors.New("no valid opponents to play with")
	ErrInvalidNumber          = errors.New("number is not on the chart or was already called")
)
