package bingo

import (
	"context"
	"errors"
	"time"
)

// Errors reported by Gateway implementations.
var (
	// ErrPermissionDenied means the platform refused delivery, e.g. the user
	// blocked the bot or disabled direct messages.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrTimedOut means no qualifying reply arrived in time.
	ErrTimedOut = errors.New("timed out waiting for reply")
)

// Message is outgoing content. Image is an optional PNG.
type Message struct {
	Text      string
	Image     []byte
	ImageName string
}

// Reply is an incoming text message from a user.
type Reply struct {
	From    PlayerID
	Channel ChannelKey
	Private bool
	Text    string
}

// Gateway is the chat platform as seen by the engine.
type Gateway interface {
	// SendToChannel posts a message to the channel a session is bound to.
	SendToChannel(ctx context.Context, key ChannelKey, msg Message) error

	// SendPrivately delivers a direct message to a user.
	// Returns ErrPermissionDenied (possibly wrapped) when the platform refuses.
	SendPrivately(ctx context.Context, id PlayerID, msg Message) error

	// AwaitReply blocks until a reply from id satisfying accept arrives,
	// the timeout elapses (ErrTimedOut) or ctx is done (ctx.Err()).
	AwaitReply(ctx context.Context, id PlayerID, accept func(Reply) bool, timeout time.Duration) (Reply, error)
}
