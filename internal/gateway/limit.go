package gateway

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"bingo-bot/internal/game/bingo"
)

// Limited applies an outbound rate limit to a gateway's sends.
// Waiting for replies is not limited.
type Limited struct {
	bingo.Gateway
	Rate *rate.Limiter
}

// NewLimited wraps gw so that at most perSecond messages are sent per second
// with bursts of up to burst. A non-positive perSecond disables the limit.
func NewLimited(gw bingo.Gateway, perSecond float64, burst int) *Limited {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limited{Gateway: gw, Rate: rate.NewLimiter(limit, burst)}
}

// SendToChannel waits for the limiter, then sends.
func (l *Limited) SendToChannel(ctx context.Context, key bingo.ChannelKey, msg bingo.Message) error {
	if err := l.Rate.Wait(ctx); err != nil {
		return fmt.Errorf("rate limited: %w", err)
	}
	return l.Gateway.SendToChannel(ctx, key, msg)
}

// SendPrivately waits for the limiter, then sends.
func (l *Limited) SendPrivately(ctx context.Context, id bingo.PlayerID, msg bingo.Message) error {
	if err := l.Rate.Wait(ctx); err != nil {
		return fmt.Errorf("rate limited: %w", err)
	}
	return l.Gateway.SendPrivately(ctx, id, msg)
}
