package engine

import (
	"context"
	"time"

	"chess-tiers/board"
)

// ExternalEngine is a stronger move source the engine may delegate to. It
// must return within timeout and report ok=false for any failure.
type ExternalEngine interface {
	TryMove(ctx context.Context, pos board.Position, p Profile, timeout time.Duration) (board.Move, bool)
}

type gameKey struct{}

// WithGame tags ctx with the game a move request belongs to. Requests for
// the same game are served one at a time by the external engine.
func WithGame(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, gameKey{}, id)
}

// GameFrom returns the game id set by WithGame.
func GameFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(gameKey{}).(string)
	return id, ok && id != ""
}
