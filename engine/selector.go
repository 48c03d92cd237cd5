package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"lukechampine.com/frand"

	"chess-tiers/board"
)

// Options configures an Engine. The zero value is not usable; start from
// DefaultOptions or pass Option funcs to New.
type Options struct {
	// MaxThink caps every move request regardless of the caller's budget.
	MaxThink time.Duration
	// TTEntries sizes the per-request transposition cache.
	TTEntries int
	// ExternalTimeout caps one external engine request.
	ExternalTimeout time.Duration
	// Swap tunes weak-tier substitution.
	Swap SwapPolicy

	Openings *OpeningTable
	External ExternalEngine
	Eval     Evaluator
	// Adjuster overrides the imperfection policy; nil uses a Humanizer over
	// the request's random source.
	Adjuster ScoreAdjuster
	// NewRand builds the random source of one request.
	NewRand func() Rand
	Logger  zerolog.Logger
}

type Option func(*Options)

func DefaultOptions() Options {
	return Options{
		MaxThink:        5 * time.Second,
		TTEntries:       DefaultTTEntries,
		ExternalTimeout: 2 * time.Second,
		Swap:            DefaultSwapPolicy(),
		Openings:        DefaultOpeningTable(),
		Eval:            Evaluate,
		NewRand:         func() Rand { return frand.New() },
		Logger:          zerolog.Nop(),
	}
}

func WithMaxThink(d time.Duration) Option { return func(o *Options) { o.MaxThink = d } }
func WithTTEntries(n int) Option          { return func(o *Options) { o.TTEntries = n } }
func WithSwapPolicy(sp SwapPolicy) Option { return func(o *Options) { o.Swap = sp } }
func WithOpenings(t *OpeningTable) Option { return func(o *Options) { o.Openings = t } }
func WithEvaluator(ev Evaluator) Option   { return func(o *Options) { o.Eval = ev } }
func WithAdjuster(a ScoreAdjuster) Option { return func(o *Options) { o.Adjuster = a } }
func WithRand(newRand func() Rand) Option { return func(o *Options) { o.NewRand = newRand } }
func WithLogger(l zerolog.Logger) Option  { return func(o *Options) { o.Logger = l } }

// WithExternal enables delegation for profiles that allow it.
func WithExternal(ext ExternalEngine, timeout time.Duration) Option {
	return func(o *Options) {
		o.External = ext
		if timeout > 0 {
			o.ExternalTimeout = timeout
		}
	}
}

// Engine is the move selector. It is safe for concurrent use: every request
// gets its own transposition cache, deadline and random source, and the only
// shared mutable state is the default tier.
type Engine struct {
	opts Options

	mu   sync.RWMutex
	tier Tier
}

func New(opts ...Option) *Engine {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.NewRand == nil {
		o.NewRand = func() Rand { return frand.New() }
	}
	if o.Eval == nil {
		o.Eval = Evaluate
	}
	return &Engine{opts: o, tier: Medium}
}

// SetDifficulty changes the tier used by BestMove for subsequent calls.
func (e *Engine) SetDifficulty(t Tier) {
	e.mu.Lock()
	e.tier = t
	e.mu.Unlock()
}

func (e *Engine) Difficulty() Tier {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tier
}

// BestMove picks a move at the current difficulty.
func (e *Engine) BestMove(ctx context.Context, pos board.Position, budget time.Duration) (board.Move, bool) {
	return e.PickMove(ctx, pos, e.Difficulty(), budget)
}

// PickMove picks a move at the given tier.
func (e *Engine) PickMove(ctx context.Context, pos board.Position, tier Tier, budget time.Duration) (board.Move, bool) {
	return e.PickMoveWithProfile(ctx, pos, ProfileFor(tier), budget)
}

// PickMoveWithProfile returns a legal move played the way p would play it,
// or false when pos has no legal moves. It consults the opening table, then
// the external engine, then its own search. It never fails otherwise: an
// expired budget still yields a legal move.
func (e *Engine) PickMoveWithProfile(ctx context.Context, pos board.Position, p Profile, budget time.Duration) (board.Move, bool) {
	legal := pos.LegalMoves()
	if len(legal) == 0 {
		return board.NullMove, false
	}
	p = p.Normalized()
	timer := NewTimeHandler(budget, e.opts.MaxThink)
	rng := e.opts.NewRand()
	logger := e.opts.Logger.With().Str("tier", p.Tier.String()).Int("ply", pos.Ply()).Logger()

	if p.UseOpeningTable {
		if m, ok := e.openingMove(pos, p, rng); ok {
			logger.Debug().Str("move", m.String()).Msg("opening-hit")
			return m, true
		}
	}

	if p.External && e.opts.External != nil {
		if m, ok := e.externalMove(ctx, pos, p, timer); ok {
			logger.Debug().Str("move", m.String()).Msg("external-move")
			return m, true
		}
		logger.Debug().Msg("external-fallback")
	}

	return e.searchMove(pos, legal, p, timer, rng, logger), true
}

func (e *Engine) openingMove(pos board.Position, p Profile, rng Rand) (board.Move, bool) {
	replies := e.opts.Openings.Lookup(pos)
	if len(replies) == 0 {
		return board.NullMove, false
	}
	if p.Randomness == 0 {
		return replies[0], true
	}
	return replies[rng.Intn(len(replies))], true
}

func (e *Engine) externalMove(ctx context.Context, pos board.Position, p Profile, timer *TimeHandler) (board.Move, bool) {
	// Half the remaining budget stays with the internal search in case the
	// external engine never answers.
	timeout := min(e.opts.ExternalTimeout, time.Until(timer.Deadline())/2)
	if timeout <= 0 {
		return board.NullMove, false
	}
	m, ok := e.opts.External.TryMove(ctx, pos, p, timeout)
	if !ok {
		return board.NullMove, false
	}
	return pos.Resolve(m)
}

// searchMove scores every root move by searching its child at depth-1, lets
// the imperfection policy distort the scores and keeps the best. Weak tiers
// may then swap the choice for one of the first few generated moves.
func (e *Engine) searchMove(pos board.Position, legal []board.Move, p Profile, timer *TimeHandler, rng Rand, logger zerolog.Logger) board.Move {
	adjuster := e.opts.Adjuster
	if adjuster == nil {
		adjuster = NewHumanizer(rng)
	}
	searcher := NewSearcher(e.opts.Eval, NewTransTable(e.opts.TTEntries), timer)

	var (
		best     board.Move
		bestRaw  int32
		bestAdj  int32
		scored   int
		stats    SearchStats
		timedOut bool
	)
	for i, m := range orderedMoves(legal, board.NullMove) {
		// The first candidate is always scored so there is something to play.
		if i > 0 && timer.TimeStatus() {
			timedOut = true
			break
		}
		res := searcher.Search(pos.Child(m), p.Depth-1)
		stats.Add(res.Stats)
		// A cut-off search never saw the opponent's best reply.
		if res.TimedOut && scored > 0 {
			timedOut = true
			break
		}
		raw := -res.Score
		adj := adjuster.Adjust(raw, p)
		if scored == 0 || adj > bestAdj {
			best, bestRaw, bestAdj = m, raw, adj
		}
		scored++
	}

	if idx, ok := e.opts.Swap.Pick(rng, p, len(legal)); ok {
		logger.Debug().Str("searched", best.String()).Str("move", legal[idx].String()).Msg("random-swap")
		best = legal[idx]
	}

	logger.Debug().
		Str("move", best.String()).
		Int32("raw", bestRaw).
		Int32("adjusted", bestAdj).
		Int("scored", scored).
		Int("candidates", len(legal)).
		Bool("deadline", timedOut).
		Object("stats", stats).
		Msg("search-move")
	return best
}
