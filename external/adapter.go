package external

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"chess-tiers/board"
	"chess-tiers/engine"
)

// Config describes how to run the external engine.
type Config struct {
	Path string
	Args []string
	// Retry is how long a failed launch keeps the adapter from trying again.
	Retry time.Duration
	// Grace bounds how long a timed out search may take to honour "stop".
	Grace time.Duration
	// Depth asks for a fixed depth search instead of a movetime one.
	Depth int
}

func (c Config) withDefaults() Config {
	if c.Retry <= 0 {
		c.Retry = 30 * time.Second
	}
	if c.Grace <= 0 {
		c.Grace = 200 * time.Millisecond
	}
	return c
}

// Adapter implements engine.ExternalEngine on top of a pool of UCI
// processes, one per game.
type Adapter struct {
	cfg  Config
	pool *Pool
	log  zerolog.Logger

	mu        sync.Mutex
	downUntil time.Time
	now       func() time.Time
}

var _ engine.ExternalEngine = (*Adapter)(nil)

// NewAdapter runs cfg.Path for every game it sees. Nothing is started until
// the first request.
func NewAdapter(cfg Config, logger zerolog.Logger) *Adapter {
	launch := func(ctx context.Context) (*Process, error) {
		return Start(ctx, cfg.Path, cfg.Args, logger)
	}
	return NewAdapterWithLauncher(cfg, launch, logger)
}

func NewAdapterWithLauncher(cfg Config, launch Launcher, logger zerolog.Logger) *Adapter {
	logger = logger.With().Str("component", "external").Logger()
	return &Adapter{
		cfg:  cfg.withDefaults(),
		pool: NewPool(launch, logger),
		log:  logger,
		now:  time.Now,
	}
}

// TryMove asks the external engine for a move and reports ok=false on any
// failure. It returns within timeout; a search that overruns is stopped in
// the background while the game's session stays locked.
func (a *Adapter) TryMove(ctx context.Context, pos board.Position, p engine.Profile, timeout time.Duration) (board.Move, bool) {
	if timeout <= 0 || a.down() {
		return board.NullMove, false
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	game, _ := engine.GameFrom(ctx)
	logger := a.log.With().Str("game", game).Str("tier", p.Tier.String()).Logger()

	s, err := a.pool.acquire(ctx, game)
	if err != nil {
		logger.Debug().Err(err).Msg("external-busy")
		return board.NullMove, false
	}
	if err := a.pool.ensure(ctx, s); err != nil {
		a.pool.release(s)
		a.markDown()
		logger.Warn().Err(err).Dur("retry", a.cfg.Retry).Msg("external-unavailable")
		return board.NullMove, false
	}

	mv, err := a.search(ctx, s, pos, p, timeout)
	switch {
	case errors.Is(err, ErrTimeout):
		logger.Debug().Err(err).Msg("external-timeout")
		go a.recover(s)
		return board.NullMove, false
	case errors.Is(err, ErrNotRunning), errors.Is(err, ErrMalformedResponse):
		logger.Warn().Err(err).Msg("external-failed")
		a.pool.discard(s)
		a.pool.release(s)
		return board.NullMove, false
	case err != nil:
		logger.Debug().Err(err).Msg("external-no-move")
		a.pool.release(s)
		return board.NullMove, false
	}
	a.pool.release(s)

	parsed, err := board.ParseMove(mv)
	if err != nil {
		logger.Warn().Err(err).Str("move", mv).Msg("external-failed")
		return board.NullMove, false
	}
	m, legal := pos.Resolve(parsed)
	if !legal {
		logger.Warn().Str("move", mv).Str("fen", pos.FEN()).Msg("external-illegal")
		return board.NullMove, false
	}
	return m, true
}

func (a *Adapter) search(ctx context.Context, s *session, pos board.Position, p engine.Profile, timeout time.Duration) (string, error) {
	if s.fresh {
		if err := s.proc.NewGame(ctx); err != nil {
			return "", err
		}
		s.fresh = false
	}
	if err := s.proc.SetOption("Skill Level", strconv.Itoa(p.SkillLevel())); err != nil {
		return "", err
	}
	// Leave a quarter of the timeout for the reply to come back.
	limit := SearchLimit{MoveTime: timeout * 3 / 4, Depth: a.cfg.Depth}
	return s.proc.BestMove(ctx, pos.FEN(), limit)
}

// recover stops an overrunning search so the session can be reused, killing
// the process if it does not answer within the grace period.
func (a *Adapter) recover(s *session) {
	defer a.pool.release(s)
	if err := s.proc.Stop(a.cfg.Grace); err != nil {
		a.log.Warn().Err(err).Str("game", s.game).Msg("external-unresponsive")
		a.pool.discard(s)
	}
}

func (a *Adapter) down() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.now().Before(a.downUntil)
}

func (a *Adapter) markDown() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.downUntil = a.now().Add(a.cfg.Retry)
}

// EndGame releases the process serving game.
func (a *Adapter) EndGame(game string) {
	a.pool.EndGame(game, a.cfg.Grace)
}

// Close shuts every process down.
func (a *Adapter) Close() error {
	return a.pool.CloseAll(a.cfg.Grace)
}
