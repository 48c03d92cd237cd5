package external

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// defaultGame collects requests that carry no game id.
const defaultGame = "default"

// Launcher starts a fresh engine process that has completed its handshake.
type Launcher func(ctx context.Context) (*Process, error)

// session owns at most one process for one game. sem holds a token while a
// request (or a recovery after a timeout) is using the process.
type session struct {
	game  string
	id    string
	sem   chan struct{}
	proc  *Process
	fresh bool
	ended bool
}

// Pool hands out one session per game so that requests for the same game
// are served in order while different games run on separate processes.
type Pool struct {
	launch Launcher
	log    zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

func NewPool(launch Launcher, logger zerolog.Logger) *Pool {
	return &Pool{
		launch:   launch,
		log:      logger,
		sessions: make(map[string]*session),
	}
}

// acquire waits for exclusive use of the game's session. The session may
// still have no live process; see ensure.
func (p *Pool) acquire(ctx context.Context, game string) (*session, error) {
	if game == "" {
		game = defaultGame
	}
	p.mu.Lock()
	s, ok := p.sessions[game]
	if !ok {
		s = &session{game: game, id: uuid.NewString(), sem: make(chan struct{}, 1)}
		p.sessions[game] = s
	}
	p.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, errors.Wrapf(ErrTimeout, "waiting for game %s", game)
	}
	if s.ended {
		p.release(s)
		return nil, errors.Wrapf(ErrNotRunning, "game %s ended", game)
	}
	return s, nil
}

// ensure launches the session's process if it has none. Must hold s.sem.
func (p *Pool) ensure(ctx context.Context, s *session) error {
	if s.proc != nil && s.proc.Alive() {
		return nil
	}
	proc, err := p.launch(ctx)
	if err != nil {
		return errors.Wrap(err, "launch external engine")
	}
	s.proc = proc
	s.fresh = true
	p.log.Debug().Str("game", s.game).Str("session", s.id).Msg("external-launch")
	return nil
}

func (p *Pool) release(s *session) {
	<-s.sem
}

// discard kills the session's process; the next request relaunches it.
// Must hold s.sem.
func (p *Pool) discard(s *session) {
	if s.proc == nil {
		return
	}
	if err := s.proc.Kill(); err != nil {
		p.log.Warn().Err(err).Str("game", s.game).Msg("external-kill")
	}
	s.proc = nil
}

// EndGame closes the game's process once its outstanding request finishes.
func (p *Pool) EndGame(game string, grace time.Duration) {
	p.mu.Lock()
	s, ok := p.sessions[game]
	delete(p.sessions, game)
	p.mu.Unlock()
	if !ok {
		return
	}
	go func() {
		s.sem <- struct{}{}
		defer p.release(s)
		s.ended = true
		if s.proc != nil {
			if err := s.proc.Close(grace); err != nil {
				p.log.Warn().Err(err).Str("game", game).Msg("external-close")
			}
			s.proc = nil
		}
	}()
}

// CloseAll shuts every session down in parallel and forgets them.
func (p *Pool) CloseAll(grace time.Duration) error {
	p.mu.Lock()
	sessions := p.sessions
	p.sessions = make(map[string]*session)
	p.mu.Unlock()

	var g errgroup.Group
	for _, s := range sessions {
		g.Go(func() error {
			s.sem <- struct{}{}
			defer p.release(s)
			s.ended = true
			if s.proc == nil {
				return nil
			}
			err := s.proc.Close(grace)
			s.proc = nil
			return errors.Wrapf(err, "close game %s", s.game)
		})
	}
	return g.Wait()
}

// Len reports the number of games with a session.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}
