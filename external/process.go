// Package external drives a stronger UCI engine running as a separate
// process. Every failure is reported as an error wrapping one of the
// sentinels below so callers can fall back to their own search.
package external

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"chess-tiers/board"
)

var (
	ErrNotRunning        = errors.New("external engine not running")
	ErrTimeout           = errors.New("external engine timed out")
	ErrMalformedResponse = errors.New("malformed response from external engine")
	ErrNoMove            = errors.New("external engine has no move")
)

// SearchLimit bounds one search. Depth wins when both are set.
type SearchLimit struct {
	MoveTime time.Duration
	Depth    int
}

func (l SearchLimit) command() string {
	if l.Depth > 0 {
		return fmt.Sprintf("go depth %d", l.Depth)
	}
	ms := l.MoveTime.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("go movetime %d", ms)
}

// Process speaks UCI over a pair of pipes. One goroutine reads stdout for
// the lifetime of the process; requests consume its lines. A Process serves
// one request at a time; the caller serializes access.
type Process struct {
	in     *bufio.Writer
	stdin  io.Closer
	stdout io.Reader
	lines  chan string
	done   chan struct{}
	cmd    *exec.Cmd

	mu     sync.Mutex
	closed bool

	log zerolog.Logger
}

// Start launches path and completes the UCI handshake before ctx expires.
func Start(ctx context.Context, path string, args []string, logger zerolog.Logger) (*Process, error) {
	cmd := exec.Command(path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrapf(ErrNotRunning, "stdin pipe: %v", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrapf(ErrNotRunning, "stdout pipe: %v", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(ErrNotRunning, "start %s: %v", path, err)
	}
	p := newProcess(stdin, stdout, logger.With().Str("engine", path).Int("pid", cmd.Process.Pid).Logger())
	p.cmd = cmd
	if err := p.handshake(ctx); err != nil {
		_ = p.Kill()
		return nil, err
	}
	return p, nil
}

// Attach runs the handshake over existing pipes, e.g. a socket or an
// in-memory fake. Kill closes stdout when it is an io.Closer; otherwise the
// reader goroutine stays blocked until the caller closes it.
func Attach(ctx context.Context, stdin io.WriteCloser, stdout io.Reader, logger zerolog.Logger) (*Process, error) {
	p := newProcess(stdin, stdout, logger)
	if err := p.handshake(ctx); err != nil {
		_ = p.Kill()
		return nil, err
	}
	return p, nil
}

func newProcess(stdin io.WriteCloser, stdout io.Reader, logger zerolog.Logger) *Process {
	p := &Process{
		in:     bufio.NewWriter(stdin),
		stdin:  stdin,
		stdout: stdout,
		lines:  make(chan string, 64),
		done:   make(chan struct{}),
		log:    logger,
	}
	go p.readLoop(stdout)
	return p
}

func (p *Process) readLoop(stdout io.Reader) {
	defer close(p.lines)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		select {
		case p.lines <- scanner.Text():
		case <-p.done:
			return
		}
	}
}

func (p *Process) handshake(ctx context.Context) error {
	// Handshake: "uci" -> wait for "uciok"; also "isready" -> "readyok"
	if err := p.send("uci"); err != nil {
		return err
	}
	if _, err := p.readUntil(ctx, isLine("uciok")); err != nil {
		return errors.Wrap(err, "uci handshake")
	}
	return p.sync(ctx)
}

// sync waits for readyok, discarding anything the engine printed before.
func (p *Process) sync(ctx context.Context) error {
	if err := p.send("isready"); err != nil {
		return err
	}
	_, err := p.readUntil(ctx, isLine("readyok"))
	return errors.Wrap(err, "isready")
}

// NewGame tells the engine the next position starts a different game.
func (p *Process) NewGame(ctx context.Context) error {
	if err := p.send("ucinewgame"); err != nil {
		return err
	}
	return p.sync(ctx)
}

func (p *Process) SetOption(name, value string) error {
	return p.send(fmt.Sprintf("setoption name %s value %s", name, value))
}

// BestMove searches fen within limit and returns the move in coordinate
// notation. When ctx expires first it returns ErrTimeout and leaves the
// engine searching; call Stop or Kill before reusing the process.
func (p *Process) BestMove(ctx context.Context, fen string, limit SearchLimit) (string, error) {
	if err := p.sync(ctx); err != nil {
		return "", err
	}
	if err := p.send("position fen " + fen); err != nil {
		return "", err
	}
	if err := p.send(limit.command()); err != nil {
		return "", err
	}
	line, err := p.readUntil(ctx, hasPrefix("bestmove"))
	if err != nil {
		return "", err
	}
	return parseBestMove(line)
}

// Stop interrupts a running search and waits up to grace for its bestmove.
func (p *Process) Stop(grace time.Duration) error {
	if err := p.send("stop"); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	_, err := p.readUntil(ctx, hasPrefix("bestmove"))
	return err
}

// Kill tears the process down without ceremony.
func (p *Process) Kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	err := p.stdin.Close()
	// Unblocks readLoop.
	if c, ok := p.stdout.(io.Closer); ok {
		_ = c.Close()
	}
	if p.cmd != nil && p.cmd.Process != nil {
		if kerr := p.cmd.Process.Kill(); kerr != nil && err == nil {
			err = kerr
		}
		go func() { _ = p.cmd.Wait() }()
	}
	return errors.Wrap(err, "kill external engine")
}

// Close asks the engine to quit, killing it if it has not exited after grace.
func (p *Process) Close(grace time.Duration) error {
	if err := p.send("quit"); err != nil {
		return p.Kill()
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()
	for {
		select {
		case _, ok := <-p.lines:
			if !ok {
				return p.Kill()
			}
		case <-timer.C:
			p.log.Warn().Dur("grace", grace).Msg("external engine ignored quit")
			return p.Kill()
		}
	}
}

// Alive reports whether the process can still take commands.
func (p *Process) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

func (p *Process) send(cmd string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrNotRunning
	}
	p.log.Trace().Str("cmd", cmd).Msg("uci-send")
	if _, err := fmt.Fprintln(p.in, cmd); err != nil {
		return errors.Wrapf(ErrNotRunning, "write %q: %v", cmd, err)
	}
	if err := p.in.Flush(); err != nil {
		return errors.Wrapf(ErrNotRunning, "write %q: %v", cmd, err)
	}
	return nil
}

func (p *Process) readUntil(ctx context.Context, match func(string) bool) (string, error) {
	for {
		select {
		case line, ok := <-p.lines:
			if !ok {
				return "", errors.Wrap(ErrNotRunning, "output closed")
			}
			p.log.Trace().Str("line", line).Msg("uci-recv")
			if match(line) {
				return line, nil
			}
		case <-ctx.Done():
			return "", errors.Wrap(ErrTimeout, ctx.Err().Error())
		}
	}
}

func isLine(want string) func(string) bool {
	return func(line string) bool { return strings.TrimSpace(line) == want }
}

func hasPrefix(prefix string) func(string) bool {
	return func(line string) bool {
		fields := strings.Fields(line)
		return len(fields) > 0 && fields[0] == prefix
	}
}

// parseBestMove extracts the move of "bestmove <move> [ponder <move>]".
func parseBestMove(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != "bestmove" {
		return "", errors.Wrapf(ErrMalformedResponse, "%q", line)
	}
	mv := fields[1]
	if mv == "(none)" || mv == "0000" {
		return "", ErrNoMove
	}
	if _, err := board.ParseMove(mv); err != nil {
		return "", errors.Wrapf(ErrMalformedResponse, "%q: %v", line, err)
	}
	return mv, nil
}
