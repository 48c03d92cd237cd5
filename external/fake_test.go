package external

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeEngine answers the subset of UCI the driver speaks over in-memory
// pipes.
type fakeEngine struct {
	// move is sent as "bestmove <move>" in reply to go. Empty means the
	// search runs until stop.
	move       string
	delay      time.Duration
	ignoreStop bool
	noUciok    bool
	dieOnGo    bool

	out *io.PipeWriter
	wmu sync.Mutex

	mu         sync.Mutex
	seen       []string
	searching  bool
	overlapped int
	quit       chan struct{}
}

func (f *fakeEngine) start() (stdin io.WriteCloser, stdout io.Reader) {
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	f.out = outW
	f.quit = make(chan struct{})
	go f.serve(inR)
	return inW, outR
}

func (f *fakeEngine) attach(t *testing.T) *Process {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	stdin, stdout := f.start()
	p, err := Attach(ctx, stdin, stdout, zerolog.Nop())
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	t.Cleanup(func() { _ = p.Kill() })
	return p
}

// fakeFarm launches a new fakeEngine built from template for every process
// the pool asks for.
type fakeFarm struct {
	template fakeEngine
	fail     error

	mu      sync.Mutex
	engines []*fakeEngine
}

func (ff *fakeFarm) launch(ctx context.Context) (*Process, error) {
	ff.mu.Lock()
	if ff.fail != nil {
		ff.engines = append(ff.engines, nil)
		ff.mu.Unlock()
		return nil, ff.fail
	}
	f := &fakeEngine{
		move:       ff.template.move,
		delay:      ff.template.delay,
		ignoreStop: ff.template.ignoreStop,
	}
	ff.engines = append(ff.engines, f)
	ff.mu.Unlock()
	stdin, stdout := f.start()
	return Attach(ctx, stdin, stdout, zerolog.Nop())
}

func (ff *fakeFarm) launches() int {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return len(ff.engines)
}

func (ff *fakeFarm) engine(i int) *fakeEngine {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return ff.engines[i]
}

func (f *fakeEngine) say(lines ...string) {
	f.wmu.Lock()
	defer f.wmu.Unlock()
	for _, line := range lines {
		if _, err := fmt.Fprintln(f.out, line); err != nil {
			return
		}
	}
}

func (f *fakeEngine) serve(in io.Reader) {
	defer func() { _, _ = io.Copy(io.Discard, in) }()
	defer f.out.Close()
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		f.mu.Lock()
		f.seen = append(f.seen, line)
		f.mu.Unlock()

		switch {
		case line == "uci":
			if !f.noUciok {
				f.say("id name fake", "option name Skill Level type spin default 20 min 0 max 20", "uciok")
			}
		case line == "isready":
			f.say("readyok")
		case strings.HasPrefix(line, "go"):
			if f.dieOnGo {
				return
			}
			f.mu.Lock()
			if f.searching {
				f.overlapped++
			}
			f.searching = true
			f.mu.Unlock()
			if f.move != "" {
				go f.finish(f.delay, "bestmove "+f.move)
			}
		case line == "stop":
			f.mu.Lock()
			searching := f.searching
			f.mu.Unlock()
			if searching && !f.ignoreStop {
				f.finish(0, "bestmove e2e4")
			}
		case line == "quit":
			close(f.quit)
			return
		}
	}
}

func (f *fakeEngine) finish(delay time.Duration, reply string) {
	time.Sleep(delay)
	f.mu.Lock()
	f.searching = false
	f.mu.Unlock()
	f.say("info depth 1 score cp 13", reply)
}

func (f *fakeEngine) received(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, line := range f.seen {
		if strings.HasPrefix(line, prefix) {
			out = append(out, line)
		}
	}
	return out
}
