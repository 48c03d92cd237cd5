package external

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"chess-tiers/board"
	"chess-tiers/engine"
)

func newTestAdapter(ff *fakeFarm, cfg Config) *Adapter {
	return NewAdapterWithLauncher(cfg, ff.launch, zerolog.Nop())
}

// eventually polls cond for up to a second.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAdapterPlaysLegalMove(t *testing.T) {
	ff := &fakeFarm{template: fakeEngine{move: "g8f6"}}
	a := newTestAdapter(ff, Config{})
	defer a.Close()
	pos := board.MustFEN(italianFEN)
	ctx := engine.WithGame(context.Background(), "game-1")

	m, ok := a.TryMove(ctx, pos, engine.ProfileFor(engine.Expert), time.Second)
	if !ok || m.String() != "g8f6" {
		t.Fatalf("TryMove = %v, %v", m, ok)
	}
	if _, legal := pos.Resolve(m); !legal {
		t.Fatalf("returned move is not legal")
	}
	if _, ok := a.TryMove(ctx, pos, engine.ProfileFor(engine.Hard), time.Second); !ok {
		t.Fatalf("second request failed")
	}

	if ff.launches() != 1 {
		t.Fatalf("one game should use one process, launched %d", ff.launches())
	}
	f := ff.engine(0)
	if n := len(f.received("ucinewgame")); n != 1 {
		t.Fatalf("ucinewgame sent %d times", n)
	}
	opts := f.received("setoption")
	want := []string{"setoption name Skill Level value 19", "setoption name Skill Level value 18"}
	if fmt.Sprint(opts) != fmt.Sprint(want) {
		t.Fatalf("setoption = %q, want %q", opts, want)
	}
	if got := f.received("go"); len(got) != 2 || got[0] != "go movetime 750" {
		t.Fatalf("go = %q", got)
	}
}

func TestAdapterDepthLimit(t *testing.T) {
	ff := &fakeFarm{template: fakeEngine{move: "g8f6"}}
	a := newTestAdapter(ff, Config{Depth: 9})
	defer a.Close()
	if _, ok := a.TryMove(context.Background(), board.MustFEN(italianFEN), engine.ProfileFor(engine.Hard), time.Second); !ok {
		t.Fatalf("no move")
	}
	if got := ff.engine(0).received("go"); len(got) != 1 || got[0] != "go depth 9" {
		t.Fatalf("go = %q", got)
	}
}

func TestAdapterRejectsBadAnswers(t *testing.T) {
	pos := board.MustFEN(italianFEN)
	tests := []struct {
		name     string
		move     string
		launches int
	}{
		{"illegal", "e2e4", 1},
		{"promotion that does not exist", "g8f6q", 1},
		{"no move", "(none)", 1},
		{"malformed", "xyz", 2},
	}
	for _, tt := range tests {
		ff := &fakeFarm{template: fakeEngine{move: tt.move}}
		a := newTestAdapter(ff, Config{})
		for i := 0; i < 2; i++ {
			if m, ok := a.TryMove(context.Background(), pos, engine.ProfileFor(engine.Expert), time.Second); ok {
				t.Fatalf("%s: accepted %v", tt.name, m)
			}
		}
		if ff.launches() != tt.launches {
			t.Errorf("%s: launched %d processes, want %d", tt.name, ff.launches(), tt.launches)
		}
		_ = a.Close()
	}
}

func TestAdapterTimeout(t *testing.T) {
	pos := board.MustFEN(italianFEN)
	tests := []struct {
		name     string
		stuck    bool
		launches int
		stops    int
	}{
		{"stops", false, 1, 2},
		{"killed", true, 2, 1},
	}
	for _, tt := range tests {
		ff := &fakeFarm{template: fakeEngine{ignoreStop: tt.stuck}}
		a := newTestAdapter(ff, Config{Grace: 50 * time.Millisecond})
		ctx := engine.WithGame(context.Background(), "slow")
		for i := 0; i < 2; i++ {
			start := time.Now()
			if _, ok := a.TryMove(ctx, pos, engine.ProfileFor(engine.Hard), 40*time.Millisecond); ok {
				t.Fatalf("%s: a search that never ends produced a move", tt.name)
			}
			if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
				t.Fatalf("%s: TryMove blocked for %v", tt.name, elapsed)
			}
			// Let the background recovery release the session.
			time.Sleep(150 * time.Millisecond)
		}
		if ff.launches() != tt.launches {
			t.Errorf("%s: launched %d processes, want %d", tt.name, ff.launches(), tt.launches)
		}
		if n := len(ff.engine(0).received("stop")); n != tt.stops {
			t.Errorf("%s: first process got %d stops, want %d", tt.name, n, tt.stops)
		}
		_ = a.Close()
	}
}

func TestAdapterLaunchFailureBacksOff(t *testing.T) {
	ff := &fakeFarm{fail: errors.Wrap(ErrNotRunning, "exec: not found")}
	a := newTestAdapter(ff, Config{Retry: time.Minute})
	now := time.Now()
	a.now = func() time.Time { return now }
	pos := board.StartPosition()

	for i := 0; i < 3; i++ {
		if _, ok := a.TryMove(context.Background(), pos, engine.ProfileFor(engine.Expert), time.Second); ok {
			t.Fatalf("a missing engine produced a move")
		}
	}
	if ff.launches() != 1 {
		t.Fatalf("launch retried during back-off: %d attempts", ff.launches())
	}

	ff.mu.Lock()
	ff.fail = nil
	ff.template.move = "e2e4"
	ff.mu.Unlock()
	now = now.Add(2 * time.Minute)
	m, ok := a.TryMove(context.Background(), pos, engine.ProfileFor(engine.Expert), time.Second)
	if !ok || m.String() != "e2e4" {
		t.Fatalf("after the back-off TryMove = %v, %v", m, ok)
	}
	_ = a.Close()
}

func TestAdapterSerializesPerGame(t *testing.T) {
	ff := &fakeFarm{template: fakeEngine{move: "g8f6", delay: 10 * time.Millisecond}}
	a := newTestAdapter(ff, Config{})
	pos := board.MustFEN(italianFEN)

	var wg sync.WaitGroup
	failures := make(chan string, 16)
	for _, game := range []string{"white-tiger", "blue-heron"} {
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(game string) {
				defer wg.Done()
				ctx := engine.WithGame(context.Background(), game)
				if _, ok := a.TryMove(ctx, pos, engine.ProfileFor(engine.Hard), 5*time.Second); !ok {
					failures <- game
				}
			}(game)
		}
	}
	wg.Wait()
	close(failures)
	for game := range failures {
		t.Errorf("request for %s failed", game)
	}
	if ff.launches() != 2 {
		t.Fatalf("two games should use two processes, launched %d", ff.launches())
	}
	for i := 0; i < 2; i++ {
		f := ff.engine(i)
		f.mu.Lock()
		overlapped := f.overlapped
		f.mu.Unlock()
		if overlapped != 0 {
			t.Fatalf("process %d received %d overlapping searches", i, overlapped)
		}
	}

	if a.pool.Len() != 2 {
		t.Fatalf("pool has %d sessions", a.pool.Len())
	}
	a.EndGame("white-tiger")
	if a.pool.Len() != 1 {
		t.Fatalf("EndGame left %d sessions", a.pool.Len())
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for i := 0; i < 2; i++ {
		f := ff.engine(i)
		eventually(t, "quit", func() bool { return len(f.received("quit")) == 1 })
	}
}

func TestEngineFallsBackWithoutExternalBinary(t *testing.T) {
	a := NewAdapter(Config{Path: "/nonexistent/uci-engine"}, zerolog.Nop())
	defer a.Close()
	e := engine.New(engine.WithExternal(a, 500*time.Millisecond), engine.WithOpenings(nil))
	pos := board.MustFEN(italianFEN)

	start := time.Now()
	m, ok := e.PickMove(context.Background(), pos, engine.Expert, 2*time.Second)
	if !ok {
		t.Fatalf("no move")
	}
	if _, legal := pos.Resolve(m); !legal {
		t.Fatalf("fallback move %v is illegal", m)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("fallback took %v", elapsed)
	}
}

func TestEngineUsesExternalMove(t *testing.T) {
	ff := &fakeFarm{template: fakeEngine{move: "d7d6"}}
	a := newTestAdapter(ff, Config{})
	defer a.Close()
	e := engine.New(engine.WithExternal(a, time.Second), engine.WithOpenings(nil))
	pos := board.MustFEN(italianFEN)

	m, ok := e.PickMove(engine.WithGame(context.Background(), "g"), pos, engine.Hard, 2*time.Second)
	if !ok || m.String() != "d7d6" {
		t.Fatalf("PickMove = %v, %v; want the external move", m, ok)
	}
}
