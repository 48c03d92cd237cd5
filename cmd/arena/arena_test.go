package main

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chess-tiers/board"
	"chess-tiers/engine"
)

func TestComputeStat(t *testing.T) {
	tests := []struct {
		wins, losses, draws int
		fraction, elo       float64
	}{
		{5, 5, 0, 0.5, 0},
		{3, 1, 0, 0.75, 190.8},
		{0, 0, 4, 0.5, 0},
		{0, 0, 0, 0.5, 0},
	}
	for _, tt := range tests {
		s := computeStat(tt.wins, tt.losses, tt.draws)
		if math.Abs(s.winningFraction-tt.fraction) > 1e-9 || math.Abs(s.eloDifference-tt.elo) > 0.1 {
			t.Errorf("computeStat(%d, %d, %d) = %+v", tt.wins, tt.losses, tt.draws, s)
		}
	}
}

func TestShowResultsLogsMatchStatistics(t *testing.T) {
	results := make(chan gameResult, 3)
	results <- gameResult{gameInfo: gameInfo{number: 1, engineAIsWhite: true}, result: board.Checkmate, winner: board.White}
	results <- gameResult{gameInfo: gameInfo{number: 2}, result: board.Checkmate, winner: board.White}
	results <- gameResult{gameInfo: gameInfo{number: 3}, result: board.Stalemate}
	close(results)

	var buf bytes.Buffer
	tl := showResults(results, zerolog.New(&buf))
	if tl.wins != 1 || tl.losses != 1 || tl.draws != 1 {
		t.Fatalf("tally = %+v", tl)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("logged %d lines: %q", len(lines), lines)
	}
	var last struct {
		Score string  `json:"score"`
		Elo   float64 `json:"elo"`
		LOS   float64 `json:"los"`
	}
	if err := json.Unmarshal([]byte(lines[2]), &last); err != nil {
		t.Fatalf("decode %q: %v", lines[2], err)
	}
	if last.Score != "1 - 1 - 1" || last.Elo != 0 || last.LOS != 0.5 {
		t.Fatalf("final statistics = %+v", last)
	}
	if !strings.Contains(lines[0], `"elo":`) || !strings.Contains(lines[0], `"los":0.841`) {
		t.Fatalf("first game should log elo and los: %s", lines[0])
	}
}

func TestGameResultString(t *testing.T) {
	tests := []struct {
		r    gameResult
		want string
	}{
		{gameResult{result: board.Checkmate, winner: board.White}, "1-0"},
		{gameResult{result: board.Checkmate, winner: board.Black}, "0-1"},
		{gameResult{result: board.Stalemate}, "1/2-1/2"},
		{gameResult{result: board.Repetition}, "1/2-1/2"},
	}
	for _, tt := range tests {
		if got := gameResultString(tt.r); got != tt.want {
			t.Errorf("%v: got %s, want %s", tt.r.result, got, tt.want)
		}
	}
}

func TestRunPlaysEveryGame(t *testing.T) {
	cfg := arenaConfig{
		TierA:       engine.Easy,
		TierB:       engine.Beginner,
		Games:       4,
		Concurrency: 2,
		MoveTime:    20 * time.Millisecond,
		MaxPlies:    16,
	}
	score, err := run(context.Background(), cfg, engine.New(), zerolog.Nop())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := score.wins + score.losses + score.draws; n != cfg.Games {
		t.Fatalf("played %d games, want %d", n, cfg.Games)
	}
}

func TestPlayGameEndsOnMate(t *testing.T) {
	// Fool's mate: White's blunders are part of the opening.
	info := gameInfo{id: "fools-mate", opening: []string{"f2f3", "e7e5", "g2g4"}, engineAIsWhite: true}
	cfg := arenaConfig{TierA: engine.Expert, TierB: engine.Expert, MoveTime: 30 * time.Second, MaxPlies: 10}
	res, err := playGame(context.Background(), cfg, engine.New(engine.WithOpenings(nil), engine.WithMaxThink(time.Minute)), info)
	if err != nil {
		t.Fatalf("playGame: %v", err)
	}
	if res.result != board.Checkmate || res.winner != board.Black || res.plies != 1 {
		t.Fatalf("result %v winner %v after %d plies", res.result, res.winner, res.plies)
	}
}
