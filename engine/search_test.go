package engine

import (
	"testing"
	"time"

	"chess-tiers/board"
)

const mateInOneFEN = "7k/6pp/6Q1/8/8/2B5/8/6K1 w - - 0 1"

func TestSearchFindsMateInOne(t *testing.T) {
	pos := board.MustFEN(mateInOneFEN)
	for depth := 1; depth <= 3; depth++ {
		res := Search(pos, depth, time.Time{})
		if res.Move.String() != "g6g7" {
			t.Fatalf("depth %d: move = %v, want g6g7", depth, res.Move)
		}
		if res.Score != Checkmate-1 {
			t.Fatalf("depth %d: score = %d, want %d", depth, res.Score, Checkmate-1)
		}
	}
}

func TestSearchIsDeterministic(t *testing.T) {
	fens := []string{
		board.Startpos,
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3",
	}
	for _, fen := range fens {
		pos := board.MustFEN(fen)
		a := Search(pos, 3, time.Time{})
		b := Search(pos, 3, time.Time{})
		if a.Score != b.Score || !a.Move.Equal(b.Move) {
			t.Fatalf("%s: runs disagree: %v/%d vs %v/%d", fen, a.Move, a.Score, b.Move, b.Score)
		}
		if a.TimedOut {
			t.Fatalf("%s: unbounded search reported a timeout", fen)
		}
		if _, ok := pos.Resolve(a.Move); !ok {
			t.Fatalf("%s: search returned illegal move %v", fen, a.Move)
		}
	}
}

func TestSearchWinsHangingQueen(t *testing.T) {
	pos := board.MustFEN("4k3/8/8/3q4/8/8/3R4/4K3 w - - 0 1")
	res := Search(pos, 2, time.Time{})
	if res.Move.String() != "d2d5" {
		t.Fatalf("move = %v, want d2d5", res.Move)
	}
	if res.Score < 300 {
		t.Fatalf("score after winning the queen = %d", res.Score)
	}
}

func TestSearchPrefersShorterMate(t *testing.T) {
	// Rook ladder: Ra7 is quiet, Rb8 mates at once.
	pos := board.MustFEN("6k1/R7/8/8/8/8/1R6/6K1 w - - 0 1")
	res := Search(pos, 3, time.Time{})
	if res.Move.String() != "b2b8" {
		t.Fatalf("move = %v, want the immediate mate b2b8", res.Move)
	}
	if res.Score != Checkmate-1 {
		t.Fatalf("score = %d, want %d", res.Score, Checkmate-1)
	}
}

func TestSearchExpiredDeadline(t *testing.T) {
	pos := board.StartPosition()
	res := Search(pos, 4, time.Now().Add(-time.Second))
	if !res.TimedOut {
		t.Fatalf("expected TimedOut")
	}
	if res.Stats.DeadlineHits == 0 {
		t.Fatalf("expected a deadline hit, stats %+v", res.Stats)
	}
	if res.Stats.Nodes != 1 {
		t.Fatalf("expired search should stop at the root, visited %d nodes", res.Stats.Nodes)
	}
}

func TestSearchTerminalRoot(t *testing.T) {
	mated := board.MustFEN("rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	res := Search(mated, 3, time.Time{})
	if !res.Move.IsNull() || res.Score != -Checkmate {
		t.Fatalf("mated root: move=%v score=%d", res.Move, res.Score)
	}
	stalemate := board.MustFEN("7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	res = Search(stalemate, 3, time.Time{})
	if !res.Move.IsNull() || res.Score != DrawScore {
		t.Fatalf("stalemate root: move=%v score=%d", res.Move, res.Score)
	}
}

func TestSearcherReusesTable(t *testing.T) {
	pos := board.MustFEN("r1bqkbnr/pppp1ppp/2n5/4p3/4P3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 2 3")
	s := NewSearcher(nil, NewTransTable(1<<14), nil)
	first := s.Search(pos, 3)
	second := s.Search(pos, 3)
	if second.Stats.TTHits == 0 {
		t.Fatalf("second search should hit the table")
	}
	if second.Stats.Nodes >= first.Stats.Nodes {
		t.Fatalf("table did not save work: %d then %d nodes", first.Stats.Nodes, second.Stats.Nodes)
	}
	if first.Score != second.Score || !first.Move.Equal(second.Move) {
		t.Fatalf("cached result differs: %v/%d vs %v/%d", first.Move, first.Score, second.Move, second.Score)
	}
	if total := s.Stats(); total.Nodes != first.Stats.Nodes+second.Stats.Nodes {
		t.Fatalf("Stats() = %d nodes, want %d", total.Nodes, first.Stats.Nodes+second.Stats.Nodes)
	}
}

func BenchmarkSearchDepth3(b *testing.B) {
	pos := board.MustFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = Search(pos, 3, time.Time{})
	}
}
