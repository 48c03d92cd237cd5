package engine

import (
	"time"

	"chess-tiers/board"
)

// =============================================================================
// SCORE CONSTANTS
// =============================================================================
const (
	MaxScore  int32 = 32500
	Checkmate int32 = 20000
	DrawScore int32 = 0

	MaxDepth = 64

	// Scores beyond this magnitude are mate scores, adjusted by ply.
	MateThreshold = Checkmate - 2*MaxDepth
)

// SearchResult is the outcome of one search. Score is from the point of view
// of the side to move in the searched position.
type SearchResult struct {
	Score    int32
	Move     board.Move
	Depth    int
	TimedOut bool
	Stats    SearchStats
}

// Searcher runs negamax with alpha-beta pruning over one transposition table
// and one deadline. A Searcher is not safe for concurrent use; build one per
// move request.
type Searcher struct {
	eval  Evaluator
	tt    *TransTable
	timer *TimeHandler
	stats SearchStats
}

// NewSearcher wires a searcher. A nil evaluator selects Evaluate, a nil table
// gets a fresh default-sized one and a nil timer never expires.
func NewSearcher(eval Evaluator, tt *TransTable, timer *TimeHandler) *Searcher {
	if eval == nil {
		eval = Evaluate
	}
	if tt == nil {
		tt = NewTransTable(DefaultTTEntries)
	}
	return &Searcher{eval: eval, tt: tt, timer: timer}
}

// Search runs a fresh searcher to the given depth, stopping at deadline. The
// zero deadline means no time limit.
func Search(pos board.Position, depth int, deadline time.Time) SearchResult {
	return NewSearcher(nil, nil, NewDeadline(deadline)).Search(pos, depth)
}

// Search searches pos to depth plies. When the deadline cuts the search short
// the best line found so far is returned and TimedOut is set.
func (s *Searcher) Search(pos board.Position, depth int) SearchResult {
	depth = Clamp(depth, 0, MaxDepth)
	before := s.stats
	score, best := s.alphabeta(pos, -MaxScore, MaxScore, int8(depth), 0)
	stats := s.stats
	stats.Nodes -= before.Nodes
	stats.TTHits -= before.TTHits
	stats.BetaCutoffs -= before.BetaCutoffs
	stats.DeadlineHits -= before.DeadlineHits
	return SearchResult{
		Score:    score,
		Move:     best,
		Depth:    depth,
		TimedOut: stats.DeadlineHits > 0,
		Stats:    stats,
	}
}

// Stats returns the counters accumulated over every call on s.
func (s *Searcher) Stats() SearchStats {
	return s.stats
}

// Expired reports whether the searcher's deadline has passed.
func (s *Searcher) Expired() bool {
	return s.timer.TimeStatus()
}

func (s *Searcher) alphabeta(pos board.Position, alpha int32, beta int32, depth int8, ply int8) (int32, board.Move) {
	s.stats.Nodes++

	// Out of time: the static score is the best we can do here.
	if s.timer.TimeStatus() {
		s.stats.DeadlineHits++
		return s.leafScore(pos, ply), board.NullMove
	}

	if ply >= MaxDepth {
		return s.leafScore(pos, ply), board.NullMove
	}

	posHash := pos.Signature()

	/*
		TRANSPOSITION TABLE LOOKUP
	*/
	var ttMove board.Move
	if ttEntry, ok := s.tt.getEntry(posHash); ok {
		ttMove = ttEntry.Move
		if usable, ttScore := s.tt.useEntry(ttEntry, posHash, depth, alpha, beta, ply); usable && (ply > 0 || !ttMove.IsNull()) {
			s.stats.TTHits++
			return ttScore, ttMove
		}
	}

	// Rule draws depend on the path, so they never go into the table.
	if ply > 0 && s.isRuleDraw(pos) && !pos.IsCheckmate() {
		return DrawScore, board.NullMove
	}

	if depth <= 0 {
		score := s.leafScore(pos, ply)
		s.tt.storeEntry(posHash, depth, ply, board.NullMove, score, ExactFlag)
		return score, board.NullMove
	}

	legal := pos.LegalMoves()
	if len(legal) == 0 {
		score := s.leafScore(pos, ply)
		s.tt.storeEntry(posHash, depth, ply, board.NullMove, score, ExactFlag)
		return score, board.NullMove
	}

	alphaOrig := alpha
	bestScore := -MaxScore
	bestMove := board.NullMove
	moves := newMoveList(legal, ttMove)

	for i := range moves.moves {
		if i > 0 && s.timer.TimeStatus() {
			s.stats.DeadlineHits++
			break
		}
		orderNextMove(i, &moves)
		m := moves.moves[i].move

		score, _ := s.alphabeta(pos.Child(m), -beta, -alpha, depth-1, ply+1)
		score = -score

		if score > bestScore {
			bestScore = score
			bestMove = m
		}
		if score > alpha {
			alpha = score
		}
		if alpha >= beta {
			s.stats.BetaCutoffs++
			break
		}
	}

	// Partial results are not stored; a deeper entry would claim more than we know.
	if !s.timer.TimeStatus() {
		var flag int8
		switch {
		case bestScore <= alphaOrig:
			flag = AlphaFlag
		case bestScore >= beta:
			flag = BetaFlag
		default:
			flag = ExactFlag
		}
		s.tt.storeEntry(posHash, depth, ply, bestMove, bestScore, flag)
	}

	return bestScore, bestMove
}

// leafScore evaluates pos for the side to move. Mates are pulled toward zero
// by ply so that a shorter mate always scores higher.
func (s *Searcher) leafScore(pos board.Position, ply int8) int32 {
	score := s.eval(pos) * signFor(pos.SideToMove())
	switch {
	case score >= Checkmate:
		return Checkmate - int32(ply)
	case score <= -Checkmate:
		return -Checkmate + int32(ply)
	}
	return Clamp(score, -MateThreshold, MateThreshold)
}

func (s *Searcher) isRuleDraw(pos board.Position) bool {
	return pos.IsDrawBy50() || pos.IsDrawByRepetition() || pos.IsInsufficientMaterial()
}
