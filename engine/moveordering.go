package engine

import "chess-tiers/board"

type move struct {
	move  board.Move
	score int32
}

type moveList struct {
	moves []move
}

/*
	Move ordering offsets.
	- The transposition move goes first; it was best the last time we were here.
	- Promotions get a large flat bonus.
	- Captures rank by victim value minus a tenth of the attacker's value,
	  so pawn takes queen comes before queen takes pawn.
	- Quiet moves keep generator order.
*/
const (
	ttMoveOffset    int32 = 1 << 20
	promotionOffset int32 = 1 << 16
	captureOffset   int32 = 1 << 12
)

// scoreMove rates a move for ordering only; it never changes search results.
func scoreMove(m board.Move, ttMove board.Move) int32 {
	if !ttMove.IsNull() && m.Equal(ttMove) {
		return ttMoveOffset
	}
	var score int32
	if m.IsPromotion() {
		score += promotionOffset + pieceValues[m.Promotion]
	}
	if m.IsCapture() {
		score += captureOffset + pieceValues[m.Captured] - pieceValues[m.Piece]/10
	}
	return score
}

func newMoveList(moves []board.Move, ttMove board.Move) moveList {
	ml := moveList{moves: make([]move, len(moves))}
	for i, m := range moves {
		ml.moves[i] = move{move: m, score: scoreMove(m, ttMove)}
	}
	return ml
}

// Ordering the moves one at a time, at index given
func orderNextMove(currIndex int, moves *moveList) {
	bestIndex := currIndex
	bestScore := moves.moves[bestIndex].score

	for index := bestIndex + 1; index < len(moves.moves); index++ {
		if moves.moves[index].score > bestScore {
			bestIndex = index
			bestScore = moves.moves[index].score
		}
	}

	moves.moves[currIndex], moves.moves[bestIndex] = moves.moves[bestIndex], moves.moves[currIndex]
}

// orderedMoves returns a sorted copy of moves, best first.
func orderedMoves(moves []board.Move, ttMove board.Move) []board.Move {
	ml := newMoveList(moves, ttMove)
	out := make([]board.Move, len(moves))
	for i := range ml.moves {
		orderNextMove(i, &ml)
		out[i] = ml.moves[i].move
	}
	return out
}
