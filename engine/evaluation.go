package engine

import (
	"math/bits"

	"chess-tiers/board"
)

// Evaluator scores a position from White's point of view.
type Evaluator func(pos board.Position) int32

const (
	KingsideCastleBonus  int32 = 30
	QueensideCastleBonus int32 = 20
	CheckPenalty         int32 = 50
	MobilityBonus        int32 = 2
)

var pieceTypes = [...]board.PieceType{board.Pawn, board.Knight, board.Bishop, board.Rook, board.Queen, board.King}

// Evaluate is the default Evaluator. Positive scores favor White. A side that
// is checkmated scores -Checkmate from its own point of view; every drawn
// terminal position scores exactly DrawScore.
func Evaluate(pos board.Position) int32 {
	moves := pos.LegalMoves()
	stm := pos.SideToMove()
	if len(moves) == 0 {
		if pos.InCheck() {
			return signFor(stm) * -Checkmate
		}
		return DrawScore
	}
	if pos.IsDrawBy50() || pos.IsInsufficientMaterial() || pos.IsDrawByRepetition() {
		return DrawScore
	}

	phase := GetPiecePhase(pos)
	score := sideScore(pos, board.White, phase) - sideScore(pos, board.Black, phase)

	cr := pos.CastlingRights()
	score += castlingBonus(cr, board.White) - castlingBonus(cr, board.Black)

	if pos.InCheck() {
		score -= signFor(stm) * CheckPenalty
	}
	score += signFor(stm) * MobilityBonus * int32(len(moves))
	return score
}

// GetPiecePhase returns the remaining non-pawn material on a 0..24 scale;
// 24 is the opening, 0 a bare pawn ending.
func GetPiecePhase(pos board.Position) int32 {
	var phase int32
	for _, pt := range pieceTypes {
		n := int32(pos.Material(board.White, pt) + pos.Material(board.Black, pt))
		phase += n * piecePhase[pt]
	}
	return Min(phase, totalPhase)
}

// sideScore sums material and table bonuses for one side. The king table is
// tapered toward its endgame form by phase.
func sideScore(pos board.Position, c board.Color, phase int32) int32 {
	var score int32
	for _, pt := range pieceTypes {
		bb := pos.Pieces(c, pt)
		for bb != 0 {
			sq := bits.TrailingZeros64(bb)
			bb &= bb - 1
			idx := pstIndex(sq, c)
			score += pieceValues[pt]
			if pt == board.King {
				score += (pst[board.King][idx]*phase + kingEndgame[idx]*(totalPhase-phase)) / totalPhase
				continue
			}
			score += pst[pt][idx]
		}
	}
	return score
}

func castlingBonus(cr board.CastlingRights, c board.Color) int32 {
	var bonus int32
	if cr.Kingside(c) {
		bonus += KingsideCastleBonus
	}
	if cr.Queenside(c) {
		bonus += QueensideCastleBonus
	}
	return bonus
}

func signFor(c board.Color) int32 {
	if c == board.White {
		return 1
	}
	return -1
}
