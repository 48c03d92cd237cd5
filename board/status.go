package board

import "math/bits"

const fiftyMoveLimit = 100

// Result classifies a position.
type Result uint8

const (
	Ongoing Result = iota
	Checkmate
	Stalemate
	FiftyMoves
	InsufficientMaterial
	Repetition
)

func (r Result) String() string {
	switch r {
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case FiftyMoves:
		return "fifty-move rule"
	case InsufficientMaterial:
		return "insufficient material"
	case Repetition:
		return "threefold repetition"
	}
	return "ongoing"
}

// IsDraw reports whether the result ends the game without a winner.
func (r Result) IsDraw() bool {
	return r != Ongoing && r != Checkmate
}

// Result classifies the position. Checkmate and stalemate take precedence
// over the counting draws.
func (p Position) Result() Result {
	if !p.HasLegalMoves() {
		if p.InCheck() {
			return Checkmate
		}
		return Stalemate
	}
	if p.IsDrawBy50() {
		return FiftyMoves
	}
	if p.IsInsufficientMaterial() {
		return InsufficientMaterial
	}
	if p.IsDrawByRepetition() {
		return Repetition
	}
	return Ongoing
}

func (p Position) IsCheckmate() bool { return p.InCheck() && !p.HasLegalMoves() }
func (p Position) IsStalemate() bool { return !p.InCheck() && !p.HasLegalMoves() }
func (p Position) IsDraw() bool      { return p.Result().IsDraw() }
func (p Position) IsTerminal() bool  { return p.Result() != Ongoing }

// IsDrawBy50 reports a fifty-move rule draw (the clock counts half-moves).
func (p Position) IsDrawBy50() bool {
	return p.HalfmoveClock() >= fiftyMoveLimit
}

// IsDrawByRepetition reports threefold repetition. Only positions since the
// last irreversible move can repeat, so the walk stops at the halfmove clock.
func (p Position) IsDrawByRepetition() bool {
	target := p.Signature()
	matches := 0
	n := p.history
	for i := 0; n != nil && i < p.HalfmoveClock(); i++ {
		if n.hash == target {
			matches++
			if matches >= 2 {
				return true
			}
		}
		n = n.prev
	}
	return false
}

// IsInsufficientMaterial reports positions where neither side can mate:
// bare kings, a single minor piece, or bishops all on one square color.
func (p Position) IsInsufficientMaterial() bool {
	for _, c := range [2]Color{White, Black} {
		if p.Pieces(c, Pawn)|p.Pieces(c, Rook)|p.Pieces(c, Queen) != 0 {
			return false
		}
	}
	knights := p.Pieces(White, Knight) | p.Pieces(Black, Knight)
	bishops := p.Pieces(White, Bishop) | p.Pieces(Black, Bishop)
	minors := bits.OnesCount64(knights | bishops)
	if minors <= 1 {
		return true
	}
	if knights != 0 {
		return false
	}
	const darkSquares = 0xAA55AA55AA55AA55
	return bishops&darkSquares == 0 || bishops&^darkSquares == 0
}
