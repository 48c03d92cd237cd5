package board

import (
	"strings"

	"github.com/dylhunn/dragontoothmg"
	"github.com/pkg/errors"
)

type MoveFlag uint8

const (
	FlagCapture MoveFlag = 1 << iota
	FlagCastleKingside
	FlagCastleQueenside
	FlagEnPassant
	FlagPromotion
)

// Move is a candidate move. Two moves are the same move when From, To and
// Promotion agree; the remaining fields describe the move in the position it
// was generated for.
type Move struct {
	From      Square
	To        Square
	Promotion PieceType
	Piece     PieceType
	Captured  PieceType
	Flags     MoveFlag

	raw dragontoothmg.Move
}

// NullMove is the zero Move, printed as "0000".
var NullMove Move

func (m Move) IsNull() bool { return m.From == m.To }

func (m Move) Equal(o Move) bool {
	return m.From == o.From && m.To == o.To && m.Promotion == o.Promotion
}

func (m Move) IsCapture() bool   { return m.Flags&FlagCapture != 0 }
func (m Move) IsPromotion() bool { return m.Flags&FlagPromotion != 0 }
func (m Move) IsCastle() bool    { return m.Flags&(FlagCastleKingside|FlagCastleQueenside) != 0 }

// String returns coordinate (UCI) notation, e.g. "e2e4" or "e7e8q".
func (m Move) String() string {
	if m.IsNull() {
		return "0000"
	}
	return m.From.String() + m.To.String() + m.Promotion.String()
}

// ParseMove converts coordinate notation (e2e4, e7e8q) into an unresolved
// Move. Use Position.Resolve to obtain the legal move it denotes.
func ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "0000" {
		return NullMove, nil
	}
	if len(s) < 4 || len(s) > 5 {
		return NullMove, errors.Errorf("invalid move %q", s)
	}
	from, err := ParseSquare(s[0:2])
	if err != nil {
		return NullMove, errors.Wrapf(err, "move %q", s)
	}
	to, err := ParseSquare(s[2:4])
	if err != nil {
		return NullMove, errors.Wrapf(err, "move %q", s)
	}
	m := Move{From: from, To: to}
	if len(s) == 5 {
		switch s[4] {
		case 'q':
			m.Promotion = Queen
		case 'r':
			m.Promotion = Rook
		case 'b':
			m.Promotion = Bishop
		case 'n':
			m.Promotion = Knight
		default:
			return NullMove, errors.Errorf("invalid promotion piece in %q", s)
		}
		m.Flags |= FlagPromotion
	}
	return m, nil
}

// LegalMoves enumerates the legal moves for the side to move. The order is
// the move generator's and is stable for a given position.
func (p Position) LegalMoves() []Move {
	b := p.b
	raw := b.GenerateLegalMoves()
	moves := make([]Move, len(raw))
	for i := range raw {
		moves[i] = p.describe(raw[i])
	}
	return moves
}

// HasLegalMoves reports whether the side to move can move at all.
func (p Position) HasLegalMoves() bool {
	b := p.b
	return len(b.GenerateLegalMoves()) > 0
}

// Resolve finds the legal move matching m by from, to and promotion. A pawn
// move onto the last rank without a promotion piece resolves to the queen
// promotion.
func (p Position) Resolve(m Move) (Move, bool) {
	promo := m.Promotion
	for _, legal := range p.LegalMoves() {
		if legal.From != m.From || legal.To != m.To {
			continue
		}
		if legal.Promotion == promo || (promo == NoPiece && legal.Promotion == Queen) {
			return legal, true
		}
	}
	return NullMove, false
}

// Apply plays m and returns the resulting position; the receiver is unchanged.
func (p Position) Apply(m Move) (Position, error) {
	legal, ok := p.Resolve(m)
	if !ok {
		return p, errors.Wrapf(ErrIllegalMove, "%s in %s", m, p.FEN())
	}
	return p.apply(legal), nil
}

// ApplyUCI parses and plays a coordinate-notation move.
func (p Position) ApplyUCI(s string) (Position, error) {
	m, err := ParseMove(s)
	if err != nil {
		return p, err
	}
	return p.Apply(m)
}

// Child plays a move taken from p.LegalMoves() without re-validating it.
func (p Position) Child(m Move) Position {
	if m.raw == 0 {
		if legal, ok := p.Resolve(m); ok {
			m = legal
		}
	}
	return p.apply(m)
}

func (p Position) apply(m Move) Position {
	next := p.b
	raw := m.raw
	next.Apply(raw)
	return Position{
		b:        next,
		history:  &hashNode{hash: p.Signature(), prev: p.history},
		castling: p.castlingAfter(raw),
		ep:       p.epAfter(raw),
	}
}

// castlingAfter strips the rights a move gives up: any king move, a rook
// leaving its corner, or a rook captured in the opponent's corner.
func (p Position) castlingAfter(raw dragontoothmg.Move) CastlingRights {
	cr := p.castling
	if cr == 0 {
		return 0
	}
	us, them := p.SideToMove(), p.SideToMove().Other()
	own, opp := p.bitboards(us), p.bitboards(them)
	from, to := raw.From(), raw.To()
	switch pieceTypeAt(from, &own) {
	case King:
		cr &^= sideRights(us, true) | sideRights(us, false)
	case Rook:
		cr &^= cornerRights(us, from)
	}
	if pieceTypeAt(to, &opp) == Rook {
		cr &^= cornerRights(them, to)
	}
	return cr
}

// epAfter is the square behind a double pawn push, else none.
func (p Position) epAfter(raw dragontoothmg.Move) Square {
	from, to := raw.From(), raw.To()
	if (p.b.White.Pawns|p.b.Black.Pawns)&(uint64(1)<<from) == 0 {
		return 0
	}
	if to == from+16 || from == to+16 {
		return Square((from + to) / 2)
	}
	return 0
}

func sideRights(c Color, kingside bool) CastlingRights {
	switch {
	case c == White && kingside:
		return CastleWhiteK
	case c == White:
		return CastleWhiteQ
	case kingside:
		return CastleBlackK
	}
	return CastleBlackQ
}

// cornerRights is the right tied to a rook standing on sq, if sq is one of
// c's home corners.
func cornerRights(c Color, sq uint8) CastlingRights {
	home := uint8(0)
	if c == Black {
		home = 56
	}
	switch sq {
	case home + 7:
		return sideRights(c, true)
	case home:
		return sideRights(c, false)
	}
	return 0
}

func (p Position) describe(raw dragontoothmg.Move) Move {
	own, opp := p.b.White, p.b.Black
	if !p.b.Wtomove {
		own, opp = opp, own
	}
	from, to := raw.From(), raw.To()
	m := Move{
		From:      Square(from),
		To:        Square(to),
		Promotion: PieceType(raw.Promote()),
		Piece:     pieceTypeAt(from, &own),
		Captured:  pieceTypeAt(to, &opp),
		raw:       raw,
	}
	if m.Captured != NoPiece {
		m.Flags |= FlagCapture
	}
	if m.Piece == Pawn && m.From.File() != m.To.File() && m.Captured == NoPiece {
		m.Captured = Pawn
		m.Flags |= FlagCapture | FlagEnPassant
	}
	if m.Piece == King {
		switch int(m.To) - int(m.From) {
		case 2:
			m.Flags |= FlagCastleKingside
		case -2:
			m.Flags |= FlagCastleQueenside
		}
	}
	if m.Promotion != NoPiece {
		m.Flags |= FlagPromotion
	}
	return m
}
