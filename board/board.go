package board

import (
	"math/bits"
	"strings"

	"github.com/dylhunn/dragontoothmg"
	"github.com/pkg/errors"
)

// Startpos is the FEN of the initial position.
const Startpos = dragontoothmg.Startpos

var (
	ErrInvalidFEN  = errors.New("invalid fen")
	ErrIllegalMove = errors.New("illegal move")
)

type Color uint8

const (
	White Color = 0
	Black Color = 1
)

func (c Color) Other() Color { return c ^ 1 }

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

// PieceType is a colorless piece; values match dragontoothmg's piece codes.
type PieceType uint8

const (
	NoPiece PieceType = 0
	Pawn    PieceType = 1
	Knight  PieceType = 2
	Bishop  PieceType = 3
	Rook    PieceType = 4
	Queen   PieceType = 5
	King    PieceType = 6
)

func (pt PieceType) String() string {
	return [...]string{"", "p", "n", "b", "r", "q", "k"}[pt%7]
}

// Piece is a colored piece as returned by PieceAt.
type Piece struct {
	Type  PieceType
	Color Color
}

// Castling rights bit flags
type CastlingRights uint8

const (
	CastleWhiteK CastlingRights = 1 << iota
	CastleWhiteQ
	CastleBlackK
	CastleBlackQ
)

func (cr CastlingRights) Kingside(c Color) bool {
	if c == White {
		return cr&CastleWhiteK != 0
	}
	return cr&CastleBlackK != 0
}

func (cr CastlingRights) Queenside(c Color) bool {
	if c == White {
		return cr&CastleWhiteQ != 0
	}
	return cr&CastleBlackQ != 0
}

// Square is a board index, a1 = 0 ... h8 = 63.
type Square uint8

const NoSquare Square = 64

func (sq Square) File() int { return int(sq) % 8 }
func (sq Square) Rank() int { return int(sq) / 8 }

func (sq Square) String() string {
	if sq >= NoSquare {
		return "-"
	}
	return string([]byte{'a' + byte(sq.File()), '1' + byte(sq.Rank())})
}

// ParseSquare converts algebraic coordinates ("e4") to a Square.
func ParseSquare(s string) (Square, error) {
	if len(s) != 2 {
		return NoSquare, errors.Errorf("invalid square %q", s)
	}
	file, rank := s[0], s[1]
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return NoSquare, errors.Errorf("invalid square %q", s)
	}
	return Square(int(file-'a') + int(rank-'1')*8), nil
}

// Position is an immutable snapshot of a game: board, side to move, castling
// rights, en-passant target and move counters, plus the hashes of the
// positions that led to it. Positions are only ever produced by FromFEN,
// StartPosition and Apply, so every Position is legal per the move generator.
type Position struct {
	b       dragontoothmg.Board
	history *hashNode

	// The board keeps these unexported; they are tracked alongside it.
	// a1 is never an en-passant target, so ep == 0 means none.
	castling CastlingRights
	ep       Square
}

// hashNode is a persistent parent chain; Apply shares it with the receiver.
type hashNode struct {
	hash uint64
	prev *hashNode
}

// StartPosition returns the standard initial position.
func StartPosition() Position {
	return Position{
		b:        dragontoothmg.ParseFen(Startpos),
		castling: CastleWhiteK | CastleWhiteQ | CastleBlackK | CastleBlackQ,
	}
}

// FromFEN parses a FEN string. Move counters may be omitted.
func FromFEN(fen string) (pos Position, err error) {
	fields := strings.Fields(fen)
	switch len(fields) {
	case 4:
		fields = append(fields, "0", "1")
	case 6:
	default:
		return Position{}, errors.Wrapf(ErrInvalidFEN, "%q: expected 4 or 6 fields, got %d", fen, len(fields))
	}
	if strings.Count(fields[0], "/") != 7 {
		return Position{}, errors.Wrapf(ErrInvalidFEN, "%q: expected 8 ranks", fen)
	}
	if fields[1] != "w" && fields[1] != "b" {
		return Position{}, errors.Wrapf(ErrInvalidFEN, "%q: bad side to move %q", fen, fields[1])
	}
	if strings.Count(fields[0], "K") != 1 || strings.Count(fields[0], "k") != 1 {
		return Position{}, errors.Wrapf(ErrInvalidFEN, "%q: each side needs exactly one king", fen)
	}

	defer func() {
		if r := recover(); r != nil {
			pos = Position{}
			err = errors.Wrapf(ErrInvalidFEN, "%q: %v", fen, r)
		}
	}()
	return Position{
		b:        dragontoothmg.ParseFen(strings.Join(fields, " ")),
		castling: parseCastling(fields[2]),
		ep:       parseEnPassant(fields[3]),
	}, nil
}

func parseCastling(field string) CastlingRights {
	var cr CastlingRights
	for _, ch := range field {
		switch ch {
		case 'K':
			cr |= CastleWhiteK
		case 'Q':
			cr |= CastleWhiteQ
		case 'k':
			cr |= CastleBlackK
		case 'q':
			cr |= CastleBlackQ
		}
	}
	return cr
}

func parseEnPassant(field string) Square {
	sq, err := ParseSquare(field)
	if err != nil {
		return 0
	}
	return sq
}

// MustFEN is FromFEN for package-level literals and tests.
func MustFEN(fen string) Position {
	pos, err := FromFEN(fen)
	if err != nil {
		panic(err)
	}
	return pos
}

// FEN renders the position.
func (p Position) FEN() string {
	return p.b.ToFen()
}

func (p Position) SideToMove() Color {
	if p.b.Wtomove {
		return White
	}
	return Black
}

// InCheck reports whether the side to move is in check.
func (p Position) InCheck() bool {
	return p.b.OurKingInCheck()
}

// Signature is the zobrist key of the position (board, turn, castling, en passant).
func (p Position) Signature() uint64 {
	return p.b.Hash()
}

func (p Position) HalfmoveClock() int  { return int(p.b.Halfmoveclock) }
func (p Position) FullmoveNumber() int { return int(p.b.Fullmoveno) }

// Ply is the number of half-moves played since the initial position,
// derived from the move counters.
func (p Position) Ply() int {
	ply := (p.FullmoveNumber() - 1) * 2
	if !p.b.Wtomove {
		ply++
	}
	if ply < 0 {
		return 0
	}
	return ply
}

func (p Position) CastlingRights() CastlingRights { return p.castling }

// EnPassant returns the en-passant target square, or NoSquare.
func (p Position) EnPassant() Square {
	if p.ep == 0 {
		return NoSquare
	}
	return p.ep
}

// Pieces returns the bitboard of the given side's pieces of one type.
func (p Position) Pieces(c Color, pt PieceType) uint64 {
	bb := p.bitboards(c)
	switch pt {
	case Pawn:
		return bb.Pawns
	case Knight:
		return bb.Knights
	case Bishop:
		return bb.Bishops
	case Rook:
		return bb.Rooks
	case Queen:
		return bb.Queens
	case King:
		return bb.Kings
	}
	return 0
}

// Occupancy returns all squares occupied by the given side.
func (p Position) Occupancy(c Color) uint64 {
	return p.bitboards(c).All
}

// PieceAt reports the piece standing on sq.
func (p Position) PieceAt(sq Square) (Piece, bool) {
	if sq >= NoSquare {
		return Piece{}, false
	}
	for _, c := range [2]Color{White, Black} {
		bb := p.bitboards(c)
		if pt := pieceTypeAt(uint8(sq), &bb); pt != NoPiece {
			return Piece{Type: pt, Color: c}, true
		}
	}
	return Piece{}, false
}

// Material counts pieces of a type for one side.
func (p Position) Material(c Color, pt PieceType) int {
	return bits.OnesCount64(p.Pieces(c, pt))
}

func (p Position) bitboards(c Color) dragontoothmg.Bitboards {
	if c == White {
		return p.b.White
	}
	return p.b.Black
}

func pieceTypeAt(sq uint8, bb *dragontoothmg.Bitboards) PieceType {
	mask := uint64(1) << sq
	switch {
	case bb.All&mask == 0:
		return NoPiece
	case bb.Pawns&mask != 0:
		return Pawn
	case bb.Knights&mask != 0:
		return Knight
	case bb.Bishops&mask != 0:
		return Bishop
	case bb.Rooks&mask != 0:
		return Rook
	case bb.Queens&mask != 0:
		return Queen
	case bb.Kings&mask != 0:
		return King
	}
	return NoPiece
}
