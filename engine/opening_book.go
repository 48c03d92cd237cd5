package engine

import (
	"strings"
	"sync"

	"github.com/notnil/chess"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"chess-tiers/board"
)

// OpeningPlies is how many plies into the game the table is consulted.
const OpeningPlies = 10

// OpeningLine is one book entry in SAN: the moves played from the initial
// position and the acceptable replies.
type OpeningLine struct {
	Moves   string
	Replies []string
}

// OpeningEntry is a book entry resolved to coordinate notation.
type OpeningEntry struct {
	Line    []string
	Replies []board.Move
}

// OpeningTable maps positions reached by book lines to their replies. Keys
// are position signatures, so transposed move orders share an entry. A table
// is read-only once built.
type OpeningTable struct {
	entries map[uint64]*OpeningEntry
}

// NewOpeningTable replays each line from the initial position and resolves
// its replies to legal moves.
func NewOpeningTable(lines []OpeningLine) (*OpeningTable, error) {
	t := &OpeningTable{entries: make(map[uint64]*OpeningEntry, len(lines))}
	for _, line := range lines {
		if err := t.add(line); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *OpeningTable) add(line OpeningLine) error {
	game := chess.NewGame()
	pos := board.StartPosition()
	var played []string

	for _, san := range strings.Fields(line.Moves) {
		if isMoveNumber(san) {
			continue
		}
		if err := game.MoveStr(san); err != nil {
			return errors.Wrapf(err, "opening %q: move %s", line.Moves, san)
		}
		moves := game.Moves()
		uci := moves[len(moves)-1].String()
		next, err := pos.ApplyUCI(uci)
		if err != nil {
			return errors.Wrapf(err, "opening %q", line.Moves)
		}
		pos = next
		played = append(played, uci)
	}

	sig := pos.Signature()
	entry, ok := t.entries[sig]
	if !ok {
		entry = &OpeningEntry{Line: played}
		t.entries[sig] = entry
	}
	for _, san := range line.Replies {
		cm, err := chess.AlgebraicNotation{}.Decode(game.Position(), san)
		if err != nil {
			return errors.Wrapf(err, "opening %q: reply %s", line.Moves, san)
		}
		parsed, err := board.ParseMove(cm.String())
		if err != nil {
			return errors.Wrapf(err, "opening %q: reply %s", line.Moves, san)
		}
		reply, ok := pos.Resolve(parsed)
		if !ok {
			return errors.Wrapf(board.ErrIllegalMove, "opening %q: reply %s", line.Moves, san)
		}
		if slices.IndexFunc(entry.Replies, reply.Equal) < 0 {
			entry.Replies = append(entry.Replies, reply)
		}
	}
	return nil
}

// Lookup returns the book replies for pos, each legal in pos. Positions past
// OpeningPlies are never in book.
func (t *OpeningTable) Lookup(pos board.Position) []board.Move {
	if t == nil || pos.Ply() >= OpeningPlies {
		return nil
	}
	entry, ok := t.entries[pos.Signature()]
	if !ok {
		return nil
	}
	out := make([]board.Move, 0, len(entry.Replies))
	for _, m := range entry.Replies {
		if legal, ok := pos.Resolve(m); ok {
			out = append(out, legal)
		}
	}
	return out
}

// Len reports the number of distinct book positions.
func (t *OpeningTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

func isMoveNumber(tok string) bool {
	trimmed := strings.TrimRight(tok, ".")
	if trimmed == tok || trimmed == "" {
		return false
	}
	for _, r := range trimmed {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var defaultLines = []OpeningLine{
	{Moves: "", Replies: []string{"e4", "d4", "Nf3"}},

	{Moves: "1. e4", Replies: []string{"e5", "c5", "e6"}},
	{Moves: "1. e4 e5", Replies: []string{"Nf3"}},
	{Moves: "1. e4 e5 2. Nf3", Replies: []string{"Nc6"}},
	{Moves: "1. e4 e5 2. Nf3 Nc6", Replies: []string{"Bb5", "Bc4"}},
	{Moves: "1. e4 e5 2. Nf3 Nc6 3. Bb5", Replies: []string{"a6", "Nf6"}},
	{Moves: "1. e4 e5 2. Nf3 Nc6 3. Bc4", Replies: []string{"Bc5", "Nf6"}},
	{Moves: "1. e4 c5", Replies: []string{"Nf3"}},
	{Moves: "1. e4 c5 2. Nf3", Replies: []string{"d6", "Nc6"}},
	{Moves: "1. e4 e6", Replies: []string{"d4"}},
	{Moves: "1. e4 e6 2. d4", Replies: []string{"d5"}},

	{Moves: "1. d4", Replies: []string{"d5", "Nf6"}},
	{Moves: "1. d4 d5", Replies: []string{"c4"}},
	{Moves: "1. d4 d5 2. c4", Replies: []string{"e6", "c6"}},
	{Moves: "1. d4 Nf6", Replies: []string{"c4"}},
	{Moves: "1. d4 Nf6 2. c4", Replies: []string{"e6", "g6"}},

	{Moves: "1. Nf3", Replies: []string{"d5", "Nf6"}},
	{Moves: "1. Nf3 d5", Replies: []string{"d4", "g3"}},
	{Moves: "1. Nf3 Nf6", Replies: []string{"c4", "g3"}},
}

var (
	defaultTableOnce sync.Once
	defaultTable     *OpeningTable
)

// DefaultOpeningTable returns the bundled table, built on first use.
func DefaultOpeningTable() *OpeningTable {
	defaultTableOnce.Do(func() {
		t, err := NewOpeningTable(defaultLines)
		if err != nil {
			panic(err)
		}
		defaultTable = t
	})
	return defaultTable
}
