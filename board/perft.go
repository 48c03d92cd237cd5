package board

// Perft counts leaf nodes of the legal move tree to the given depth.
func Perft(p Position, depth int) uint64 {
	if depth <= 0 {
		return 1
	}
	moves := p.LegalMoves()
	if depth == 1 {
		return uint64(len(moves))
	}
	var nodes uint64
	for _, m := range moves {
		nodes += Perft(p.Child(m), depth-1)
	}
	return nodes
}

// Divide reports the perft count below each root move.
func Divide(p Position, depth int) map[string]uint64 {
	out := make(map[string]uint64)
	if depth <= 0 {
		return out
	}
	for _, m := range p.LegalMoves() {
		out[m.String()] = Perft(p.Child(m), depth-1)
	}
	return out
}
