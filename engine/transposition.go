package engine

import "chess-tiers/board"

const (
	// Flags
	AlphaFlag = iota
	BetaFlag
	ExactFlag

	clusterSize = 4

	// DefaultTTEntries sizes a cache when the caller does not.
	DefaultTTEntries = 1 << 16

	// Unusable score
	UnusableScore int32 = -MaxScore - 1
)

// TransTable memoizes search results by position signature. A table belongs
// to exactly one top-level search call; callers build a new one (or Clear
// the old one) per move request.
type TransTable struct {
	entries      []TTEntry
	clusterCount uint64
}

type TTEntry struct {
	Hash  uint64
	Depth int8
	Move  board.Move
	Score int32
	Flag  int8
	used  bool
}

// NewTransTable allocates a table holding roughly the given number of entries.
func NewTransTable(entries int) *TransTable {
	if entries <= 0 {
		entries = DefaultTTEntries
	}
	clusterCount := uint64(entries / clusterSize)
	if clusterCount == 0 {
		clusterCount = 1
	}
	return &TransTable{
		entries:      make([]TTEntry, clusterCount*clusterSize),
		clusterCount: clusterCount,
	}
}

// Clear drops every entry while keeping the allocation.
func (TT *TransTable) Clear() {
	clear(TT.entries)
}

// Len reports how many slots are filled.
func (TT *TransTable) Len() int {
	n := 0
	for i := range TT.entries {
		if TT.entries[i].used {
			n++
		}
	}
	return n
}

// Probe returns the entry stored for hash, if any, regardless of depth.
func (TT *TransTable) Probe(hash uint64) (TTEntry, bool) {
	if entry, ok := TT.getEntry(hash); ok {
		return *entry, true
	}
	return TTEntry{}, false
}

// Store records a search result at the given ply, replacing a previous
// result for the same position.
func (TT *TransTable) Store(hash uint64, depth int8, ply int8, move board.Move, score int32, flag int8) {
	TT.storeEntry(hash, depth, ply, move, score, flag)
}

// useEntry reports whether the stored result can stand in for a fresh search
// to the requested depth. A shallower entry never satisfies a deeper query.
func (TT *TransTable) useEntry(ttEntry *TTEntry, hash uint64, depth int8, alpha int32, beta int32, ply int8) (usable bool, score int32) {
	score = UnusableScore
	if ttEntry == nil || !ttEntry.used || ttEntry.Hash != hash || ttEntry.Depth < depth {
		return false, score
	}
	norm := ttEntry.Score
	if norm > MateThreshold {
		norm -= int32(ply)
	} else if norm < -MateThreshold {
		norm += int32(ply)
	}
	switch ttEntry.Flag {
	case ExactFlag:
		usable = true
		score = norm
	case AlphaFlag:
		if norm <= alpha {
			usable = true
			score = alpha
		}
	case BetaFlag:
		if norm >= beta {
			usable = true
			score = beta
		}
	}
	return usable, score
}

func (TT *TransTable) getEntry(hash uint64) (entry *TTEntry, found bool) {
	if TT.clusterCount == 0 {
		return nil, false
	}

	start := int((hash % TT.clusterCount) * clusterSize)
	for i := 0; i < clusterSize; i++ {
		next := &TT.entries[start+i]
		if next.used && next.Hash == hash {
			return next, true
		}
	}
	return nil, false
}

func (TT *TransTable) storeEntry(hash uint64, depth int8, ply int8, move board.Move, score int32, flag int8) {
	if TT.clusterCount == 0 {
		return
	}

	base := int((hash % TT.clusterCount) * clusterSize)

	// Mate scores are stored relative to this node, not the root.
	if score > MateThreshold {
		score += int32(ply)
	}
	if score < -MateThreshold {
		score -= int32(ply)
	}

	targetIdx := -1

	// Prefer updating existing entry
	for i := 0; i < clusterSize; i++ {
		idx := base + i
		if TT.entries[idx].used && TT.entries[idx].Hash == hash {
			targetIdx = idx
			break
		}
	}

	// Next look for an empty slot
	if targetIdx == -1 {
		for i := 0; i < clusterSize; i++ {
			idx := base + i
			if !TT.entries[idx].used {
				targetIdx = idx
				break
			}
		}
	}

	// Otherwise replace the shallowest entry in the cluster
	if targetIdx == -1 {
		targetIdx = base
		minDepth := TT.entries[base].Depth
		for i := 1; i < clusterSize; i++ {
			idx := base + i
			if TT.entries[idx].Depth < minDepth {
				minDepth = TT.entries[idx].Depth
				targetIdx = idx
			}
		}
	}

	TT.entries[targetIdx] = TTEntry{
		Hash:  hash,
		Depth: depth,
		Move:  move,
		Score: score,
		Flag:  flag,
		used:  true,
	}
}
