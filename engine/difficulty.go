package engine

import (
	"strings"

	"github.com/pkg/errors"
)

// Tier names one of the five difficulty levels.
type Tier uint8

const (
	Beginner Tier = iota
	Easy
	Medium
	Hard
	Expert
)

var tierNames = [...]string{"beginner", "easy", "medium", "hard", "expert"}

// Tiers lists every tier from weakest to strongest.
var Tiers = []Tier{Beginner, Easy, Medium, Hard, Expert}

func (t Tier) String() string {
	if int(t) < len(tierNames) {
		return tierNames[t]
	}
	return "unknown"
}

// ParseTier accepts a tier name, case-insensitively.
func ParseTier(name string) (Tier, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range tierNames {
		if n == name {
			return Tier(i), nil
		}
	}
	return Medium, errors.Errorf("unknown difficulty %q", name)
}

// Profile is the immutable tuple a tier maps to. Change difficulty by
// passing a different Profile, never by editing one in place.
type Profile struct {
	Tier Tier
	// Depth is the search depth counted from the root; root moves are
	// searched at Depth-1.
	Depth int
	// Randomness (0..100) scales score noise; 0 disables all imperfection.
	Randomness int
	// Accuracy (0..100); the missing share scales simulated blunders.
	Accuracy int
	// UseOpeningTable allows book replies in the first plies.
	UseOpeningTable bool
	// External allows delegation to the external engine adapter.
	External bool
}

var profiles = [...]Profile{
	Beginner: {Tier: Beginner, Depth: 1, Randomness: 60, Accuracy: 40},
	Easy:     {Tier: Easy, Depth: 2, Randomness: 30, Accuracy: 65},
	Medium:   {Tier: Medium, Depth: 3, Randomness: 12, Accuracy: 85, UseOpeningTable: true},
	Hard:     {Tier: Hard, Depth: 3, Randomness: 6, Accuracy: 93, UseOpeningTable: true, External: true},
	Expert:   {Tier: Expert, Depth: 4, Randomness: 3, Accuracy: 98, UseOpeningTable: true, External: true},
}

// ProfileFor returns the built-in profile of a tier. Unknown tiers fall back
// to Medium.
func ProfileFor(t Tier) Profile {
	if int(t) < len(profiles) {
		return profiles[t]
	}
	return profiles[Medium]
}

// Validate rejects tuples outside their ranges.
func (p Profile) Validate() error {
	if p.Depth < 1 || p.Depth > MaxDepth {
		return errors.Errorf("profile %s: depth %d out of range [1, %d]", p.Tier, p.Depth, MaxDepth)
	}
	if p.Randomness < 0 || p.Randomness > 100 {
		return errors.Errorf("profile %s: randomness %d out of range [0, 100]", p.Tier, p.Randomness)
	}
	if p.Accuracy < 0 || p.Accuracy > 100 {
		return errors.Errorf("profile %s: accuracy %d out of range [0, 100]", p.Tier, p.Accuracy)
	}
	return nil
}

// Normalized returns a copy of p with every field clamped into range.
func (p Profile) Normalized() Profile {
	p.Depth = Clamp(p.Depth, 1, MaxDepth)
	p.Randomness = Clamp(p.Randomness, 0, 100)
	p.Accuracy = Clamp(p.Accuracy, 0, 100)
	return p
}

// SkillLevel maps accuracy onto the 0..20 "Skill Level" option most UCI
// engines expose.
func (p Profile) SkillLevel() int {
	return Clamp(p.Accuracy*20/100, 0, 20)
}
