package engine

// Imperfection scales, in centipawns per profile point.
const (
	// NoiseScale is the +/- noise range per point of randomness.
	NoiseScale int32 = 5
	// BlunderScale is the maximum penalty per point of missing accuracy.
	BlunderScale int32 = 4
)

// Weak-tier substitution defaults; see Options.
const (
	RandomSwapThreshold = 40
	RandomSwapRate      = 50
	RandomSwapPrefix    = 3
)

// ScoreAdjuster turns a raw root-move score into the score a player of the
// given profile believes the move has.
type ScoreAdjuster interface {
	Adjust(raw int32, p Profile) int32
}

// ScoreAdjusterFunc adapts a plain function to ScoreAdjuster.
type ScoreAdjusterFunc func(raw int32, p Profile) int32

func (f ScoreAdjusterFunc) Adjust(raw int32, p Profile) int32 { return f(raw, p) }

// Flawless leaves every score untouched.
var Flawless ScoreAdjuster = ScoreAdjusterFunc(func(raw int32, _ Profile) int32 { return raw })

// Rand is the randomness source of the policy; *frand.RNG satisfies it.
type Rand interface {
	Intn(n int) int
}

// Humanizer adds uniform noise scaled by randomness, then subtracts a random
// blunder penalty scaled by missing accuracy. Randomness 0 turns it into the
// identity so that play is reproducible.
type Humanizer struct {
	rng Rand
}

func NewHumanizer(rng Rand) *Humanizer {
	return &Humanizer{rng: rng}
}

func (h *Humanizer) Adjust(raw int32, p Profile) int32 {
	if p.Randomness <= 0 {
		return raw
	}
	noise := int32(Clamp(p.Randomness, 0, 100)) * NoiseScale
	adjusted := raw + int32(h.rng.Intn(int(2*noise+1))) - noise

	if miss := int32(100 - Clamp(p.Accuracy, 0, 100)); miss > 0 {
		adjusted -= int32(h.rng.Intn(int(miss*BlunderScale + 1)))
	}
	return adjusted
}

// SwapPolicy decides when a weak tier throws away its searched choice.
type SwapPolicy struct {
	// Threshold is the randomness a profile must exceed to swap at all.
	Threshold int
	// Rate is the swap probability in percent of the profile's randomness.
	Rate int
	// Prefix is how many leading candidates the replacement is drawn from.
	Prefix int
}

func DefaultSwapPolicy() SwapPolicy {
	return SwapPolicy{
		Threshold: RandomSwapThreshold,
		Rate:      RandomSwapRate,
		Prefix:    RandomSwapPrefix,
	}
}

// Probability returns the swap chance for p in percent.
func (sp SwapPolicy) Probability(p Profile) int {
	if p.Randomness <= sp.Threshold || sp.Prefix <= 0 {
		return 0
	}
	return Clamp(p.Randomness*sp.Rate/100, 0, 100)
}

// Pick reports whether to substitute and, if so, the index among n
// candidates to play instead.
func (sp SwapPolicy) Pick(rng Rand, p Profile, n int) (int, bool) {
	chance := sp.Probability(p)
	if chance == 0 || n == 0 {
		return 0, false
	}
	if rng.Intn(100) >= chance {
		return 0, false
	}
	return rng.Intn(Min(sp.Prefix, n)), true
}
