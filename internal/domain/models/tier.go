package models

// Tier is a priority bucket assigned from a calibrated probability.
type Tier string

// Label is the frontend-facing code paired with a Tier.
type Label string

const (
	Tier1 Tier = "TIER_1"
	Tier2 Tier = "TIER_2"
	Tier3 Tier = "TIER_3"

	LabelHigh     Label = "HIGH_PRIORITY"
	LabelMedium   Label = "MEDIUM_PRIORITY"
	LabelStandard Label = "STANDARD_PRIORITY"
)

// Offline-calibrated cut points: Tier1 holds roughly the top 10% of leads,
// Tier1+Tier2 roughly the top 30%.
const (
	DefaultTier1Threshold = 0.2841
	DefaultTier2Threshold = 0.0685
)

// Thresholds are the lower bounds of TIER_1 and TIER_2. Tier2 <= Tier1.
type Thresholds struct {
	Tier1 float64 `json:"tier_1" yaml:"tier_1"`
	Tier2 float64 `json:"tier_2" yaml:"tier_2"`
}

// DefaultThresholds returns the calibrated production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Tier1: DefaultTier1Threshold, Tier2: DefaultTier2Threshold}
}

// Classify buckets p into a tier and its label.
func (t Thresholds) Classify(p float64) (Tier, Label) {
	switch {
	case p >= t.Tier1:
		return Tier1, LabelHigh
	case p >= t.Tier2:
		return Tier2, LabelMedium
	default:
		return Tier3, LabelStandard
	}
}

// Tier is Classify without the label.
func (t Thresholds) Tier(p float64) Tier {
	tier, _ := t.Classify(p)
	return tier
}

// Binary returns the 0/1 prediction: 1 when p reaches the TIER_2 bound.
func (t Thresholds) Binary(p float64) int {
	if p >= t.Tier2 {
		return 1
	}
	return 0
}

// Rank orders tiers by priority, higher is more urgent.
func (t Tier) Rank() int {
	switch t {
	case Tier1:
		return 3
	case Tier2:
		return 2
	case Tier3:
		return 1
	default:
		return 0
	}
}
