package features

import "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"

const (
	highContactPressureAbove = 4
	youngAgeBelow            = 30
	seniorAgeAbove           = 60
)

// Derive computes the engineered features for a lead. It is pure and total:
// no bounds checks, no division, "unknown" strings are irrelevant here.
// Missing inputs never match a condition, so a lead without an age lands in
// the middle life stage and market_condition stays missing.
func Derive(l models.Lead) models.EngineeredFeatures {
	f := models.EngineeredFeatures{LifeStage: 1}
	if l.Pdays != nil {
		f.IsNewCustomer = IsNewCustomer(*l.Pdays)
	}
	if l.Campaign != nil {
		f.HighContactPressure = HighContactPressure(*l.Campaign)
	}
	if l.Euribor3m != nil && l.ConsConfIdx != nil {
		f.MarketCondition = models.Float(MarketCondition(*l.Euribor3m, *l.ConsConfIdx))
	}
	if l.Age != nil {
		f.LifeStage = LifeStage(*l.Age)
	}
	return f
}

// Augment attaches freshly derived features to the lead. Applying it to an
// already enriched lead recomputes the same values.
func Augment(l models.Lead) models.EnrichedLead {
	return models.EnrichedLead{Lead: l, EngineeredFeatures: Derive(l)}
}

// IsNewCustomer is 1 when pdays holds the never-contacted sentinel.
func IsNewCustomer(pdays int) int {
	if pdays == models.NeverContacted {
		return 1
	}
	return 0
}

// HighContactPressure is 1 when the lead was contacted more than 4 times
// in this campaign.
func HighContactPressure(campaign int) int {
	if campaign > highContactPressureAbove {
		return 1
	}
	return 0
}

// MarketCondition is the interbank rate scaled by consumer confidence.
func MarketCondition(euribor3m, consConfIdx float64) float64 {
	return euribor3m * consConfIdx
}

// LifeStage bands age: <30 -> 0, 30..60 -> 1, >60 -> 2.
func LifeStage(age int) int {
	switch {
	case age < youngAgeBelow:
		return 0
	case age > seniorAgeAbove:
		return 2
	default:
		return 1
	}
}
