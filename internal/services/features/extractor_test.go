package features

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
)

func TestDeriveScenario(t *testing.T) {
	l := models.Lead{
		Age: models.Int(35), Pdays: models.Int(999), Campaign: models.Int(2),
		Euribor3m: models.Float(4.857), ConsConfIdx: models.Float(-36.4),
	}
	f := Derive(l)
	if f.IsNewCustomer != 1 {
		t.Fatalf("is_new_customer = %d, want 1", f.IsNewCustomer)
	}
	if f.HighContactPressure != 0 {
		t.Fatalf("high_contact_pressure = %d, want 0", f.HighContactPressure)
	}
	if f.MarketCondition == nil || math.Abs(*f.MarketCondition-(-176.8)) > 0.01 {
		t.Fatalf("market_condition = %v, want about -176.8", f.MarketCondition)
	}
	if f.LifeStage != 1 {
		t.Fatalf("life_stage = %d, want 1", f.LifeStage)
	}
}

func TestDeriveMissingInputs(t *testing.T) {
	f := Derive(models.Lead{Euribor3m: models.Float(1.3)})
	if f.IsNewCustomer != 0 || f.HighContactPressure != 0 {
		t.Fatalf("missing pdays/campaign must not set flags: %+v", f)
	}
	if f.MarketCondition != nil {
		t.Fatalf("market_condition must stay missing, got %v", *f.MarketCondition)
	}
	if f.LifeStage != 1 {
		t.Fatalf("missing age life_stage = %d, want 1", f.LifeStage)
	}

	row := models.NewFeatureRow(Augment(models.Lead{}))
	for _, col := range []string{"age", "emp.var.rate", "market_condition"} {
		if !math.IsNaN(row.Numeric[col]) {
			t.Fatalf("%s = %v, want NaN", col, row.Numeric[col])
		}
	}
	if row.Numeric["life_stage"] != 1 {
		t.Fatalf("row life_stage = %v", row.Numeric["life_stage"])
	}
	b, err := row.MarshalJSON()
	if err != nil || !strings.Contains(string(b), `"age":null`) {
		t.Fatalf("NaN must encode as null: %s %v", b, err)
	}
}

func TestIsNewCustomerOnlyForSentinel(t *testing.T) {
	for _, pdays := range []int{-999, -1, 0, 1, 6, 998, 1000, 999} {
		want := 0
		if pdays == 999 {
			want = 1
		}
		if got := IsNewCustomer(pdays); got != want {
			t.Fatalf("IsNewCustomer(%d) = %d, want %d", pdays, got, want)
		}
	}
}

func TestHighContactPressureBoundary(t *testing.T) {
	cases := map[int]int{-1: 0, 0: 0, 4: 0, 5: 1, 56: 1}
	for campaign, want := range cases {
		if got := HighContactPressure(campaign); got != want {
			t.Fatalf("HighContactPressure(%d) = %d, want %d", campaign, got, want)
		}
	}
}

func TestLifeStageBands(t *testing.T) {
	cases := map[int]int{-5: 0, 0: 0, 29: 0, 30: 1, 45: 1, 60: 1, 61: 2, 120: 2}
	for age, want := range cases {
		if got := LifeStage(age); got != want {
			t.Fatalf("LifeStage(%d) = %d, want %d", age, got, want)
		}
	}
	// every age maps to exactly one band and bands never go backwards
	prev := LifeStage(-10)
	for age := -9; age <= 130; age++ {
		cur := LifeStage(age)
		if cur < prev || cur-prev > 1 {
			t.Fatalf("LifeStage not a step partition at age %d: %d -> %d", age, prev, cur)
		}
		prev = cur
	}
}

func TestAugmentIsIdempotent(t *testing.T) {
	l := models.Lead{
		Age: models.Int(61), Pdays: models.Int(3), Campaign: models.Int(7),
		Euribor3m: models.Float(1.2), ConsConfIdx: models.Float(-40), Job: "unknown",
	}
	first := Augment(l)
	second := Augment(first.Lead)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("re-deriving changed features: %+v vs %+v", first.EngineeredFeatures, second.EngineeredFeatures)
	}
	if first.Job != "unknown" {
		t.Fatalf("raw fields must pass through untouched")
	}
}
