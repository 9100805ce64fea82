package models

import (
	"strings"
	"testing"
)

func TestClassifyBoundaries(t *testing.T) {
	th := DefaultThresholds()
	cases := []struct {
		p     float64
		tier  Tier
		label Label
	}{
		{0.2841, Tier1, LabelHigh},
		{0.28409999, Tier2, LabelMedium},
		{0.0685, Tier2, LabelMedium},
		{0.06849999, Tier3, LabelStandard},
		{0, Tier3, LabelStandard},
		{1, Tier1, LabelHigh},
	}
	for _, c := range cases {
		tier, label := th.Classify(c.p)
		if tier != c.tier || label != c.label {
			t.Fatalf("Classify(%v) = %s/%s, want %s/%s", c.p, tier, label, c.tier, c.label)
		}
	}
}

func TestClassifyMonotonic(t *testing.T) {
	th := DefaultThresholds()
	prev := th.Tier(0).Rank()
	for i := 1; i <= 10000; i++ {
		p := float64(i) / 10000
		r := th.Tier(p).Rank()
		if r < prev {
			t.Fatalf("priority dropped at p=%v", p)
		}
		prev = r
	}
}

func TestBinary(t *testing.T) {
	th := DefaultThresholds()
	if th.Binary(0.0685) != 1 || th.Binary(0.06849999) != 0 || th.Binary(0.9) != 1 {
		t.Fatalf("binary prediction must switch at the TIER_2 bound")
	}
}

func TestNewPredictionDescription(t *testing.T) {
	p := NewPrediction(0.1234, DefaultThresholds())
	if p.Description != "Probability: 12.34%" {
		t.Fatalf("unexpected description %q", p.Description)
	}
	if p.Tier != Tier2 || p.LabelCode != LabelMedium || p.Prediction != 1 {
		t.Fatalf("unexpected prediction %+v", p)
	}
}

func TestRowResultJSON(t *testing.T) {
	ok := NewPrediction(0.5, DefaultThresholds())
	b, err := RowResult{RowIndex: 2, Prediction: &ok}.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"row_index":2`) || strings.Contains(string(b), `"error"`) {
		t.Fatalf("unexpected success row %s", b)
	}
	b, err = RowResult{RowIndex: 3, Err: "bad age"}.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"row_index":3,"error":"bad age"}` {
		t.Fatalf("unexpected error row %s", b)
	}
}

func TestModelFieldName(t *testing.T) {
	want := map[string]string{
		"emp_var_rate":   "emp.var.rate",
		"cons_price_idx": "cons.price.idx",
		"cons_conf_idx":  "cons.conf.idx",
		"nr_employed":    "nr.employed",
		"euribor3m":      "euribor3m",
		"age":            "age",
	}
	for in, out := range want {
		if got := ModelFieldName(in); got != out {
			t.Fatalf("ModelFieldName(%q) = %q, want %q", in, got, out)
		}
	}
	row := NewFeatureRow(EnrichedLead{Lead: Lead{EmpVarRate: Float(1.1), NrEmployed: Float(5191)}})
	if row.Numeric["emp.var.rate"] != 1.1 || row.Numeric["nr.employed"] != 5191 {
		t.Fatalf("feature row must use model names: %v", row.Numeric)
	}
	if _, ok := row.Numeric["emp_var_rate"]; ok {
		t.Fatalf("feature row leaked external name")
	}
}
