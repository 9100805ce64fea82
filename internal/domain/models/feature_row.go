package models

import (
	"encoding/json"
	"math"
	"sort"
)

// modelFieldNames maps external (underscore) names to the names the trained
// model was fit with. Only the macroeconomic columns differ.
var modelFieldNames = map[string]string{
	"emp_var_rate":   "emp.var.rate",
	"cons_price_idx": "cons.price.idx",
	"cons_conf_idx":  "cons.conf.idx",
	"nr_employed":    "nr.employed",
}

// ModelFieldName returns the model-side name of an external field.
// Names without a mapping are returned unchanged.
func ModelFieldName(name string) string {
	if m, ok := modelFieldNames[name]; ok {
		return m
	}
	return name
}

// NumericColumns lists the numeric model inputs in training order.
var NumericColumns = []string{
	"age", "campaign", "pdays", "previous",
	"emp.var.rate", "cons.price.idx", "cons.conf.idx", "euribor3m", "nr.employed",
	"is_new_customer", "high_contact_pressure", "market_condition", "life_stage",
}

// CategoricalColumns lists the categorical model inputs in training order.
var CategoricalColumns = []string{
	"job", "marital", "education", "default", "housing", "loan",
	"contact", "month", "day_of_week", "poutcome",
}

// FeatureRow is the model-facing view of an enriched lead, keyed by model
// field names.
type FeatureRow struct {
	Numeric     map[string]float64
	Categorical map[string]string
}

// NewFeatureRow renames and flattens an enriched lead into model columns.
// Missing numeric inputs become NaN.
func NewFeatureRow(e EnrichedLead) FeatureRow {
	l := e.Lead
	num := map[string]float64{
		"age":                            intOrNaN(l.Age),
		"campaign":                       intOrNaN(l.Campaign),
		"pdays":                          intOrNaN(l.Pdays),
		"previous":                       intOrNaN(l.Previous),
		ModelFieldName("emp_var_rate"):   floatOrNaN(l.EmpVarRate),
		ModelFieldName("cons_price_idx"): floatOrNaN(l.ConsPriceIdx),
		ModelFieldName("cons_conf_idx"):  floatOrNaN(l.ConsConfIdx),
		"euribor3m":                      floatOrNaN(l.Euribor3m),
		ModelFieldName("nr_employed"):    floatOrNaN(l.NrEmployed),
		"is_new_customer":                float64(e.IsNewCustomer),
		"high_contact_pressure":          float64(e.HighContactPressure),
		"market_condition":               floatOrNaN(e.MarketCondition),
		"life_stage":                     float64(e.LifeStage),
	}
	cat := map[string]string{
		"job":         l.Job,
		"marital":     l.Marital,
		"education":   l.Education,
		"default":     l.Default,
		"housing":     l.Housing,
		"loan":        l.Loan,
		"contact":     l.Contact,
		"month":       l.Month,
		"day_of_week": l.DayOfWeek,
		"poutcome":    l.Poutcome,
	}
	return FeatureRow{Numeric: num, Categorical: cat}
}

// Keys returns every column name in the row, sorted.
func (r FeatureRow) Keys() []string {
	keys := make([]string, 0, len(r.Numeric)+len(r.Categorical))
	for k := range r.Numeric {
		keys = append(keys, k)
	}
	for k := range r.Categorical {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON encodes the row as one flat object, the shape a model server
// expects for a single record. NaN is sent as null.
func (r FeatureRow) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(r.Numeric)+len(r.Categorical))
	for k, v := range r.Numeric {
		if math.IsNaN(v) {
			flat[k] = nil
			continue
		}
		flat[k] = v
	}
	for k, v := range r.Categorical {
		flat[k] = v
	}
	return json.Marshal(flat)
}

func intOrNaN(v *int) float64 {
	if v == nil {
		return math.NaN()
	}
	return float64(*v)
}

func floatOrNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
