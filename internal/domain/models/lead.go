package models

import (
	"encoding/json"
	"fmt"
	"math"
)

// Lead is one customer contact event as received from a client or a batch row.
// A nil numeric field is a missing value: the model imputes it.
type Lead struct {
	Age          *int     `json:"age"`
	Job          string   `json:"job"`
	Marital      string   `json:"marital"`
	Education    string   `json:"education"`
	Default      string   `json:"default"`
	Housing      string   `json:"housing"`
	Loan         string   `json:"loan"`
	Contact      string   `json:"contact"`
	Month        string   `json:"month"`
	DayOfWeek    string   `json:"day_of_week"`
	Campaign     *int     `json:"campaign"`
	Pdays        *int     `json:"pdays"`
	Previous     *int     `json:"previous"`
	Poutcome     string   `json:"poutcome"`
	EmpVarRate   *float64 `json:"emp_var_rate"`
	ConsPriceIdx *float64 `json:"cons_price_idx"`
	ConsConfIdx  *float64 `json:"cons_conf_idx"`
	Euribor3m    *float64 `json:"euribor3m"`
	NrEmployed   *float64 `json:"nr_employed"`
}

// Int and Float return pointers for present numeric values.
func Int(v int) *int           { return &v }
func Float(v float64) *float64 { return &v }

// NeverContacted is the pdays sentinel for "no previous contact".
const NeverContacted = 999

// EngineeredFeatures are the fields derived from a Lead before scoring.
// MarketCondition is nil when either of its inputs is missing.
type EngineeredFeatures struct {
	IsNewCustomer       int      `json:"is_new_customer"`
	HighContactPressure int      `json:"high_contact_pressure"`
	MarketCondition     *float64 `json:"market_condition"`
	LifeStage           int      `json:"life_stage"`
}

// EnrichedLead is a Lead augmented with its engineered features.
type EnrichedLead struct {
	Lead
	EngineeredFeatures
}

// Integer is a JSON integer that also accepts integral floats such as 35.0.
type Integer int

func (i *Integer) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return fmt.Errorf("%s is not an integer", b)
	}
	*i = Integer(f)
	return nil
}

func (i *Integer) ptr() *int {
	if i == nil {
		return nil
	}
	return Int(int(*i))
}

// LeadRequest is the /predict body. Pointer fields make presence checks
// possible: zero is a legitimate value for most of them.
type LeadRequest struct {
	Age          *Integer `json:"age" validate:"required"`
	Job          *string  `json:"job" validate:"required"`
	Marital      *string  `json:"marital" validate:"required"`
	Education    *string  `json:"education" validate:"required"`
	Default      *string  `json:"default" validate:"required"`
	Housing      *string  `json:"housing" validate:"required"`
	Loan         *string  `json:"loan" validate:"required"`
	Contact      *string  `json:"contact" validate:"required"`
	Month        *string  `json:"month" validate:"required"`
	DayOfWeek    *string  `json:"day_of_week" validate:"required"`
	Campaign     *Integer `json:"campaign" validate:"required"`
	Pdays        *Integer `json:"pdays" validate:"required"`
	Previous     *Integer `json:"previous" validate:"required"`
	Poutcome     *string  `json:"poutcome" validate:"required"`
	EmpVarRate   *float64 `json:"emp_var_rate" validate:"required"`
	ConsPriceIdx *float64 `json:"cons_price_idx" validate:"required"`
	ConsConfIdx  *float64 `json:"cons_conf_idx" validate:"required"`
	Euribor3m    *float64 `json:"euribor3m" validate:"required"`
	NrEmployed   *float64 `json:"nr_employed" validate:"required"`
}

// ToLead dereferences a validated request. Call only after validation.
func (r *LeadRequest) ToLead() Lead {
	return Lead{
		Age:          r.Age.ptr(),
		Job:          *r.Job,
		Marital:      *r.Marital,
		Education:    *r.Education,
		Default:      *r.Default,
		Housing:      *r.Housing,
		Loan:         *r.Loan,
		Contact:      *r.Contact,
		Month:        *r.Month,
		DayOfWeek:    *r.DayOfWeek,
		Campaign:     r.Campaign.ptr(),
		Pdays:        r.Pdays.ptr(),
		Previous:     r.Previous.ptr(),
		Poutcome:     *r.Poutcome,
		EmpVarRate:   Float(*r.EmpVarRate),
		ConsPriceIdx: Float(*r.ConsPriceIdx),
		ConsConfIdx:  Float(*r.ConsConfIdx),
		Euribor3m:    Float(*r.Euribor3m),
		NrEmployed:   Float(*r.NrEmployed),
	}
}
