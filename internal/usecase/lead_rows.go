package usecase

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
)

// ErrInvalidRow wraps every per-row conversion failure.
var ErrInvalidRow = errors.New("invalid row")

type leadColumn struct {
	name string
	set  func(l *models.Lead, v string) error
}

func intColumn(name string, dst func(*models.Lead) **int) leadColumn {
	return leadColumn{name: name, set: func(l *models.Lead, v string) error {
		if isMissing(v) {
			return nil
		}
		n, err := parseInt(v)
		if err != nil {
			return err
		}
		*dst(l) = &n
		return nil
	}}
}

func floatColumn(name string, dst func(*models.Lead) **float64) leadColumn {
	return leadColumn{name: name, set: func(l *models.Lead, v string) error {
		if isMissing(v) {
			return nil
		}
		f, err := parseFloat(v)
		if err != nil {
			return err
		}
		*dst(l) = &f
		return nil
	}}
}

func stringColumn(name string, dst func(*models.Lead) *string) leadColumn {
	return leadColumn{name: name, set: func(l *models.Lead, v string) error {
		*dst(l) = strings.TrimSpace(v)
		return nil
	}}
}

// in models.Lead field order, so the first reported error is stable
var leadColumns = []leadColumn{
	intColumn("age", func(l *models.Lead) **int { return &l.Age }),
	stringColumn("job", func(l *models.Lead) *string { return &l.Job }),
	stringColumn("marital", func(l *models.Lead) *string { return &l.Marital }),
	stringColumn("education", func(l *models.Lead) *string { return &l.Education }),
	stringColumn("default", func(l *models.Lead) *string { return &l.Default }),
	stringColumn("housing", func(l *models.Lead) *string { return &l.Housing }),
	stringColumn("loan", func(l *models.Lead) *string { return &l.Loan }),
	stringColumn("contact", func(l *models.Lead) *string { return &l.Contact }),
	stringColumn("month", func(l *models.Lead) *string { return &l.Month }),
	stringColumn("day_of_week", func(l *models.Lead) *string { return &l.DayOfWeek }),
	intColumn("campaign", func(l *models.Lead) **int { return &l.Campaign }),
	intColumn("pdays", func(l *models.Lead) **int { return &l.Pdays }),
	intColumn("previous", func(l *models.Lead) **int { return &l.Previous }),
	stringColumn("poutcome", func(l *models.Lead) *string { return &l.Poutcome }),
	floatColumn("emp_var_rate", func(l *models.Lead) **float64 { return &l.EmpVarRate }),
	floatColumn("cons_price_idx", func(l *models.Lead) **float64 { return &l.ConsPriceIdx }),
	floatColumn("cons_conf_idx", func(l *models.Lead) **float64 { return &l.ConsConfIdx }),
	floatColumn("euribor3m", func(l *models.Lead) **float64 { return &l.Euribor3m }),
	floatColumn("nr_employed", func(l *models.Lead) **float64 { return &l.NrEmployed }),
}

// MissingColumns lists lead columns absent from header, accepting either
// the lead name or the model's dotted name.
func MissingColumns(header []string) []string {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[h] = true
	}
	var missing []string
	for _, c := range leadColumns {
		if !have[c.name] && !have[models.ModelFieldName(c.name)] {
			missing = append(missing, c.name)
		}
	}
	return missing
}

// DecodeLead converts a header-keyed row into a Lead. Empty or NA numeric
// cells decode as missing values.
func DecodeLead(rec map[string]string) (models.Lead, error) {
	var l models.Lead
	for _, c := range leadColumns {
		v, ok := rec[c.name]
		if !ok {
			v, ok = rec[models.ModelFieldName(c.name)]
		}
		if !ok {
			return models.Lead{}, fmt.Errorf("%w: column %q not found", ErrInvalidRow, c.name)
		}
		if err := c.set(&l, v); err != nil {
			return models.Lead{}, fmt.Errorf("%w: %s: %v", ErrInvalidRow, c.name, err)
		}
	}
	return l, nil
}

// missingTokens are the cell values read as a missing number, matching what
// common dataframe readers treat as NA.
var missingTokens = map[string]bool{
	"": true, "na": true, "n/a": true, "#n/a": true, "nan": true, "-nan": true,
	"null": true, "none": true, "<na>": true,
}

func isMissing(s string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(s))]
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not finite", s)
	}
	return f, nil
}

// parseInt accepts integral floats such as "35.0", which spreadsheets emit.
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := parseFloat(s)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int(f), nil
}
