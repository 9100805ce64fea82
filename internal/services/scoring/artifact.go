package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
	domsvc "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/service"
)

// MissingCategory is the fill value for empty categorical inputs.
const MissingCategory = "missing"

// Artifact is the exported form of the trained pipeline: preprocessing
// parameters, one boosted ensemble per calibration fold, and the sigmoid
// calibrator fitted for that fold.
//
// The input vector is laid out as the scaled numeric columns in order,
// followed by one slot per category of each categorical column.
type Artifact struct {
	Name        string              `json:"name"`
	Version     string              `json:"version"`
	Numeric     []NumericColumn     `json:"numeric"`
	Categorical []CategoricalColumn `json:"categorical"`
	Folds       []Fold              `json:"folds"`
}

// NumericColumn carries median imputation and standard scaling parameters.
type NumericColumn struct {
	Name   string  `json:"name"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	Scale  float64 `json:"scale"`
}

// CategoricalColumn lists the categories seen at fit time. Values outside the
// list encode to all zeros.
type CategoricalColumn struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
}

// Fold is one calibrated booster.
type Fold struct {
	BaseMargin  float64    `json:"base_margin"`
	Trees       []Tree     `json:"trees"`
	Calibration Calibrator `json:"calibration"`
}

// Calibrator maps a raw probability f to 1 / (1 + exp(A*f + B)).
type Calibrator struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// Tree is a flat node list; node 0 is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Node is a split when Leaf is nil. Values below Threshold go to Yes, NaN
// goes to Missing (Yes when unset).
type Node struct {
	Feature   int      `json:"feature"`
	Threshold float64  `json:"threshold"`
	Yes       int      `json:"yes"`
	No        int      `json:"no"`
	Missing   *int     `json:"missing,omitempty"`
	Leaf      *float64 `json:"leaf,omitempty"`
}

// ArtifactModel evaluates an Artifact. It is immutable after load and safe
// for concurrent use.
type ArtifactModel struct {
	art      Artifact
	catIndex []map[string]int
	catStart []int
	width    int
}

// LoadArtifact reads and validates a model artifact file.
func LoadArtifact(path string) (*ArtifactModel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model artifact: %w", err)
	}
	defer f.Close()
	return ReadArtifact(f)
}

// ReadArtifact decodes and validates an artifact from r.
func ReadArtifact(r io.Reader) (*ArtifactModel, error) {
	var art Artifact
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&art); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	return NewArtifactModel(art)
}

// NewArtifactModel validates art and precomputes the one-hot layout.
func NewArtifactModel(art Artifact) (*ArtifactModel, error) {
	if len(art.Numeric) == 0 && len(art.Categorical) == 0 {
		return nil, errors.New("model artifact has no input columns")
	}
	if len(art.Folds) == 0 {
		return nil, errors.New("model artifact has no folds")
	}
	m := &ArtifactModel{art: art}
	m.width = len(art.Numeric)
	for _, c := range art.Categorical {
		idx := make(map[string]int, len(c.Categories))
		for i, cat := range c.Categories {
			if _, dup := idx[cat]; dup {
				return nil, fmt.Errorf("column %q: duplicate category %q", c.Name, cat)
			}
			idx[cat] = i
		}
		m.catIndex = append(m.catIndex, idx)
		m.catStart = append(m.catStart, m.width)
		m.width += len(c.Categories)
	}
	for fi, fold := range art.Folds {
		for ti, tree := range fold.Trees {
			if err := validateTree(tree, m.width); err != nil {
				return nil, fmt.Errorf("fold %d tree %d: %w", fi, ti, err)
			}
		}
	}
	return m, nil
}

// children must point forward so evaluation always terminates
func validateTree(t Tree, width int) error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Leaf != nil {
			continue
		}
		if n.Feature < 0 || n.Feature >= width {
			return fmt.Errorf("node %d: feature %d out of range [0,%d)", i, n.Feature, width)
		}
		kids := []int{n.Yes, n.No}
		if n.Missing != nil {
			kids = append(kids, *n.Missing)
		}
		for _, k := range kids {
			if k <= i || k >= len(t.Nodes) {
				return fmt.Errorf("node %d: child %d out of range", i, k)
			}
		}
	}
	return nil
}

func (m *ArtifactModel) Name() string {
	if m.art.Name == "" {
		return "artifact"
	}
	return m.art.Name
}

func (m *ArtifactModel) Version() string { return m.art.Version }

// Width is the length of the encoded input vector.
func (m *ArtifactModel) Width() int { return m.width }

// Score runs preprocessing, every fold, and averages the calibrated outputs.
func (m *ArtifactModel) Score(ctx context.Context, row models.FeatureRow) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	x, err := m.Encode(row)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, fold := range m.art.Folds {
		margin := fold.BaseMargin
		for _, t := range fold.Trees {
			margin += evalTree(t, x)
		}
		raw := sigmoid(margin)
		sum += 1 / (1 + math.Exp(fold.Calibration.A*raw+fold.Calibration.B))
	}
	p := sum / float64(len(m.art.Folds))
	switch {
	case math.IsNaN(p):
		return 0, errors.New("model produced NaN")
	case p < 0:
		p = 0
	case p > 1:
		p = 1
	}
	return p, nil
}

// Encode imputes, scales and one-hot encodes row into the model vector.
func (m *ArtifactModel) Encode(row models.FeatureRow) ([]float64, error) {
	x := make([]float64, m.width)
	for i, c := range m.art.Numeric {
		v, ok := row.Numeric[c.Name]
		if !ok {
			return nil, fmt.Errorf("column %q not found in feature row", c.Name)
		}
		if math.IsInf(v, 0) {
			return nil, fmt.Errorf("column %q: input contains infinity", c.Name)
		}
		if math.IsNaN(v) {
			v = c.Median
		}
		scale := c.Scale
		if scale == 0 {
			scale = 1
		}
		x[i] = (v - c.Mean) / scale
	}
	for i, c := range m.art.Categorical {
		v, ok := row.Categorical[c.Name]
		if !ok {
			return nil, fmt.Errorf("column %q not found in feature row", c.Name)
		}
		if v == "" {
			v = MissingCategory
		}
		if pos, ok := m.catIndex[i][v]; ok {
			x[m.catStart[i]+pos] = 1
		}
	}
	return x, nil
}

func evalTree(t Tree, x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf != nil {
			return *n.Leaf
		}
		v := x[n.Feature]
		switch {
		case math.IsNaN(v):
			if n.Missing != nil {
				i = *n.Missing
			} else {
				i = n.Yes
			}
		case v < n.Threshold:
			i = n.Yes
		default:
			i = n.No
		}
	}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

var _ domsvc.Scorer = (*ArtifactModel)(nil)
