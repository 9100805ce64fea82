package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Prediction is the scored outcome for one lead.
type Prediction struct {
	Prediction  int     `json:"prediction"`
	Score       float64 `json:"score"`
	Tier        Tier    `json:"tier"`
	LabelCode   Label   `json:"label_code"`
	Description string  `json:"description,omitempty"`
}

// NewPrediction shapes a probability into a Prediction using th.
func NewPrediction(p float64, th Thresholds) Prediction {
	tier, label := th.Classify(p)
	return Prediction{
		Prediction:  th.Binary(p),
		Score:       p,
		Tier:        tier,
		LabelCode:   label,
		Description: fmt.Sprintf("Probability: %.2f%%", p*100),
	}
}

// RowResult is one entry of a batch response: either a prediction or the
// error that stopped that row.
type RowResult struct {
	RowIndex   int
	Prediction *Prediction
	Err        string
}

// Failed reports whether the row carries an error instead of a prediction.
func (r RowResult) Failed() bool { return r.Prediction == nil }

func (r RowResult) MarshalJSON() ([]byte, error) {
	if r.Prediction == nil {
		return json.Marshal(struct {
			RowIndex int    `json:"row_index"`
			Error    string `json:"error"`
		}{r.RowIndex, r.Err})
	}
	return json.Marshal(struct {
		RowIndex   int     `json:"row_index"`
		Prediction int     `json:"prediction"`
		Score      float64 `json:"score"`
		Tier       Tier    `json:"tier"`
		LabelCode  Label   `json:"label_code"`
	}{r.RowIndex, r.Prediction.Prediction, r.Prediction.Score, r.Prediction.Tier, r.Prediction.LabelCode})
}

// BatchResult is the /predict-batch response body.
type BatchResult struct {
	Results        []RowResult `json:"results"`
	TotalProcessed int         `json:"total_processed"`
}

// Failures counts error rows.
func (b BatchResult) Failures() int {
	n := 0
	for _, r := range b.Results {
		if r.Failed() {
			n++
		}
	}
	return n
}

// ScoredLead is the event emitted to downstream sinks after scoring.
type ScoredLead struct {
	EventID      string             `json:"event_id"`
	Lead         Lead               `json:"lead"`
	Features     EngineeredFeatures `json:"features"`
	Prediction   Prediction         `json:"prediction"`
	ModelName    string             `json:"model_name"`
	ModelVersion string             `json:"model_version"`
	Source       string             `json:"source"`
	ScoredAt     time.Time          `json:"scored_at"`
}

// Scoring sources.
const (
	SourceSingle = "single"
	SourceBatch  = "batch"
	SourceStream = "stream"
	SourceKafka  = "kafka"
)

// ModelInfo describes the loaded scorer for the /model route.
type ModelInfo struct {
	Available  bool       `json:"available"`
	Name       string     `json:"name,omitempty"`
	Version    string     `json:"version,omitempty"`
	Thresholds Thresholds `json:"thresholds"`
}
