package scoring

import (
	"context"
	"fmt"
	"math"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
	domsvc "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/service"
)

// RemoteModel scores by calling an external model server. The server
// receives feature rows keyed by model field names.
type RemoteModel struct {
	base     *HTTPServiceBase
	path     string
	version  string
	attempts int
}

// RemoteOption configures RemoteModel.
type RemoteOption func(*RemoteModel)

// WithRemoteVersion sets the version string reported for the remote model.
func WithRemoteVersion(v string) RemoteOption {
	return func(m *RemoteModel) { m.version = v }
}

// WithRemoteAttempts sets how many times a failed call is tried.
func WithRemoteAttempts(n int) RemoteOption {
	return func(m *RemoteModel) { m.attempts = n }
}

func NewRemoteModel(base *HTTPServiceBase, path string, opts ...RemoteOption) *RemoteModel {
	m := &RemoteModel{base: base, path: path, version: "remote", attempts: 1}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type remoteReq struct {
	FeaturesList []models.FeatureRow `json:"features_list"`
}

type remoteResp struct {
	Scores []float64 `json:"scores"`
}

func (m *RemoteModel) Name() string    { return "remote" }
func (m *RemoteModel) Version() string { return m.version }

func (m *RemoteModel) Score(ctx context.Context, row models.FeatureRow) (float64, error) {
	scores, err := m.ScoreBatch(ctx, []models.FeatureRow{row})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

// ScoreBatch sends all rows in one request.
func (m *RemoteModel) ScoreBatch(ctx context.Context, rows []models.FeatureRow) ([]float64, error) {
	if len(rows) == 0 {
		return []float64{}, nil
	}
	var resp remoteResp
	if err := m.base.PostJSONWithRetry(ctx, m.path, remoteReq{FeaturesList: rows}, &resp, m.attempts); err != nil {
		return nil, fmt.Errorf("remote model: %w", err)
	}
	if len(resp.Scores) != len(rows) {
		return nil, fmt.Errorf("remote model: expected %d scores, got %d", len(rows), len(resp.Scores))
	}
	for i, s := range resp.Scores {
		if math.IsNaN(s) || s < 0 || s > 1 {
			return nil, fmt.Errorf("remote model: score %d out of range: %v", i, s)
		}
	}
	return resp.Scores, nil
}

var _ domsvc.Scorer = (*RemoteModel)(nil)
