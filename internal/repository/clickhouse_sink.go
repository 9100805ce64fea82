package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
	domrepo "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/repository"
	pkgch "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/clickhouse"
	applogger "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/logger"
)

// Execer is satisfied by *sql.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var scoredLeadColumns = []string{
	"event_id", "scored_at", "source", "model_name", "model_version",
	"score", "prediction", "tier", "label_code",
	"age", "job", "campaign", "pdays",
	"is_new_customer", "high_contact_pressure", "market_condition", "life_stage",
	"lead_json",
}

// ScoredLeadsSchema returns the idempotent DDL for the audit table.
func ScoredLeadsSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    event_id String,
    scored_at DateTime64(3, 'UTC'),
    source LowCardinality(String),
    model_name LowCardinality(String),
    model_version LowCardinality(String),
    score Float64,
    prediction UInt8,
    tier LowCardinality(String),
    label_code LowCardinality(String),
    age Nullable(Int32),
    job LowCardinality(String),
    campaign Nullable(Int32),
    pdays Nullable(Int32),
    is_new_customer UInt8,
    high_contact_pressure UInt8,
    market_condition Nullable(Float64),
    life_stage UInt8,
    lead_json String
) ENGINE = MergeTree
PARTITION BY toYYYYMM(scored_at)
ORDER BY (tier, scored_at, event_id)`, database, table),
	}
}

// ClickHouseScoreSink appends scored leads to an audit table.
type ClickHouseScoreSink struct {
	db    Execer
	table string
	l     *applogger.Logger
}

// NewClickHouseScoreSink writes into table (database-qualified if needed).
func NewClickHouseScoreSink(db Execer, table string) *ClickHouseScoreSink {
	return &ClickHouseScoreSink{db: db, table: table, l: applogger.Nop()}
}

// NewClickHouseScoreSinkFromClient wires the sink to a pkg/clickhouse client.
func NewClickHouseScoreSinkFromClient(ch *pkgch.Client, table string) *ClickHouseScoreSink {
	return NewClickHouseScoreSink(ch.DB(), table)
}

// SetLogger injects a structured logger.
func (s *ClickHouseScoreSink) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *ClickHouseScoreSink) Name() string { return "clickhouse" }

func (s *ClickHouseScoreSink) Publish(ctx context.Context, leads []models.ScoredLead) error {
	if len(leads) == 0 {
		return nil
	}
	// multi-row VALUES, chunked to bound statement size
	const chunkSize = 2000
	row := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(scoredLeadColumns)), ", ") + ")"
	for start := 0; start < len(leads); start += chunkSize {
		end := start + chunkSize
		if end > len(leads) {
			end = len(leads)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*len(scoredLeadColumns))
		for _, sl := range leads[start:end] {
			leadJSON, err := json.Marshal(sl.Lead)
			if err != nil {
				return fmt.Errorf("marshal lead %s: %w", sl.EventID, err)
			}
			values = append(values, row)
			args = append(args,
				sl.EventID,
				sl.ScoredAt.UTC(),
				sl.Source,
				sl.ModelName,
				sl.ModelVersion,
				sl.Prediction.Score,
				uint8(sl.Prediction.Prediction),
				string(sl.Prediction.Tier),
				string(sl.Prediction.LabelCode),
				nullInt32(sl.Lead.Age),
				sl.Lead.Job,
				nullInt32(sl.Lead.Campaign),
				nullInt32(sl.Lead.Pdays),
				uint8(sl.Features.IsNewCustomer),
				uint8(sl.Features.HighContactPressure),
				nullFloat(sl.Features.MarketCondition),
				uint8(sl.Features.LifeStage),
				string(leadJSON),
			)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
			s.table, strings.Join(scoredLeadColumns, ", "), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert scored leads",
				applogger.String("table", s.table),
				applogger.Int("rows", end-start),
				applogger.Error(err),
			)
			return fmt.Errorf("insert scored leads: %w", err)
		}
	}
	return nil
}

// missing inputs are written as NULL
func nullInt32(v *int) interface{} {
	if v == nil {
		return nil
	}
	return int32(*v)
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// Close is a no-op: the connection pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseScoreSink) Close() error { return nil }

var _ domrepo.ScoreSink = (*ClickHouseScoreSink)(nil)
