package usecase

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
	domsvc "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/service"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/repository"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/services/tabular"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/cache"
	pkgkafka "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/kafka"
)

// fixedScorer returns p for every row and counts calls.
type fixedScorer struct {
	mu    sync.Mutex
	p     float64
	err   error
	calls int
	rows  []models.FeatureRow
}

func (f *fixedScorer) Name() string    { return "fixed" }
func (f *fixedScorer) Version() string { return "v1" }

func (f *fixedScorer) Score(_ context.Context, row models.FeatureRow) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.rows = append(f.rows, row)
	return f.p, f.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []models.ScoredLead
	err    error
	closed bool
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(_ context.Context, leads []models.ScoredLead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, leads...)
	return s.err
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func sampleLead() models.Lead {
	return models.Lead{
		Age: models.Int(35), Job: "admin.", Marital: "married", Education: "university.degree",
		Default: "no", Housing: "yes", Loan: "no", Contact: "cellular",
		Month: "may", DayOfWeek: "mon", Campaign: models.Int(2), Pdays: models.Int(999),
		Previous: models.Int(0), Poutcome: "nonexistent", EmpVarRate: models.Float(-1.8),
		ConsPriceIdx: models.Float(92.893), ConsConfIdx: models.Float(-46.2),
		Euribor3m: models.Float(1.299), NrEmployed: models.Float(5099.1),
	}
}

var sampleHeader = []string{
	"age", "job", "marital", "education", "default", "housing", "loan", "contact",
	"month", "day_of_week", "campaign", "pdays", "previous", "poutcome",
	"emp.var.rate", "cons.price.idx", "cons.conf.idx", "euribor3m", "nr.employed", "y",
}

func sampleRow(age, campaign string) []string {
	return []string{
		age, "admin.", "married", "university.degree", "no", "yes", "no", "cellular",
		"may", "mon", campaign, "999", "0", "nonexistent",
		"-1.8", "92.893", "-46.2", "1.299", "5099.1", "no",
	}
}

func TestScoreUnavailable(t *testing.T) {
	s := NewLeadScorer(nil)
	if s.Available() {
		t.Fatalf("nil scorer must be unavailable")
	}
	if _, err := s.Score(context.Background(), sampleLead(), models.SourceSingle); !errors.Is(err, domsvc.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
	if _, err := s.ScoreTable(context.Background(), &tabular.Table{Header: sampleHeader}); !errors.Is(err, domsvc.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable for batch, got %v", err)
	}
	if info := s.Info(); info.Available || info.Name != "" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestScoreSingleLead(t *testing.T) {
	fs := &fixedScorer{p: 0.35}
	sink := &recordingSink{}
	s := NewLeadScorer(fs, WithSinks(sink, nil))

	pred, err := s.Score(context.Background(), sampleLead(), models.SourceSingle)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if pred.Tier != models.Tier1 || pred.LabelCode != models.LabelHigh || pred.Prediction != 1 {
		t.Fatalf("unexpected prediction %+v", pred)
	}
	if pred.Description != "Probability: 35.00%" {
		t.Fatalf("description = %q", pred.Description)
	}

	row := fs.rows[0]
	if row.Numeric["is_new_customer"] != 1 || row.Numeric["life_stage"] != 1 {
		t.Fatalf("engineered features missing from row: %+v", row.Numeric)
	}
	if _, ok := row.Numeric["emp.var.rate"]; !ok {
		t.Fatalf("row must use model field names: %+v", row.Numeric)
	}

	if len(sink.events) != 1 {
		t.Fatalf("sink events = %d, want 1", len(sink.events))
	}
	ev := sink.events[0]
	if ev.EventID == "" || ev.Source != models.SourceSingle || ev.ModelVersion != "v1" || ev.Features.IsNewCustomer != 1 {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestScoreProcessingError(t *testing.T) {
	s := NewLeadScorer(&fixedScorer{err: errors.New("column \"age\" not found")})
	_, err := s.Score(context.Background(), sampleLead(), models.SourceSingle)
	if err == nil || errors.Is(err, domsvc.ErrModelUnavailable) {
		t.Fatalf("expected processing error, got %v", err)
	}
	if !strings.Contains(err.Error(), "age") {
		t.Fatalf("error must carry the cause: %v", err)
	}
}

func TestSinkFailureDoesNotChangeResult(t *testing.T) {
	sink := &recordingSink{err: errors.New("broker down")}
	s := NewLeadScorer(&fixedScorer{p: 0.01}, WithSinks(sink), WithSinkTimeout(time.Second))
	pred, err := s.Score(context.Background(), sampleLead(), models.SourceSingle)
	if err != nil {
		t.Fatalf("sink failure leaked: %v", err)
	}
	if pred.Tier != models.Tier3 || pred.Prediction != 0 {
		t.Fatalf("unexpected prediction %+v", pred)
	}
	if err := s.Close(); err != nil || !sink.closed {
		t.Fatalf("close: %v closed=%v", err, sink.closed)
	}
}

func TestCacheHitSkipsScorer(t *testing.T) {
	fs := &fixedScorer{p: 0.1}
	sc := repository.NewScoreCache(cache.NewMemoryCache(), time.Minute)
	defer sc.Close()
	s := NewLeadScorer(fs, WithScoreCache(sc))

	first, err := s.Score(context.Background(), sampleLead(), models.SourceSingle)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	second, err := s.Score(context.Background(), sampleLead(), models.SourceSingle)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if fs.calls != 1 {
		t.Fatalf("scorer calls = %d, want 1", fs.calls)
	}
	if first != second {
		t.Fatalf("cached result differs: %+v vs %+v", first, second)
	}
}

func TestScoreTableMixedRows(t *testing.T) {
	sink := &recordingSink{}
	s := NewLeadScorer(&fixedScorer{p: 0.1}, WithSinks(sink))
	table := &tabular.Table{
		Header: sampleHeader,
		Rows: [][]string{
			sampleRow("35", "2"),
			sampleRow("abc", "2"),
			sampleRow("70.0", "7"),
			sampleRow("", "1"),
		},
	}

	res, err := s.ScoreTable(context.Background(), table)
	if err != nil {
		t.Fatalf("score table: %v", err)
	}
	if res.TotalProcessed != 4 || len(res.Results) != 4 {
		t.Fatalf("total = %d results = %d, want 4", res.TotalProcessed, len(res.Results))
	}
	for i, r := range res.Results {
		if r.RowIndex != i {
			t.Fatalf("result %d has row_index %d", i, r.RowIndex)
		}
	}
	if res.Results[0].Failed() || res.Results[2].Failed() {
		t.Fatalf("valid rows failed: %+v", res.Results)
	}
	if !res.Results[1].Failed() || !strings.Contains(res.Results[1].Err, "age") {
		t.Fatalf("row 1 must fail on age: %+v", res.Results[1])
	}
	if res.Results[3].Failed() {
		t.Fatalf("row 3 with empty age must be scored: %+v", res.Results[3])
	}
	if res.Results[0].Prediction.Tier != models.Tier2 {
		t.Fatalf("0.1 must be TIER_2, got %s", res.Results[0].Prediction.Tier)
	}
	if res.Failures() != 1 || len(sink.events) != 3 {
		t.Fatalf("failures = %d events = %d", res.Failures(), len(sink.events))
	}
	if sink.events[1].Features.LifeStage != 2 || sink.events[1].Features.HighContactPressure != 1 {
		t.Fatalf("row 2 features wrong: %+v", sink.events[1].Features)
	}
}

func TestScoreTableMissingValuesReachModel(t *testing.T) {
	fs := &fixedScorer{p: 0.3}
	s := NewLeadScorer(fs)
	noRate := sampleRow("40", "1")
	noRate[14] = ""
	table := &tabular.Table{
		Header: sampleHeader,
		Rows:   [][]string{sampleRow("35", "2"), sampleRow("", "6"), noRate, sampleRow("NaN", "NA")},
	}

	res, err := s.ScoreTable(context.Background(), table)
	if err != nil {
		t.Fatalf("score table: %v", err)
	}
	if res.Failures() != 0 || len(fs.rows) != 4 {
		t.Fatalf("rows with missing values must score: %+v", res.Results)
	}
	rows := make(map[float64]models.FeatureRow)
	for _, r := range fs.rows {
		rows[r.Numeric["campaign"]] = r
	}

	noAge := rows[6]
	if !math.IsNaN(noAge.Numeric["age"]) || noAge.Numeric["life_stage"] != 1 || noAge.Numeric["high_contact_pressure"] != 1 {
		t.Fatalf("empty age row = %+v", noAge.Numeric)
	}
	if r := rows[1]; !math.IsNaN(r.Numeric["emp.var.rate"]) || math.IsNaN(r.Numeric["market_condition"]) {
		t.Fatalf("empty emp_var_rate row = %+v", r.Numeric)
	}

	var naRow models.FeatureRow
	for _, r := range fs.rows {
		if math.IsNaN(r.Numeric["campaign"]) {
			naRow = r
		}
	}
	if naRow.Numeric == nil || !math.IsNaN(naRow.Numeric["age"]) || naRow.Numeric["high_contact_pressure"] != 0 {
		t.Fatalf("NA tokens must decode as missing: %+v", naRow.Numeric)
	}
}

func TestScoreTableMissingColumnFailsEveryRow(t *testing.T) {
	fs := &fixedScorer{p: 0.5}
	s := NewLeadScorer(fs)
	header := append([]string(nil), sampleHeader[1:]...) // no age
	rows := [][]string{sampleRow("30", "1")[1:], sampleRow("40", "1")[1:]}

	res, err := s.ScoreTable(context.Background(), &tabular.Table{Header: header, Rows: rows})
	if err != nil {
		t.Fatalf("score table: %v", err)
	}
	if res.TotalProcessed != 2 || res.Failures() != 2 {
		t.Fatalf("every row must fail: %+v", res)
	}
	if fs.calls != 0 {
		t.Fatalf("scorer must not be called")
	}
}

func TestScoreTableEmpty(t *testing.T) {
	res, err := NewLeadScorer(&fixedScorer{}).ScoreTable(context.Background(), &tabular.Table{Header: sampleHeader})
	if err != nil || res.TotalProcessed != 0 || len(res.Results) != 0 {
		t.Fatalf("empty table: %+v %v", res, err)
	}
}

func TestDecodeLeadAcceptsBothNames(t *testing.T) {
	rec := map[string]string{}
	for i, h := range sampleHeader {
		rec[h] = sampleRow("35", "2")[i]
	}
	rec["nr_employed"] = rec["nr.employed"]
	delete(rec, "nr.employed")

	got, err := DecodeLead(rec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, sampleLead()) {
		t.Fatalf("decoded %+v, want %+v", got, sampleLead())
	}

	if _, err := parseInt("35.5"); err == nil {
		t.Fatalf("35.5 is not an integer")
	}
	if n, err := parseInt(" 42.0 "); err != nil || n != 42 {
		t.Fatalf("parseInt 42.0 = %d %v", n, err)
	}
	if _, err := parseFloat("inf"); err == nil {
		t.Fatalf("inf must be rejected")
	}
	if missing := MissingColumns([]string{"age"}); len(missing) != 18 {
		t.Fatalf("missing = %v", missing)
	}
}

func TestKafkaLeadsHandler(t *testing.T) {
	sink := &recordingSink{}
	h := NewKafkaLeadsHandler("leads.incoming", NewLeadScorer(&fixedScorer{p: 0.2}, WithSinks(sink)))
	if h.Topic() != "leads.incoming" {
		t.Fatalf("topic = %s", h.Topic())
	}

	body := `{"age":35,"job":"admin.","marital":"married","education":"university.degree","default":"no",
"housing":"yes","loan":"no","contact":"cellular","month":"may","day_of_week":"mon","campaign":2,
"pdays":999,"previous":0,"poutcome":"nonexistent","emp_var_rate":-1.8,"cons_price_idx":92.893,
"cons_conf_idx":-46.2,"euribor3m":1.299,"nr_employed":5099.1}`
	if err := h.Handle(context.Background(), []byte(body)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(sink.events) != 1 || sink.events[0].Source != models.SourceKafka {
		t.Fatalf("expected one kafka event, got %+v", sink.events)
	}

	var perm *pkgkafka.PermanentError
	if err := h.Handle(context.Background(), []byte(`{`)); !errors.As(err, &perm) {
		t.Fatalf("malformed payload must be permanent, got %v", err)
	}
	if err := h.Handle(context.Background(), []byte(`{"age":35}`)); !errors.As(err, &perm) {
		t.Fatalf("incomplete lead must be permanent, got %v", err)
	}

	down := NewKafkaLeadsHandler("t", NewLeadScorer(nil))
	err := down.Handle(context.Background(), []byte(body))
	if !errors.Is(err, domsvc.ErrModelUnavailable) || errors.As(err, &perm) {
		t.Fatalf("unavailable model must be retryable, got %v", err)
	}
}
