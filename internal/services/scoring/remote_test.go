package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
	xhttp "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/http"
)

func TestRemoteModelSendsModelFieldNames(t *testing.T) {
	var got map[string][]map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"scores":[0.42]}`))
	}))
	defer srv.Close()

	m := NewRemoteModel(NewHTTPServiceBase(srv.URL, time.Second), "/predict", WithRemoteVersion("v7"))
	lead := models.EnrichedLead{Lead: models.Lead{Age: models.Int(30), Job: "admin.", EmpVarRate: models.Float(1.1)}}
	p, err := m.Score(context.Background(), models.NewFeatureRow(lead))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if p != 0.42 {
		t.Fatalf("score = %v, want 0.42", p)
	}
	if m.Version() != "v7" {
		t.Fatalf("version = %s", m.Version())
	}
	rows := got["features_list"]
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	if _, ok := rows[0]["emp.var.rate"]; !ok {
		t.Fatalf("row must use dotted model names: %v", rows[0])
	}
	if v, ok := rows[0]["pdays"]; !ok || v != nil {
		t.Fatalf("missing pdays must be sent as null: %v", rows[0])
	}
	if rows[0]["job"] != "admin." {
		t.Fatalf("categorical value lost: %v", rows[0])
	}
}

func TestRemoteModelErrors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"count mismatch": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"scores":[]}`))
		},
		"out of range": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"scores":[1.5]}`))
		},
	}
	for name, h := range cases {
		srv := httptest.NewServer(h)
		m := NewRemoteModel(NewHTTPServiceBase(srv.URL, time.Second), "/predict", WithRemoteAttempts(2))
		if _, err := m.Score(context.Background(), models.FeatureRow{}); err == nil {
			t.Fatalf("%s: expected error", name)
		}
		srv.Close()
	}
}

func TestRemoteModelRetriesOnlyTransientFailures(t *testing.T) {
	var calls int32
	status := int32(http.StatusBadGateway)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "nope", int(atomic.LoadInt32(&status)))
	}))
	defer srv.Close()

	m := NewRemoteModel(NewHTTPServiceBase(srv.URL, time.Second), "/predict", WithRemoteAttempts(3))
	if _, err := m.Score(context.Background(), models.FeatureRow{}); err == nil {
		t.Fatalf("expected error on 502")
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("502 calls = %d, want 3", got)
	}

	atomic.StoreInt32(&calls, 0)
	atomic.StoreInt32(&status, http.StatusUnprocessableEntity)
	_, err := m.Score(context.Background(), models.FeatureRow{})
	var se *xhttp.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusUnprocessableEntity || se.Body != "nope" {
		t.Fatalf("expected 422 StatusError, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("422 calls = %d, want 1", got)
	}
}
