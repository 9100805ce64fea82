package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/service/ratelimit"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/usecase"
	xhttp "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/http"
)

type constScorer float64

func (constScorer) Name() string    { return "const" }
func (constScorer) Version() string { return "test" }
func (s constScorer) Score(context.Context, models.FeatureRow) (float64, error) {
	return float64(s), nil
}

const leadJSON = `{"age":35,"job":"admin.","marital":"married","education":"university.degree",
"default":"no","housing":"yes","loan":"no","contact":"cellular","month":"may","day_of_week":"mon",
"campaign":2,"pdays":999,"previous":0,"poutcome":"nonexistent","emp_var_rate":-1.8,
"cons_price_idx":92.893,"cons_conf_idx":-46.2,"euribor3m":1.299,"nr_employed":5099.1}`

const leadsCSV = `age;job;marital;education;default;housing;loan;contact;month;day_of_week;campaign;pdays;previous;poutcome;emp.var.rate;cons.price.idx;cons.conf.idx;euribor3m;nr.employed;y
56;housemaid;married;basic.4y;no;no;no;telephone;may;mon;1;999;0;nonexistent;1.1;93.994;-36.4;4.857;5191;no
x;services;married;high.school;unknown;no;no;telephone;may;mon;1;999;0;nonexistent;1.1;93.994;-36.4;4.857;5191;no
`

func newTestEcho(scorer *usecase.LeadScorer, opts ...LeadsHandlerOption) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = xhttp.ErrorHandler
	NewLeadsHandler(scorer, opts...).RegisterRoutes(e)
	return e
}

func available(p float64) *usecase.LeadScorer {
	return usecase.NewLeadScorer(constScorer(p))
}

func do(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = fw.Write([]byte(content))
	} else {
		_ = mw.WriteField("other", "value")
	}
	_ = mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/predict-batch", &buf)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestRoot(t *testing.T) {
	rec := do(newTestEcho(usecase.NewLeadScorer(nil)), httptest.NewRequest(http.MethodGet, "/", nil))
	body := decode(t, rec)
	if rec.Code != http.StatusOK || body["status"] != "AI Service Ready" || body["version"] != "1.0" {
		t.Fatalf("root = %d %v", rec.Code, body)
	}
}

func TestModelInfo(t *testing.T) {
	rec := do(newTestEcho(available(0.5)), httptest.NewRequest(http.MethodGet, "/model", nil))
	body := decode(t, rec)
	if body["available"] != true || body["name"] != "const" {
		t.Fatalf("model info = %v", body)
	}
}

func TestPredictUnavailableBeforeValidation(t *testing.T) {
	e := newTestEcho(usecase.NewLeadScorer(nil))
	rec := do(e, jsonRequest("/predict", `{"age":"not a number"}`))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if body := decode(t, rec); body["detail"] != "Model not loaded" {
		t.Fatalf("body = %v", body)
	}
}

func TestPredict(t *testing.T) {
	rec := do(newTestEcho(available(0.1)), jsonRequest("/predict", leadJSON))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var pred models.Prediction
	if err := json.Unmarshal(rec.Body.Bytes(), &pred); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pred.Tier != models.Tier2 || pred.LabelCode != models.LabelMedium || pred.Prediction != 1 || pred.Score != 0.1 {
		t.Fatalf("prediction = %+v", pred)
	}
	if pred.Description != "Probability: 10.00%" {
		t.Fatalf("description = %q", pred.Description)
	}
}

func TestPredictValidation(t *testing.T) {
	e := newTestEcho(available(0.1))

	missing := strings.Replace(leadJSON, `"age":35,`, "", 1)
	rec := do(e, jsonRequest("/predict", missing))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing field status = %d", rec.Code)
	}
	body := decode(t, rec)
	errs, ok := body["errors"].([]interface{})
	if !ok || len(errs) != 1 {
		t.Fatalf("expected one field error, got %v", body)
	}
	if field := errs[0].(map[string]interface{})["field"]; field != "age" {
		t.Fatalf("field = %v", field)
	}

	mistyped := strings.Replace(leadJSON, `"age":35`, `"age":"thirty"`, 1)
	if rec := do(e, jsonRequest("/predict", mistyped)); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("mistyped field status = %d", rec.Code)
	}
	if rec := do(e, jsonRequest("/predict", `{`)); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("malformed body status = %d", rec.Code)
	}
	fractional := strings.Replace(leadJSON, `"age":35`, `"age":35.5`, 1)
	if rec := do(e, jsonRequest("/predict", fractional)); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("fractional integer status = %d", rec.Code)
	}
	null := strings.Replace(leadJSON, `"age":35`, `"age":null`, 1)
	if rec := do(e, jsonRequest("/predict", null)); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("null age status = %d", rec.Code)
	}
}

func TestPredictAcceptsIntegralFloats(t *testing.T) {
	body := strings.NewReplacer(`"age":35`, `"age":35.0`, `"campaign":2`, `"campaign":2e0`, `"pdays":999`, `"pdays":999.0`).Replace(leadJSON)
	rec := do(newTestEcho(available(0.5)), jsonRequest("/predict", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
}

func TestPredictBatch(t *testing.T) {
	rec := do(newTestEcho(available(0.3)), uploadRequest(t, "Leads.CSV", leadsCSV))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var res struct {
		Results []struct {
			RowIndex int     `json:"row_index"`
			Tier     string  `json:"tier"`
			Score    float64 `json:"score"`
			Error    string  `json:"error"`
		} `json:"results"`
		TotalProcessed int `json:"total_processed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.TotalProcessed != 2 || len(res.Results) != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Results[0].RowIndex != 0 || res.Results[0].Tier != "TIER_1" || res.Results[0].Error != "" {
		t.Fatalf("row 0 = %+v", res.Results[0])
	}
	if res.Results[1].RowIndex != 1 || res.Results[1].Error == "" || res.Results[1].Tier != "" {
		t.Fatalf("row 1 = %+v", res.Results[1])
	}
}

func TestPredictBatchErrors(t *testing.T) {
	if rec := do(newTestEcho(usecase.NewLeadScorer(nil)), uploadRequest(t, "x.txt", "a")); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unavailable status = %d", rec.Code)
	}

	e := newTestEcho(available(0.3), WithUploadLimits(2048, 1))
	if rec := do(e, uploadRequest(t, "", "")); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing file status = %d", rec.Code)
	}

	rec := do(e, uploadRequest(t, "leads.txt", leadsCSV))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad extension status = %d", rec.Code)
	}
	body := decode(t, rec)
	if code := body["errors"].([]interface{})[0].(map[string]interface{})["code"]; code != "ERR_UNSUPPORTED_FILE" {
		t.Fatalf("code = %v", code)
	}

	if rec := do(e, uploadRequest(t, "leads.csv", leadsCSV)); rec.Code != http.StatusBadRequest {
		t.Fatalf("row limit status = %d", rec.Code)
	}
	if rec := do(e, uploadRequest(t, "leads.xlsx", "not a workbook")); rec.Code != http.StatusInternalServerError {
		t.Fatalf("corrupt workbook status = %d", rec.Code)
	}
	if rec := do(e, uploadRequest(t, "leads.csv", strings.Repeat("a", 4096))); rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversize status = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	e := newTestEcho(available(0.3), WithRateLimiter(ratelimit.New(1, 0.001)))
	if rec := do(e, jsonRequest("/predict", leadJSON)); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	rec := do(e, jsonRequest("/predict", leadJSON))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	// the readiness route is never limited
	if rec := do(e, httptest.NewRequest(http.MethodGet, "/", nil)); rec.Code != http.StatusOK {
		t.Fatalf("root status = %d", rec.Code)
	}
}

func TestPredictStream(t *testing.T) {
	srv := httptest.NewServer(newTestEcho(available(0.01)))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/predict-stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	exchange := func(msg string) map[string]interface{} {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("write: %v", err)
		}
		var reply map[string]interface{}
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatalf("read: %v", err)
		}
		return reply
	}

	if reply := exchange(`{`); reply["error"] == nil {
		t.Fatalf("malformed message must get an error reply: %v", reply)
	}
	if reply := exchange(`{"age":35}`); reply["error"] == nil {
		t.Fatalf("incomplete lead must get an error reply: %v", reply)
	}
	reply := exchange(leadJSON)
	if reply["tier"] != "TIER_3" || reply["label_code"] != "STANDARD_PRIORITY" {
		t.Fatalf("reply = %v", reply)
	}
}
