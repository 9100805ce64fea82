package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/models"
	domsvc "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/domain/service"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/service/ratelimit"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/services/tabular"
	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/usecase"
	xhttp "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/http"
	applogger "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/logger"
)

const (
	serviceStatus  = "AI Service Ready"
	serviceVersion = "1.0"

	defaultMaxUploadBytes = 20 << 20
	defaultMaxRows        = 100000
)

// LeadsHandler serves the scoring routes.
type LeadsHandler struct {
	scorer         *usecase.LeadScorer
	limiter        *ratelimit.Limiter
	maxUploadBytes int64
	maxRows        int
	l              *applogger.Logger
}

// LeadsHandlerOption configures LeadsHandler.
type LeadsHandlerOption func(*LeadsHandler)

// WithRateLimiter limits the predict routes per client address.
func WithRateLimiter(rl *ratelimit.Limiter) LeadsHandlerOption {
	return func(h *LeadsHandler) { h.limiter = rl }
}

// WithUploadLimits bounds batch uploads by body size and data rows.
func WithUploadLimits(maxBytes int64, maxRows int) LeadsHandlerOption {
	return func(h *LeadsHandler) {
		if maxBytes > 0 {
			h.maxUploadBytes = maxBytes
		}
		if maxRows > 0 {
			h.maxRows = maxRows
		}
	}
}

func WithLogger(l *applogger.Logger) LeadsHandlerOption {
	return func(h *LeadsHandler) {
		if l != nil {
			h.l = l
		}
	}
}

func NewLeadsHandler(scorer *usecase.LeadScorer, opts ...LeadsHandlerOption) *LeadsHandler {
	h := &LeadsHandler{
		scorer:         scorer,
		maxUploadBytes: defaultMaxUploadBytes,
		maxRows:        defaultMaxRows,
		l:              applogger.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *LeadsHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/", h.Root)
	e.GET("/model", h.Model)

	limited := RateLimit(h.limiter, h.l)
	e.POST("/predict", h.Predict, limited)
	e.POST("/predict-batch", h.PredictBatch, limited)
	e.GET("/predict-stream", h.PredictStream, limited)
}

// Root is the readiness check.
func (h *LeadsHandler) Root(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{
		"status":  serviceStatus,
		"version": serviceVersion,
	})
}

func (h *LeadsHandler) Model(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.scorer.Info())
}

// Predict scores one lead from a JSON body.
func (h *LeadsHandler) Predict(c echo.Context) error {
	if !h.scorer.Available() {
		return xhttp.AppErrorResponse(c, modelUnavailable())
	}
	req := &models.LeadRequest{}
	if err := xhttp.ReadAndValidateRequest(c, req); err != nil {
		return xhttp.AppErrorResponse(c, err)
	}

	pred, err := h.scorer.Score(c.Request().Context(), req.ToLead(), models.SourceSingle)
	if err != nil {
		return h.scoringError(c, "predict", err)
	}
	return xhttp.SuccessResponse(c, pred)
}

// PredictBatch scores every row of an uploaded CSV or Excel file.
func (h *LeadsHandler) PredictBatch(c echo.Context) error {
	if !h.scorer.Available() {
		return xhttp.AppErrorResponse(c, modelUnavailable())
	}
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, h.maxUploadBytes)

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return xhttp.AppErrorResponse(c, xhttp.NewAppError(
				"ERR_TOO_LARGE", "file", "uploaded file is too large", http.StatusRequestEntityTooLarge,
			).WithParam("limit_bytes", tooLarge.Limit))
		}
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("file is required").WithError(err))
	}

	format, err := tabular.DetectFormat(fh.Filename)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.UnsupportedFileError(
			"Invalid file format. Please upload CSV or Excel.",
		).WithParam("filename", fh.Filename))
	}

	f, err := fh.Open()
	if err != nil {
		return h.processingError(c, "predict_batch", err)
	}
	defer f.Close()

	table, err := tabular.Read(f, format, h.maxRows)
	if err != nil {
		if errors.Is(err, tabular.ErrTooManyRows) {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
		}
		return h.processingError(c, "predict_batch", err)
	}

	res, err := h.scorer.ScoreTable(req.Context(), table)
	if err != nil {
		return h.scoringError(c, "predict_batch", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *LeadsHandler) scoringError(c echo.Context, op string, err error) error {
	if errors.Is(err, domsvc.ErrModelUnavailable) {
		return xhttp.AppErrorResponse(c, modelUnavailable())
	}
	return h.processingError(c, op, err)
}

func (h *LeadsHandler) processingError(c echo.Context, op string, err error) error {
	h.l.Error(op+" failed", applogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.ProcessingError(err))
}

func modelUnavailable() *xhttp.AppError {
	return xhttp.ServiceUnavailableError("Model not loaded")
}

var _ xhttp.Handler = (*LeadsHandler)(nil)
