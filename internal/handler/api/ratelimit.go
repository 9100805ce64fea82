package api

import (
	"github.com/labstack/echo/v4"

	"github.com/AllsHub/predictive-lead-scoring-for-banking-sales/internal/service/ratelimit"
	xhttp "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/http"
	applogger "github.com/AllsHub/predictive-lead-scoring-for-banking-sales/pkg/logger"
)

// RateLimit rejects requests with 429 once the caller's bucket is empty.
// Callers are keyed by echo's RealIP. A nil or disabled limiter passes
// everything through.
func RateLimit(rl *ratelimit.Limiter, l *applogger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if !rl.Enabled() {
			return next
		}
		return func(c echo.Context) error {
			ip := c.RealIP()
			if !rl.Allow(ip) {
				l.Warn("rate limited",
					applogger.String("remote", ip),
					applogger.String("path", c.Path()),
				)
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
			}
			return next(c)
		}
	}
}
