package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rsi-backtest/internal/backtest"
	"rsi-backtest/internal/logger"
	"rsi-backtest/internal/marketdata"
	"rsi-backtest/internal/metrics"
	"rsi-backtest/internal/report"
)

type handlers struct {
	runner *backtest.Runner
	health *metrics.HealthStatus
	log    *slog.Logger
}

// ErrorResponse is the JSON body of a failed API call.
type ErrorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// StatusFor maps a pipeline error to an HTTP status code.
func StatusFor(err error) int {
	var verr *backtest.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, marketdata.ErrSymbolNotFound), errors.Is(err, backtest.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, backtest.ErrInsufficientHistory):
		return http.StatusUnprocessableEntity
	case errors.Is(err, backtest.ErrFetchTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, backtest.ErrFetchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (h *handlers) chartTitle(p backtest.Params) string {
	return "Cumulative Returns: " + p.Symbol
}

// ---- HTML ----

func (h *handlers) showForm(c *gin.Context) {
	c.HTML(http.StatusOK, report.IndexTemplate, report.DefaultForm(h.runner.Window(), h.runner.MaxYears()))
}

func (h *handlers) submitForm(c *gin.Context) {
	form, err := bindForm(c.ShouldBind, formBodyReason)

	view := report.DefaultForm(h.runner.Window(), h.runner.MaxYears())
	view.Symbol, view.BuyLevel, view.SellLevel, view.Years = form.Symbol, form.BuyLevel, form.SellLevel, form.Years

	var params backtest.Params
	if err == nil {
		params, err = form.Params()
	}
	if err == nil {
		var res *backtest.Result
		res, err = h.runner.Run(c.Request.Context(), params)
		if err == nil {
			png, cerr := report.ChartPNG(h.chartTitle(res.Params), res.Dates(), res.Curve())
			if cerr != nil {
				h.log.Warn("[webapp] chart failed", append(logger.LogWithRequest(c.Request.Context()), "error", cerr)...)
			}
			c.HTML(http.StatusOK, report.ResultTemplate, report.NewResultView(res, png))
			return
		}
	}

	view.Error = backtest.UserMessage(err)
	c.HTML(StatusFor(err), report.IndexTemplate, view)
}

// ---- JSON API ----

func (h *handlers) healthCheck(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	c.JSON(http.StatusOK, h.health.Report())
}

func (h *handlers) runBacktest(c *gin.Context) {
	params, err := bindParams(c)
	if err == nil {
		var res *backtest.Result
		res, err = h.runner.Run(c.Request.Context(), params)
		if err == nil {
			c.JSON(http.StatusOK, res)
			return
		}
	}
	h.fail(c, err)
}

func (h *handlers) chart(c *gin.Context) {
	form, err := bindForm(c.ShouldBindQuery, "query must carry symbol, buy_level, sell_level and years")
	if err != nil {
		h.fail(c, err)
		return
	}
	params, err := form.Params()
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.runner.Run(c.Request.Context(), params)
	if err != nil {
		h.fail(c, err)
		return
	}
	png, err := report.ChartPNG(h.chartTitle(res.Params), res.Dates(), res.Curve())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

// bindParams accepts a JSON body with numeric fields or a urlencoded form.
func bindParams(c *gin.Context) (backtest.Params, error) {
	if strings.HasPrefix(c.ContentType(), gin.MIMEJSON) {
		var p backtest.Params
		if err := c.ShouldBindJSON(&p); err != nil {
			return p, &backtest.ValidationError{Field: "body", Reason: "must be a JSON object with symbol, buy_level, sell_level and years"}
		}
		return p, nil
	}
	form, err := bindForm(c.ShouldBind, formBodyReason)
	if err != nil {
		return backtest.Params{}, err
	}
	return form.Params()
}

const formBodyReason = "must be a form with symbol, buy_level, sell_level and years"

// bindForm reports a request that cannot be decoded as a body error.
// Missing fields are not bind errors; form.Params reports them per field.
func bindForm(bind func(any) error, reason string) (backtest.Form, error) {
	var form backtest.Form
	if err := bind(&form); err != nil {
		return form, &backtest.ValidationError{Field: "body", Reason: reason}
	}
	return form, nil
}

func (h *handlers) fail(c *gin.Context, err error) {
	resp := ErrorResponse{
		Error:     backtest.UserMessage(err),
		RequestID: logger.RequestID(c.Request.Context()),
	}
	var verr *backtest.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	c.JSON(StatusFor(err), resp)
}
