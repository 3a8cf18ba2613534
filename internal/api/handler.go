package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shupiange/mephisto-quant/config"
	"github.com/shupiange/mephisto-quant/internal/app"
	"github.com/shupiange/mephisto-quant/models"
	"github.com/shupiange/mephisto-quant/observability"
	"github.com/shupiange/mephisto-quant/repository"
	"github.com/shupiange/mephisto-quant/services"
)

// Handler handles HTTP API requests
type Handler struct {
	app *app.App
	cfg *config.Config
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{app: application, cfg: cfg}
}

// HandleHealth returns the health status of the store and its breaker
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "ok",
	}

	err := h.app.Health(r.Context())
	switch {
	case err == nil:
		status["database"] = "connected"
	case errors.Is(err, app.ErrNoDatabase):
		status["database"] = "not_configured"
		status["status"] = "degraded"
	default:
		status["database"] = "disconnected"
		status["status"] = "degraded"
	}

	cbStatus := h.app.BreakerStatus()
	status["circuit_breakers"] = cbStatus
	for _, cb := range cbStatus {
		if cb.State == "open" {
			status["status"] = "degraded"
			break
		}
	}

	h.jsonResponse(w, status)
}

// HandleDailyQuotes serves /api/daily-quotes and /api/daily-quotes/{code}
func (h *Handler) HandleDailyQuotes(w http.ResponseWriter, r *http.Request) {
	serveQuery(h, w, r, h.app.DailyQuotes)
}

// HandleIntradayQuotes serves /api/intraday-quotes and /api/intraday-quotes/{code}
func (h *Handler) HandleIntradayQuotes(w http.ResponseWriter, r *http.Request) {
	serveQuery(h, w, r, h.app.IntradayQuotes)
}

// HandleIndicators serves /api/indicators and /api/indicators/{code}
func (h *Handler) HandleIndicators(w http.ResponseWriter, r *http.Request) {
	serveQuery(h, w, r, h.app.Indicators)
}

// HandleLatestDates returns the latest stored date per code for a table
func (h *Handler) HandleLatestDates(w http.ResponseWriter, r *http.Request) {
	table, err := models.ParseTable(chi.URLParam(r, "table"))
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	latest, err := h.app.LatestDates(r.Context(), table, splitCodes(r.URL.Query().Get("code")))
	if err != nil {
		h.queryError(w, r, err)
		return
	}

	h.jsonResponse(w, map[string]any{
		"table":  table,
		"latest": latest,
	})
}

func serveQuery[T any](h *Handler, w http.ResponseWriter, r *http.Request, fetch func(context.Context, app.QueryParams) (*app.Page[T], error)) {
	params, err := h.ParseQueryParams(r)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	page, err := fetch(r.Context(), params)
	if err != nil {
		h.queryError(w, r, err)
		return
	}

	h.jsonResponse(w, page)
}

// ParseQueryParams reads start, end, code and limit from the request. The
// {code} path segment selects a single-symbol query.
func (h *Handler) ParseQueryParams(r *http.Request) (app.QueryParams, error) {
	q := r.URL.Query()
	params := app.QueryParams{
		Code:  chi.URLParam(r, "code"),
		Start: q.Get("start"),
		End:   q.Get("end"),
	}
	if params.Code == "" {
		params.Codes = splitCodes(q.Get("code"))
	}

	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			return params, errors.New("limit must be a non-negative integer")
		}
		params.Limit = limit
	}
	return params, nil
}

func splitCodes(s string) []string {
	var codes []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	return codes
}

// ErrorStatus maps a query error onto an HTTP status code
func ErrorStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrQueryTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, repository.ErrConnectionFailure),
		errors.Is(err, services.ErrBreakerOpen),
		errors.Is(err, app.ErrNoDatabase):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) queryError(w http.ResponseWriter, r *http.Request, err error) {
	status := ErrorStatus(err)
	if status >= http.StatusInternalServerError {
		observability.WithError(err).Error("query failed", "path", r.URL.Path, "status", status)
	}
	h.jsonError(w, err.Error(), status)
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
