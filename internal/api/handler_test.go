package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/shupiange/mephisto-quant/config"
	"github.com/shupiange/mephisto-quant/internal/app"
	"github.com/shupiange/mephisto-quant/models"
	"github.com/shupiange/mephisto-quant/repository"
	"github.com/shupiange/mephisto-quant/services"
)

// mockStore serves fixed rows, or fails every call with err
type mockStore struct {
	daily      []models.DailyQuote
	intraday   []models.IntradayQuote
	indicators []models.DailyIndicator
	err        error

	lastRange  repository.RangeQuery
	lastSymbol repository.SymbolQuery
	lastTable  models.Table
}

func seq[T any](m *mockStore, validate func() error, data []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if err := validate(); err != nil {
			yield(zero, err)
			return
		}
		if m.err != nil {
			yield(zero, m.err)
			return
		}
		for _, r := range data {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (m *mockStore) Health(ctx context.Context) error { return m.err }

func (m *mockStore) DailyQuotesByDateRange(ctx context.Context, q repository.RangeQuery) iter.Seq2[models.DailyQuote, error] {
	m.lastRange = q
	return seq(m, q.Validate, m.daily)
}

func (m *mockStore) DailyQuotesBySymbol(ctx context.Context, q repository.SymbolQuery) iter.Seq2[models.DailyQuote, error] {
	m.lastSymbol = q
	return seq(m, q.Validate, m.daily)
}

func (m *mockStore) IntradayQuotesByDateRange(ctx context.Context, q repository.RangeQuery) iter.Seq2[models.IntradayQuote, error] {
	m.lastRange = q
	return seq(m, q.Validate, m.intraday)
}

func (m *mockStore) IntradayQuotesBySymbol(ctx context.Context, q repository.SymbolQuery) iter.Seq2[models.IntradayQuote, error] {
	m.lastSymbol = q
	return seq(m, q.Validate, m.intraday)
}

func (m *mockStore) DailyIndicatorsByDateRange(ctx context.Context, q repository.RangeQuery) iter.Seq2[models.DailyIndicator, error] {
	m.lastRange = q
	return seq(m, q.Validate, m.indicators)
}

func (m *mockStore) DailyIndicatorsBySymbol(ctx context.Context, q repository.SymbolQuery) iter.Seq2[models.DailyIndicator, error] {
	m.lastSymbol = q
	return seq(m, q.Validate, m.indicators)
}

func (m *mockStore) LatestDates(ctx context.Context, table models.Table, codes []string) (map[string]string, error) {
	m.lastTable = table
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]string)
	for _, c := range codes {
		out[c] = "2024-03-01"
	}
	return out, nil
}

// testRouter creates a Chi router with test config for testing
func testRouter(store app.Store) http.Handler {
	cfg := config.NewTestConfig()
	return NewRouter(NewHandler(app.New(cfg, store), cfg), cfg)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func sampleStore() *mockStore {
	return &mockStore{
		daily: []models.DailyQuote{{
			Date:        "2024-03-01",
			Code:        "sh.600519",
			Open:        decimal.RequireFromString("1688.0000"),
			Close:       decimal.RequireFromString("123.4567"),
			High:        decimal.RequireFromString("1710.1234"),
			Low:         decimal.RequireFromString("1680.0100"),
			Volume:      2345678,
			Amount:      decimal.RequireFromString("3993645872.12"),
			TradeStatus: models.TradeStatusActive,
		}},
		intraday: []models.IntradayQuote{
			{Date: "2024-03-01", Code: "sh.600519", Time: 20240301100000000, TimeRank: 1},
			{Date: "2024-03-01", Code: "sh.600519", Time: 20240301103000000, TimeRank: 2},
		},
		indicators: []models.DailyIndicator{{Date: "2024-03-01", Code: "sz.000001"}},
	}
}

func TestHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		store      app.Store
		wantStatus string
		wantDB     string
	}{
		{"connected", &mockStore{}, "ok", "connected"},
		{"disconnected", &mockStore{err: repository.ErrConnectionFailure}, "degraded", "disconnected"},
		{"not configured", nil, "degraded", "not_configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, testRouter(tt.store), "/api/health")
			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d", w.Code)
			}

			var body map[string]any
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("expected status %q, got %v", tt.wantStatus, body["status"])
			}
			if body["database"] != tt.wantDB {
				t.Errorf("expected database %q, got %v", tt.wantDB, body["database"])
			}
		})
	}
}

func TestHandler_DailyQuotes_Range(t *testing.T) {
	store := sampleStore()
	w := get(t, testRouter(store), "/api/daily-quotes?start=2024-03-01&end=2024-03-31&code=sh.600519,%20sz.000001")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(store.lastRange.Codes) != 2 || store.lastRange.Codes[1] != "sz.000001" {
		t.Errorf("expected two trimmed codes, got %v", store.lastRange.Codes)
	}

	var page app.Page[models.DailyQuote]
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if page.Count != 1 {
		t.Fatalf("expected 1 row, got %d", page.Count)
	}
	if page.Rows[0].Close.String() != "123.4567" {
		t.Errorf("expected exact decimal 123.4567, got %s", page.Rows[0].Close)
	}
	if page.Rows[0].Turn.Valid {
		t.Error("expected NULL turn to stay NULL")
	}
}

func TestHandler_DailyQuotes_DecimalsAreStrings(t *testing.T) {
	w := get(t, testRouter(sampleStore()), "/api/daily-quotes/sh.600519")

	if !strings.Contains(w.Body.String(), `"close":"123.4567"`) {
		t.Errorf("expected decimals encoded as strings, got %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"turn":null`) {
		t.Errorf("expected NULL ratio encoded as null, got %s", w.Body.String())
	}
}

func TestHandler_SymbolRoutes(t *testing.T) {
	for _, path := range []string{"/api/daily-quotes/sh.600519", "/api/intraday-quotes/sh.600519", "/api/indicators/sh.600519"} {
		t.Run(path, func(t *testing.T) {
			store := sampleStore()
			w := get(t, testRouter(store), path+"?start=2024-03-01")

			if w.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
			}
			if store.lastSymbol.Code != "sh.600519" || store.lastSymbol.Start != "2024-03-01" {
				t.Errorf("unexpected symbol query: %+v", store.lastSymbol)
			}
		})
	}
}

func TestHandler_IntradayOrderPreserved(t *testing.T) {
	w := get(t, testRouter(sampleStore()), "/api/intraday-quotes?start=2024-03-01&end=2024-03-01")

	var page app.Page[models.IntradayQuote]
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if page.Count != 2 || page.Rows[0].TimeRank != 1 || page.Rows[1].TimeRank != 2 {
		t.Errorf("expected bars in rank order, got %+v", page.Rows)
	}
}

func TestHandler_Limit(t *testing.T) {
	w := get(t, testRouter(sampleStore()), "/api/intraday-quotes/sh.600519?limit=1")

	var page app.Page[models.IntradayQuote]
	if err := json.NewDecoder(w.Body).Decode(&page); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if page.Count != 1 || !page.Truncated {
		t.Errorf("expected 1 truncated row, got %d truncated=%v", page.Count, page.Truncated)
	}

	w = get(t, testRouter(sampleStore()), "/api/intraday-quotes/sh.600519?limit=abc")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", w.Code)
	}
}

func TestHandler_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		want   int
	}{
		{"missing range", "/api/daily-quotes", nil, http.StatusBadRequest},
		{"reversed range", "/api/indicators?start=2024-03-31&end=2024-03-01", nil, http.StatusBadRequest},
		{"code too long", "/api/daily-quotes/sh.6005190000000000", nil, http.StatusBadRequest},
		{"timeout", "/api/daily-quotes/sh.600519", fmt.Errorf("canceling statement: %w", repository.ErrQueryTimeout), http.StatusGatewayTimeout},
		{"connection", "/api/daily-quotes/sh.600519", fmt.Errorf("dial: %w", repository.ErrConnectionFailure), http.StatusServiceUnavailable},
		{"other", "/api/daily-quotes/sh.600519", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := sampleStore()
			store.err = tt.err
			w := get(t, testRouter(store), tt.target)

			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body["error"] == "" {
				t.Errorf("expected JSON error body, got %v", err)
			}
		})
	}
}

func TestHandler_NoDatabase(t *testing.T) {
	w := get(t, testRouter(nil), "/api/daily-quotes/sh.600519")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a database, got %d", w.Code)
	}
}

func TestHandler_LatestDates(t *testing.T) {
	store := sampleStore()
	w := get(t, testRouter(store), "/api/latest/indicators?code=sz.000001")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if store.lastTable != models.TableDailyIndicator {
		t.Errorf("expected table alias to resolve, got %s", store.lastTable)
	}

	var body struct {
		Table  string            `json:"table"`
		Latest map[string]string `json:"latest"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Latest["sz.000001"] != "2024-03-01" {
		t.Errorf("unexpected latest dates: %+v", body)
	}

	w = get(t, testRouter(store), "/api/latest/weekly")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown table, got %d", w.Code)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{repository.ErrValidation, http.StatusBadRequest},
		{repository.ErrQueryTimeout, http.StatusGatewayTimeout},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{repository.ErrConnectionFailure, http.StatusServiceUnavailable},
		{fmt.Errorf("database unavailable: %w", services.ErrBreakerOpen), http.StatusServiceUnavailable},
		{app.ErrNoDatabase, http.StatusServiceUnavailable},
		{repository.ErrConstraintViolation, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := ErrorStatus(tt.err); got != tt.want {
			t.Errorf("ErrorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestHandler_Metrics(t *testing.T) {
	w := get(t, testRouter(&mockStore{}), "/metrics")
	if w.Code != http.StatusOK {
		t.Errorf("expected metrics endpoint to respond 200, got %d", w.Code)
	}
}
