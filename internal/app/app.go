package app

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/shupiange/mephisto-quant/config"
	"github.com/shupiange/mephisto-quant/models"
	"github.com/shupiange/mephisto-quant/repository"
	"github.com/shupiange/mephisto-quant/services"
)

// ErrNoDatabase is returned when the app runs without a store
var ErrNoDatabase = errors.New("database not initialized")

// Store defines the read operations needed by App
type Store interface {
	Health(ctx context.Context) error
	DailyQuotesByDateRange(ctx context.Context, q repository.RangeQuery) iter.Seq2[models.DailyQuote, error]
	DailyQuotesBySymbol(ctx context.Context, q repository.SymbolQuery) iter.Seq2[models.DailyQuote, error]
	IntradayQuotesByDateRange(ctx context.Context, q repository.RangeQuery) iter.Seq2[models.IntradayQuote, error]
	IntradayQuotesBySymbol(ctx context.Context, q repository.SymbolQuery) iter.Seq2[models.IntradayQuote, error]
	DailyIndicatorsByDateRange(ctx context.Context, q repository.RangeQuery) iter.Seq2[models.DailyIndicator, error]
	DailyIndicatorsBySymbol(ctx context.Context, q repository.SymbolQuery) iter.Seq2[models.DailyIndicator, error]
	LatestDates(ctx context.Context, table models.Table, codes []string) (map[string]string, error)
}

var _ Store = (repository.RepositoryInterface)(nil)

// QueryParams selects rows for a read. A non-empty Code makes it a
// single-symbol query with optional bounds; otherwise Start and End are
// required and Codes optionally narrows the symbols.
type QueryParams struct {
	Code  string
	Codes []string
	Start string
	End   string
	Limit int // 0 means the configured maximum
}

// Page is a bounded slice of query results
type Page[T any] struct {
	Rows      []T  `json:"rows"`
	Count     int  `json:"count"`
	Truncated bool `json:"truncated"`
}

// App struct holds application dependencies using interfaces for testability
type App struct {
	cfg      *config.Config
	store    Store
	breakers *services.CircuitBreakerRegistry
}

// New creates a new App. store may be nil, in which case every read fails
// with ErrNoDatabase.
func New(cfg *config.Config, store Store) *App {
	breakerCfg := services.DefaultCircuitBreakerConfig
	breakerCfg.Timeout = time.Duration(cfg.Query.BreakerTimeoutSeconds) * time.Second

	return &App{
		cfg:      cfg,
		store:    store,
		breakers: services.NewCircuitBreakerRegistry(breakerCfg),
	}
}

// Health reports whether the store is reachable
func (a *App) Health(ctx context.Context) error {
	if a.store == nil {
		return ErrNoDatabase
	}
	return a.store.Health(ctx)
}

// BreakerStatus returns the state of the store's circuit breaker
func (a *App) BreakerStatus() map[string]services.CircuitBreakerStatus {
	return a.breakers.Status()
}

// MaxRows returns the largest page a query may return
func (a *App) MaxRows() int {
	return a.cfg.Query.MaxRows
}

// DailyQuotes reads daily quotes
func (a *App) DailyQuotes(ctx context.Context, p QueryParams) (*Page[models.DailyQuote], error) {
	if a.store == nil {
		return nil, ErrNoDatabase
	}
	return query(ctx, a, p, a.store.DailyQuotesByDateRange, a.store.DailyQuotesBySymbol)
}

// IntradayQuotes reads intraday bars
func (a *App) IntradayQuotes(ctx context.Context, p QueryParams) (*Page[models.IntradayQuote], error) {
	if a.store == nil {
		return nil, ErrNoDatabase
	}
	return query(ctx, a, p, a.store.IntradayQuotesByDateRange, a.store.IntradayQuotesBySymbol)
}

// Indicators reads daily indicators
func (a *App) Indicators(ctx context.Context, p QueryParams) (*Page[models.DailyIndicator], error) {
	if a.store == nil {
		return nil, ErrNoDatabase
	}
	return query(ctx, a, p, a.store.DailyIndicatorsByDateRange, a.store.DailyIndicatorsBySymbol)
}

// LatestDates returns the most recent stored date per code in table
func (a *App) LatestDates(ctx context.Context, table models.Table, codes []string) (map[string]string, error) {
	if a.store == nil {
		return nil, ErrNoDatabase
	}
	return services.WithCircuitBreaker(ctx, a.breakers, services.BreakerDatabase, func() (map[string]string, error) {
		return a.store.LatestDates(ctx, table, codes)
	})
}

func (a *App) limit(requested int) (int, error) {
	switch {
	case requested < 0:
		return 0, fmt.Errorf("%w: limit must not be negative", repository.ErrValidation)
	case requested == 0 || requested > a.cfg.Query.MaxRows:
		return a.cfg.Query.MaxRows, nil
	default:
		return requested, nil
	}
}

// query runs a range or symbol query through the database breaker and reads
// at most limit rows, stopping the underlying cursor early.
func query[T any](
	ctx context.Context,
	a *App,
	p QueryParams,
	byRange func(context.Context, repository.RangeQuery) iter.Seq2[T, error],
	bySymbol func(context.Context, repository.SymbolQuery) iter.Seq2[T, error],
) (*Page[T], error) {
	limit, err := a.limit(p.Limit)
	if err != nil {
		return nil, err
	}

	var seq iter.Seq2[T, error]
	if p.Code != "" {
		seq = bySymbol(ctx, repository.SymbolQuery{Code: p.Code, Start: p.Start, End: p.End})
	} else {
		seq = byRange(ctx, repository.RangeQuery{Codes: p.Codes, Start: p.Start, End: p.End})
	}

	return services.WithCircuitBreaker(ctx, a.breakers, services.BreakerDatabase, func() (*Page[T], error) {
		page := &Page[T]{Rows: make([]T, 0)}
		for row, err := range seq {
			if err != nil {
				return nil, err
			}
			if len(page.Rows) == limit {
				page.Truncated = true
				break
			}
			page.Rows = append(page.Rows, row)
		}
		page.Count = len(page.Rows)
		return page, nil
	})
}
