package repository

import (
	"context"
	"iter"

	"github.com/shupiange/mephisto-quant/models"
)

// RepositoryInterface defines all repository operations
type RepositoryInterface interface {
	// Health and lifecycle
	Close()
	Health(ctx context.Context) error
	CreateSchema(ctx context.Context) error

	// Daily quotes
	UpsertDailyQuote(ctx context.Context, q *models.DailyQuote) error
	InsertDailyQuote(ctx context.Context, q *models.DailyQuote) error
	DailyQuotesByDateRange(ctx context.Context, q RangeQuery) iter.Seq2[models.DailyQuote, error]
	DailyQuotesBySymbol(ctx context.Context, q SymbolQuery) iter.Seq2[models.DailyQuote, error]

	// Intraday quotes
	UpsertIntradayQuote(ctx context.Context, q *models.IntradayQuote) error
	InsertIntradayQuote(ctx context.Context, q *models.IntradayQuote) error
	IntradayQuotesByDateRange(ctx context.Context, q RangeQuery) iter.Seq2[models.IntradayQuote, error]
	IntradayQuotesBySymbol(ctx context.Context, q SymbolQuery) iter.Seq2[models.IntradayQuote, error]

	// Daily indicators
	UpsertDailyIndicator(ctx context.Context, ind *models.DailyIndicator) error
	InsertDailyIndicator(ctx context.Context, ind *models.DailyIndicator) error
	DailyIndicatorsByDateRange(ctx context.Context, q RangeQuery) iter.Seq2[models.DailyIndicator, error]
	DailyIndicatorsBySymbol(ctx context.Context, q SymbolQuery) iter.Seq2[models.DailyIndicator, error]

	// Incremental update support
	LatestDates(ctx context.Context, table models.Table, codes []string) (map[string]string, error)
}

// Compile-time interface verification
var _ RepositoryInterface = (*Repository)(nil)
