package repository

import (
	"context"
	"iter"

	"github.com/jackc/pgx/v5"

	"github.com/shupiange/mephisto-quant/models"
)

func intradayQuoteArgs(q *models.IntradayQuote) []any {
	return []any{
		q.Date, q.Code,
		q.Open, q.Close, q.High, q.Low,
		q.Volume, q.Amount,
		q.Time, q.TimeRank,
	}
}

func scanIntradayQuote(rows pgx.Rows) (models.IntradayQuote, error) {
	var q models.IntradayQuote
	err := rows.Scan(
		&q.Date, &q.Code,
		&q.Open, &q.Close, &q.High, &q.Low,
		&q.Volume, &q.Amount,
		&q.Time, &q.TimeRank,
	)
	return q, err
}

// UpsertIntradayQuote inserts q or replaces the bar with the same (date, code, time)
func (r *Repository) UpsertIntradayQuote(ctx context.Context, q *models.IntradayQuote) error {
	return r.write(ctx, intradayQuoteDef, q, true, intradayQuoteArgs(q))
}

// InsertIntradayQuote inserts q, rejecting a duplicate (date, code, time)
func (r *Repository) InsertIntradayQuote(ctx context.Context, q *models.IntradayQuote) error {
	return r.write(ctx, intradayQuoteDef, q, false, intradayQuoteArgs(q))
}

// IntradayQuotesByDateRange returns bars ordered by date, code and rank within the day
func (r *Repository) IntradayQuotesByDateRange(ctx context.Context, q RangeQuery) iter.Seq2[models.IntradayQuote, error] {
	sql, args := rangeSQL(intradayQuoteDef, q)
	return queryRows(r, ctx, models.TableIntradayQuote, "select_range", q.Validate, sql, args, scanIntradayQuote)
}

// IntradayQuotesBySymbol returns one code's bars ordered by date then rank
func (r *Repository) IntradayQuotesBySymbol(ctx context.Context, q SymbolQuery) iter.Seq2[models.IntradayQuote, error] {
	sql, args := symbolSQL(intradayQuoteDef, q)
	return queryRows(r, ctx, models.TableIntradayQuote, "select_symbol", q.Validate, sql, args, scanIntradayQuote)
}
