package repository

import (
	"context"
	"iter"

	"github.com/jackc/pgx/v5"

	"github.com/shupiange/mephisto-quant/models"
)

func dailyQuoteArgs(q *models.DailyQuote) []any {
	return []any{
		q.Date, q.Code,
		q.Open, q.Close, q.High, q.Low,
		q.Volume, q.Amount,
		q.Turn, q.PctChg, q.PeTTM, q.Pb, q.PsTTM, q.PcfTTM,
		int16(q.TradeStatus),
	}
}

func scanDailyQuote(rows pgx.Rows) (models.DailyQuote, error) {
	var q models.DailyQuote
	var status int16
	err := rows.Scan(
		&q.Date, &q.Code,
		&q.Open, &q.Close, &q.High, &q.Low,
		&q.Volume, &q.Amount,
		&q.Turn, &q.PctChg, &q.PeTTM, &q.Pb, &q.PsTTM, &q.PcfTTM,
		&status,
	)
	q.TradeStatus = models.TradeStatus(status)
	return q, err
}

// UpsertDailyQuote inserts q or replaces the row with the same (date, code)
func (r *Repository) UpsertDailyQuote(ctx context.Context, q *models.DailyQuote) error {
	return r.write(ctx, dailyQuoteDef, q, true, dailyQuoteArgs(q))
}

// InsertDailyQuote inserts q, rejecting a duplicate (date, code)
func (r *Repository) InsertDailyQuote(ctx context.Context, q *models.DailyQuote) error {
	return r.write(ctx, dailyQuoteDef, q, false, dailyQuoteArgs(q))
}

// DailyQuotesByDateRange returns daily quotes ordered by date then code
func (r *Repository) DailyQuotesByDateRange(ctx context.Context, q RangeQuery) iter.Seq2[models.DailyQuote, error] {
	sql, args := rangeSQL(dailyQuoteDef, q)
	return queryRows(r, ctx, models.TableDailyQuote, "select_range", q.Validate, sql, args, scanDailyQuote)
}

// DailyQuotesBySymbol returns one code's daily quotes ordered by date
func (r *Repository) DailyQuotesBySymbol(ctx context.Context, q SymbolQuery) iter.Seq2[models.DailyQuote, error] {
	sql, args := symbolSQL(dailyQuoteDef, q)
	return queryRows(r, ctx, models.TableDailyQuote, "select_symbol", q.Validate, sql, args, scanDailyQuote)
}
