package repository

import (
	"context"
	"iter"

	"github.com/jackc/pgx/v5"

	"github.com/shupiange/mephisto-quant/models"
)

func dailyIndicatorArgs(ind *models.DailyIndicator) []any {
	args := []any{ind.Date, ind.Code}
	for _, v := range ind.Values() {
		args = append(args, v)
	}
	return args
}

func scanDailyIndicator(rows pgx.Rows) (models.DailyIndicator, error) {
	var ind models.DailyIndicator
	dest := []any{&ind.Date, &ind.Code}
	for _, f := range ind.Fields() {
		dest = append(dest, f)
	}
	err := rows.Scan(dest...)
	return ind, err
}

// UpsertDailyIndicator inserts ind or replaces the row with the same (date, code)
func (r *Repository) UpsertDailyIndicator(ctx context.Context, ind *models.DailyIndicator) error {
	return r.write(ctx, dailyIndicatorDef, ind, true, dailyIndicatorArgs(ind))
}

// InsertDailyIndicator inserts ind, rejecting a duplicate (date, code)
func (r *Repository) InsertDailyIndicator(ctx context.Context, ind *models.DailyIndicator) error {
	return r.write(ctx, dailyIndicatorDef, ind, false, dailyIndicatorArgs(ind))
}

// DailyIndicatorsByDateRange returns indicator rows ordered by date then code
func (r *Repository) DailyIndicatorsByDateRange(ctx context.Context, q RangeQuery) iter.Seq2[models.DailyIndicator, error] {
	sql, args := rangeSQL(dailyIndicatorDef, q)
	return queryRows(r, ctx, models.TableDailyIndicator, "select_range", q.Validate, sql, args, scanDailyIndicator)
}

// DailyIndicatorsBySymbol returns one code's indicator rows ordered by date
func (r *Repository) DailyIndicatorsBySymbol(ctx context.Context, q SymbolQuery) iter.Seq2[models.DailyIndicator, error] {
	sql, args := symbolSQL(dailyIndicatorDef, q)
	return queryRows(r, ctx, models.TableDailyIndicator, "select_symbol", q.Validate, sql, args, scanDailyIndicator)
}
