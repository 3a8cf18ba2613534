package repository

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/shupiange/mephisto-quant/models"
	"github.com/shupiange/mephisto-quant/observability"
)

// RangeQuery selects rows with Start <= date <= End, optionally restricted
// to a set of codes
type RangeQuery struct {
	Codes []string
	Start string
	End   string
}

// Validate checks the bounds and codes
func (q RangeQuery) Validate() error {
	if err := checkDate("start", q.Start, true); err != nil {
		return err
	}
	if err := checkDate("end", q.End, true); err != nil {
		return err
	}
	if q.Start > q.End {
		return fmt.Errorf("%w: start %s is after end %s", ErrValidation, q.Start, q.End)
	}
	for _, code := range q.Codes {
		if err := checkCode(code); err != nil {
			return err
		}
	}
	return nil
}

// SymbolQuery selects the history of one code, optionally bounded on either side
type SymbolQuery struct {
	Code  string
	Start string
	End   string
}

// Validate checks the code and any bounds that are set
func (q SymbolQuery) Validate() error {
	if err := checkCode(q.Code); err != nil {
		return err
	}
	if err := checkDate("start", q.Start, false); err != nil {
		return err
	}
	if err := checkDate("end", q.End, false); err != nil {
		return err
	}
	if q.Start != "" && q.End != "" && q.Start > q.End {
		return fmt.Errorf("%w: start %s is after end %s", ErrValidation, q.Start, q.End)
	}
	return nil
}

func checkDate(name, value string, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%w: %s date is required", ErrValidation, name)
		}
		return nil
	}
	if utf8.RuneCountInString(value) > models.DateWidth {
		return fmt.Errorf("%w: %s date %q longer than %d characters", ErrValidation, name, value, models.DateWidth)
	}
	if _, err := time.Parse(models.DateLayout, value); err != nil {
		return fmt.Errorf("%w: %s date %q is not YYYY-MM-DD", ErrValidation, name, value)
	}
	return nil
}

func checkCode(code string) error {
	if code == "" {
		return fmt.Errorf("%w: code is required", ErrValidation)
	}
	if utf8.RuneCountInString(code) > models.CodeWidth {
		return fmt.Errorf("%w: code %q longer than %d characters", ErrValidation, code, models.CodeWidth)
	}
	return nil
}

// rangeSQL renders the date-range query for def; intraday bars are further
// ordered by their rank within the day
func rangeSQL(def tableDef, q RangeQuery) (string, []any) {
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE date >= $1 AND date <= $2", def.selectList(), def.table)
	args := []any{q.Start, q.End}
	if len(q.Codes) > 0 {
		sql += " AND code = ANY($3)"
		args = append(args, q.Codes)
	}
	sql += " ORDER BY date, code"
	if def.table == models.TableIntradayQuote {
		sql += ", time_rank, \"time\""
	}
	return sql, args
}

func symbolSQL(def tableDef, q SymbolQuery) (string, []any) {
	where := []string{"code = $1"}
	args := []any{q.Code}
	if q.Start != "" {
		args = append(args, q.Start)
		where = append(where, fmt.Sprintf("date >= $%d", len(args)))
	}
	if q.End != "" {
		args = append(args, q.End)
		where = append(where, fmt.Sprintf("date <= $%d", len(args)))
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY date", def.selectList(), def.table, strings.Join(where, " AND "))
	if def.table == models.TableIntradayQuote {
		sql += ", time_rank, \"time\""
	}
	return sql, args
}

// queryRows returns a lazy sequence over the rows of sql. Nothing is executed
// until the sequence is ranged over; ranging again runs the query again.
func queryRows[T any](r *Repository, ctx context.Context, table models.Table, op string, validate func() error, sql string, args []any, scan func(pgx.Rows) (T, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if err := validate(); err != nil {
			yield(zero, err)
			return
		}

		metrics := observability.GetMetrics()
		timer := metrics.NewTimer()

		rows, err := r.db.Query(ctx, sql, args...)
		if err != nil {
			metrics.RecordDBError(op, string(table))
			yield(zero, fmt.Errorf("failed to query %s: %w", table, Classify(err)))
			return
		}
		defer rows.Close()

		for rows.Next() {
			v, err := scan(rows)
			if err != nil {
				metrics.RecordDBError(op, string(table))
				yield(zero, fmt.Errorf("failed to scan %s row: %w", table, Classify(err)))
				return
			}
			if !yield(v, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			metrics.RecordDBError(op, string(table))
			yield(zero, fmt.Errorf("failed to read %s rows: %w", table, Classify(err)))
			return
		}
		timer.ObserveDB(op, string(table))
	}
}

// Collect drains seq into a slice, stopping at the first error
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// LatestDates returns the most recent stored date per code. With no codes it
// covers every code in the table.
func (r *Repository) LatestDates(ctx context.Context, table models.Table, codes []string) (map[string]string, error) {
	if _, ok := tableDefs[table]; !ok {
		return nil, fmt.Errorf("%w: unknown table %q", ErrValidation, table)
	}
	for _, code := range codes {
		if err := checkCode(code); err != nil {
			return nil, err
		}
	}

	sql := fmt.Sprintf("SELECT code, MAX(date) FROM %s", table)
	var args []any
	if len(codes) > 0 {
		sql += " WHERE code = ANY($1)"
		args = append(args, codes)
	}
	sql += " GROUP BY code"

	timer := observability.GetMetrics().NewTimer()
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		observability.GetMetrics().RecordDBError("latest", string(table))
		return nil, fmt.Errorf("failed to query latest dates of %s: %w", table, Classify(err))
	}
	defer rows.Close()

	latest := make(map[string]string)
	for rows.Next() {
		var code, date string
		if err := rows.Scan(&code, &date); err != nil {
			return nil, fmt.Errorf("failed to scan latest date: %w", Classify(err))
		}
		latest[code] = date
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read latest dates of %s: %w", table, Classify(err))
	}
	timer.ObserveDB("latest", string(table))

	return latest, nil
}
