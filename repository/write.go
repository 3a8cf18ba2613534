package repository

import (
	"context"

	"github.com/shupiange/mephisto-quant/observability"
)

// record is the write-side view of a row
type record interface {
	Key() string
	Validate() error
}

// write validates rec and executes a single-statement insert or upsert.
// Every refusal comes back as a RejectedWriteError; nothing is retried.
func (r *Repository) write(ctx context.Context, def tableDef, rec record, upsert bool, args []any) error {
	op := "insert"
	if upsert {
		op = "upsert"
	}
	table := string(def.table)
	metrics := observability.GetMetrics()

	if err := rec.Validate(); err != nil {
		metrics.RecordRejectedWrite(table, KindLabel(ErrValidation))
		return &RejectedWriteError{Table: def.table, Key: rec.Key(), Kind: ErrValidation, Err: err}
	}

	timer := metrics.NewTimer()
	if _, err := r.db.Exec(ctx, def.insertSQL(upsert), args...); err != nil {
		metrics.RecordDBError(op, table)
		rejected := reject(def.table, rec.Key(), err)
		metrics.RecordRejectedWrite(table, KindLabel(rejected))
		observability.WithTable(table).Debug("write rejected", "key", rec.Key(), "error", rejected)
		return rejected
	}
	timer.ObserveDB(op, table)
	return nil
}
