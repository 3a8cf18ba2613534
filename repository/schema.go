package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shupiange/mephisto-quant/models"
	"github.com/shupiange/mephisto-quant/observability"
)

// column is the declared definition of one table column
type column struct {
	name      string
	ddl       string // type clause used in CREATE TABLE
	dataType  string // information_schema.columns.data_type
	length    int32  // character_maximum_length, char types only
	precision int32  // numeric_precision, numeric types only
	scale     int32
}

func (c column) describe() string {
	switch {
	case c.length > 0:
		return fmt.Sprintf("%s(%d)", c.dataType, c.length)
	case c.dataType == "numeric":
		return fmt.Sprintf("numeric(%d,%d)", c.precision, c.scale)
	default:
		return c.dataType
	}
}

func identityCol() column {
	return column{name: "id", ddl: "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY", dataType: "bigint"}
}

func dateCol() column {
	return column{name: "date", ddl: fmt.Sprintf("CHAR(%d) NOT NULL", models.DateWidth), dataType: "character", length: models.DateWidth}
}

func codeCol() column {
	return column{name: "code", ddl: fmt.Sprintf("VARCHAR(%d) NOT NULL", models.CodeWidth), dataType: "character varying", length: models.CodeWidth}
}

func numericCol(name string, p models.Precision, notNull bool) column {
	ddl := fmt.Sprintf("NUMERIC(%d,%d)", p.Digits, p.Scale)
	if notNull {
		ddl += " NOT NULL"
	}
	return column{name: name, ddl: ddl, dataType: "numeric", precision: p.Digits, scale: p.Scale}
}

func intCol(name, dataType string, notNull bool) column {
	ddl := strings.ToUpper(dataType)
	if notNull {
		ddl += " NOT NULL"
	}
	return column{name: name, ddl: ddl, dataType: dataType}
}

// tableDef declares a table, its natural key and its lookup indexes
type tableDef struct {
	table   models.Table
	columns []column
	key     []string
}

var dailyQuoteDef = tableDef{
	table: models.TableDailyQuote,
	columns: []column{
		identityCol(),
		dateCol(),
		codeCol(),
		numericCol("open", models.DailyPrice, true),
		numericCol("close", models.DailyPrice, true),
		numericCol("high", models.DailyPrice, true),
		numericCol("low", models.DailyPrice, true),
		intCol("volume", "bigint", true),
		numericCol("amount", models.DailyAmount, true),
		numericCol("turn", models.DailyRate, false),
		numericCol("pct_chg", models.DailyRate, false),
		numericCol("pe_ttm", models.DailyPrice, false),
		numericCol("pb", models.DailyPrice, false),
		numericCol("ps_ttm", models.DailyPrice, false),
		numericCol("pcf_ttm", models.DailyPrice, false),
		intCol("trade_status", "smallint", true),
	},
	key: []string{"date", "code"},
}

var intradayQuoteDef = tableDef{
	table: models.TableIntradayQuote,
	columns: []column{
		identityCol(),
		dateCol(),
		codeCol(),
		numericCol("open", models.IntradayPrice, true),
		numericCol("close", models.IntradayPrice, true),
		numericCol("high", models.IntradayPrice, true),
		numericCol("low", models.IntradayPrice, true),
		intCol("volume", "bigint", true),
		numericCol("amount", models.IntradayPrice, true),
		intCol("time", "bigint", true),
		intCol("time_rank", "integer", true),
	},
	key: []string{"date", "code", "time"},
}

var dailyIndicatorDef = func() tableDef {
	cols := []column{identityCol(), dateCol(), codeCol()}
	for _, name := range models.IndicatorColumns {
		cols = append(cols, numericCol(name, models.IndicatorValue, false))
	}
	return tableDef{table: models.TableDailyIndicator, columns: cols, key: []string{"date", "code"}}
}()

var tableDefs = map[models.Table]tableDef{
	models.TableDailyQuote:     dailyQuoteDef,
	models.TableIntradayQuote:  intradayQuoteDef,
	models.TableDailyIndicator: dailyIndicatorDef,
}

// ident quotes the column names Postgres treats as keywords
func ident(name string) string {
	if name == "time" {
		return `"time"`
	}
	return name
}

func identList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = ident(n)
	}
	return strings.Join(quoted, ", ")
}

// createTableSQL renders the idempotent CREATE TABLE statement
func (d tableDef) createTableSQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", d.table)
	for i, c := range d.columns {
		fmt.Fprintf(&b, "\t%s %s", ident(c.name), c.ddl)
		if i < len(d.columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

func (d tableDef) uniqueIndexName() string {
	return fmt.Sprintf("uq_%s_%s", d.table, strings.Join(d.key, "_"))
}

// indexSQL renders the natural-key unique index and the date and code lookup indexes
func (d tableDef) indexSQL() []string {
	return []string{
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)", d.uniqueIndexName(), d.table, identList(d.key)),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_date ON %s (date)", d.table, d.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_code ON %s (code)", d.table, d.table),
	}
}

// valueColumns returns the writable columns (everything except id)
func (d tableDef) valueColumns() []string {
	names := make([]string, 0, len(d.columns)-1)
	for _, c := range d.columns {
		if c.name != "id" {
			names = append(names, c.name)
		}
	}
	return names
}

// selectList returns the writable columns as a SELECT list
func (d tableDef) selectList() string {
	return identList(d.valueColumns())
}

// insertSQL renders a strict INSERT, or an upsert on the natural key when upsert is set
func (d tableDef) insertSQL(upsert bool) string {
	cols := d.valueColumns()
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", d.table, identList(cols), strings.Join(placeholders, ", "))
	if !upsert {
		return stmt
	}

	var sets []string
	for _, c := range cols {
		if slices.Contains(d.key, c) {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", ident(c), ident(c)))
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s", stmt, identList(d.key), strings.Join(sets, ", "))
}

// CreateSchema provisions the three tables with their indexes. It is safe to
// run repeatedly; a pre-existing table whose columns differ from the declared
// definition fails with a SchemaConflictError.
func (r *Repository) CreateSchema(ctx context.Context) error {
	for _, table := range models.Tables {
		if err := r.createTable(ctx, tableDefs[table]); err != nil {
			return err
		}
		observability.WithTable(string(table)).Info("schema ready")
	}
	return nil
}

func (r *Repository) createTable(ctx context.Context, def tableDef) error {
	if _, err := r.db.Exec(ctx, def.createTableSQL()); err != nil {
		return fmt.Errorf("failed to create table %s: %w", def.table, Classify(err))
	}

	if err := r.verifyColumns(ctx, def); err != nil {
		return err
	}

	for _, stmt := range def.indexSQL() {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return &SchemaConflictError{
					Table:  def.table,
					Column: strings.Join(def.key, ", "),
					Want:   "unique natural key",
					Got:    "duplicate rows",
				}
			}
			return fmt.Errorf("failed to create index on %s: %w", def.table, Classify(err))
		}
	}

	return r.verifyUniqueKey(ctx, def)
}

// liveColumn is a row of information_schema.columns
type liveColumn struct {
	dataType  string
	length    *int32
	precision *int32
	scale     *int32
}

func (c liveColumn) describe() string {
	switch {
	case c.length != nil:
		return fmt.Sprintf("%s(%d)", c.dataType, *c.length)
	case c.dataType == "numeric" && c.precision != nil && c.scale != nil:
		return fmt.Sprintf("numeric(%d,%d)", *c.precision, *c.scale)
	default:
		return c.dataType
	}
}

func (c liveColumn) matches(want column) bool {
	if c.dataType != want.dataType {
		return false
	}
	switch {
	case want.length > 0:
		return c.length != nil && *c.length == want.length
	case want.dataType == "numeric":
		return c.precision != nil && c.scale != nil && *c.precision == want.precision && *c.scale == want.scale
	default:
		return true
	}
}

func (r *Repository) verifyColumns(ctx context.Context, def tableDef) error {
	rows, err := r.db.Query(ctx, `
		SELECT column_name, data_type, character_maximum_length, numeric_precision, numeric_scale
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
	`, string(def.table))
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", def.table, Classify(err))
	}
	defer rows.Close()

	live := make(map[string]liveColumn)
	for rows.Next() {
		var name string
		var c liveColumn
		if err := rows.Scan(&name, &c.dataType, &c.length, &c.precision, &c.scale); err != nil {
			return fmt.Errorf("failed to scan column of %s: %w", def.table, Classify(err))
		}
		live[name] = c
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to inspect %s: %w", def.table, Classify(err))
	}

	for _, want := range def.columns {
		got, ok := live[want.name]
		if !ok {
			return &SchemaConflictError{Table: def.table, Column: want.name, Want: want.describe()}
		}
		if !got.matches(want) {
			return &SchemaConflictError{Table: def.table, Column: want.name, Want: want.describe(), Got: got.describe()}
		}
	}
	return nil
}

// verifyUniqueKey checks that some unique index covers exactly the natural key,
// which ON CONFLICT needs for inference
func (r *Repository) verifyUniqueKey(ctx context.Context, def tableDef) error {
	rows, err := r.db.Query(ctx, `
		SELECT array_agg(a.attname::text ORDER BY k.n)
		FROM pg_index i
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_namespace ns ON ns.oid = c.relnamespace
		CROSS JOIN LATERAL unnest(i.indkey::int2[]) WITH ORDINALITY AS k(attnum, n)
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = k.attnum
		WHERE c.relname = $1 AND ns.nspname = current_schema() AND i.indisunique
		GROUP BY i.indexrelid
	`, string(def.table))
	if err != nil {
		return fmt.Errorf("failed to inspect indexes of %s: %w", def.table, Classify(err))
	}
	defer rows.Close()

	for rows.Next() {
		var cols []string
		if err := rows.Scan(&cols); err != nil {
			return fmt.Errorf("failed to scan index of %s: %w", def.table, Classify(err))
		}
		if slices.Equal(cols, def.key) {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to inspect indexes of %s: %w", def.table, Classify(err))
	}

	return &SchemaConflictError{
		Table:  def.table,
		Column: strings.Join(def.key, ", "),
		Want:   "unique index " + def.uniqueIndexName(),
		Got:    "different index definition",
	}
}
