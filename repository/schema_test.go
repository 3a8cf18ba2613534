package repository

import (
	"strings"
	"testing"

	"github.com/shupiange/mephisto-quant/models"
)

func TestTableDefs_CoverEveryTable(t *testing.T) {
	for _, table := range models.Tables {
		def, ok := tableDefs[table]
		if !ok {
			t.Fatalf("no definition for %s", table)
		}
		if def.table != table {
			t.Errorf("definition for %s names %s", table, def.table)
		}
		if def.columns[0].name != "id" {
			t.Errorf("%s: first column should be id, got %s", table, def.columns[0].name)
		}
	}
}

func TestCreateTableSQL_Idempotent(t *testing.T) {
	for _, table := range models.Tables {
		sql := tableDefs[table].createTableSQL()
		if !strings.HasPrefix(sql, "CREATE TABLE IF NOT EXISTS "+string(table)) {
			t.Errorf("%s: expected idempotent CREATE TABLE, got %s", table, sql)
		}
		for _, stmt := range tableDefs[table].indexSQL() {
			if !strings.Contains(stmt, "IF NOT EXISTS") {
				t.Errorf("%s: expected idempotent index statement, got %s", table, stmt)
			}
		}
	}
}

func TestCreateTableSQL_ColumnTypes(t *testing.T) {
	tests := []struct {
		table models.Table
		want  []string
	}{
		{models.TableDailyQuote, []string{
			"date CHAR(10) NOT NULL",
			"code VARCHAR(15) NOT NULL",
			"open NUMERIC(16,4) NOT NULL",
			"amount NUMERIC(20,4) NOT NULL",
			"turn NUMERIC(10,4)",
			"pct_chg NUMERIC(10,4)",
			"pcf_ttm NUMERIC(16,4)",
			"trade_status SMALLINT NOT NULL",
		}},
		{models.TableIntradayQuote, []string{
			"low NUMERIC(20,2) NOT NULL",
			"amount NUMERIC(20,2) NOT NULL",
			`"time" BIGINT NOT NULL`,
			"time_rank INTEGER NOT NULL",
		}},
		{models.TableDailyIndicator, []string{
			"diff NUMERIC(20,6)",
			"ma90 NUMERIC(20,6)",
			"boll_lower NUMERIC(20,6)",
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.table), func(t *testing.T) {
			sql := tableDefs[tt.table].createTableSQL()
			for _, w := range tt.want {
				if !strings.Contains(sql, w) {
					t.Errorf("expected %q in:\n%s", w, sql)
				}
			}
			if !strings.Contains(sql, "id BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY") {
				t.Errorf("expected identity primary key in:\n%s", sql)
			}
		})
	}
}

func TestIndexSQL(t *testing.T) {
	stmts := intradayQuoteDef.indexSQL()
	if len(stmts) != 3 {
		t.Fatalf("expected 3 index statements, got %d", len(stmts))
	}
	if stmts[0] != `CREATE UNIQUE INDEX IF NOT EXISTS uq_stock_data_30_minute_date_code_time ON stock_data_30_minute (date, code, "time")` {
		t.Errorf("unexpected unique index: %s", stmts[0])
	}
	if !strings.Contains(stmts[1], "(date)") || !strings.Contains(stmts[2], "(code)") {
		t.Errorf("expected date and code indexes, got %v", stmts[1:])
	}
}

func TestInsertSQL(t *testing.T) {
	insert := dailyIndicatorDef.insertSQL(false)
	if strings.Contains(insert, "ON CONFLICT") {
		t.Errorf("strict insert should not resolve conflicts: %s", insert)
	}
	if !strings.Contains(insert, "$20)") {
		t.Errorf("expected 20 placeholders: %s", insert)
	}

	upsert := dailyQuoteDef.insertSQL(true)
	if !strings.Contains(upsert, "ON CONFLICT (date, code) DO UPDATE SET") {
		t.Errorf("expected upsert on natural key: %s", upsert)
	}
	if strings.Contains(upsert, "date = EXCLUDED.date") {
		t.Errorf("key columns should not be reassigned: %s", upsert)
	}
	if !strings.Contains(upsert, "trade_status = EXCLUDED.trade_status") {
		t.Errorf("every value column should be replaced: %s", upsert)
	}

	intraday := intradayQuoteDef.insertSQL(true)
	if !strings.Contains(intraday, `ON CONFLICT (date, code, "time")`) {
		t.Errorf("expected intraday conflict target to include time: %s", intraday)
	}
}

func TestWriteArgs_MatchColumns(t *testing.T) {
	if got, want := len(dailyQuoteArgs(&models.DailyQuote{})), len(dailyQuoteDef.valueColumns()); got != want {
		t.Errorf("daily quote args = %d, columns = %d", got, want)
	}
	if got, want := len(intradayQuoteArgs(&models.IntradayQuote{})), len(intradayQuoteDef.valueColumns()); got != want {
		t.Errorf("intraday quote args = %d, columns = %d", got, want)
	}
	if got, want := len(dailyIndicatorArgs(&models.DailyIndicator{})), len(dailyIndicatorDef.valueColumns()); got != want {
		t.Errorf("indicator args = %d, columns = %d", got, want)
	}
}

func TestLiveColumnMatches(t *testing.T) {
	i32 := func(v int32) *int32 { return &v }

	want := numericCol("open", models.DailyPrice, true)
	if !(liveColumn{dataType: "numeric", precision: i32(16), scale: i32(4)}).matches(want) {
		t.Error("identical numeric column should match")
	}
	if (liveColumn{dataType: "numeric", precision: i32(16), scale: i32(2)}).matches(want) {
		t.Error("different scale should not match")
	}
	if (liveColumn{dataType: "double precision"}).matches(want) {
		t.Error("different type should not match")
	}

	code := codeCol()
	if (liveColumn{dataType: "character varying", length: i32(10)}).matches(code) {
		t.Error("narrower varchar should not match")
	}
	if !(liveColumn{dataType: "bigint"}).matches(identityCol()) {
		t.Error("bigint id should match")
	}
}
