package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Table identifies one of the persisted time-series tables
type Table string

const (
	TableDailyQuote     Table = "stock_data_1_day"
	TableIntradayQuote  Table = "stock_data_30_minute"
	TableDailyIndicator Table = "stock_indicators_1_day"
)

// Tables lists every table in provisioning order
var Tables = []Table{TableDailyQuote, TableIntradayQuote, TableDailyIndicator}

// Column widths shared by all tables
const (
	DateWidth = 10
	CodeWidth = 15
)

// DateLayout is the on-disk layout of the date column
const DateLayout = "2006-01-02"

// ParseTable resolves a table name or one of its short aliases
func ParseTable(name string) (Table, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case string(TableDailyQuote), "daily", "1d", "daily-quotes":
		return TableDailyQuote, nil
	case string(TableIntradayQuote), "minute", "30m", "intraday", "intraday-quotes":
		return TableIntradayQuote, nil
	case string(TableDailyIndicator), "indicators", "indicator":
		return TableDailyIndicator, nil
	default:
		return "", fmt.Errorf("unknown table: %q", name)
	}
}

// Precision is the declared NUMERIC(digits, scale) of a column
type Precision struct {
	Digits int32
	Scale  int32
}

var (
	DailyPrice     = Precision{Digits: 16, Scale: 4}
	DailyAmount    = Precision{Digits: 20, Scale: 4}
	DailyRate      = Precision{Digits: 10, Scale: 4}
	IntradayPrice  = Precision{Digits: 20, Scale: 2}
	IndicatorValue = Precision{Digits: 20, Scale: 6}
)

// Check reports whether d can be stored without rounding or overflow
func (p Precision) Check(d decimal.Decimal) error {
	if !d.Equal(d.Truncate(p.Scale)) {
		return fmt.Errorf("more than %d fractional digits in %s", p.Scale, d.String())
	}
	limit := decimal.New(1, p.Digits-p.Scale)
	if d.Abs().GreaterThanOrEqual(limit) {
		return fmt.Errorf("%s exceeds %d integer digits", d.String(), p.Digits-p.Scale)
	}
	return nil
}

// FieldError describes a record field that cannot be stored as given
type FieldError struct {
	Table  Table
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Table, e.Field, e.Reason)
}

func validateKey(table Table, date, code string) error {
	if date == "" {
		return &FieldError{Table: table, Field: "date", Reason: "required"}
	}
	if utf8.RuneCountInString(date) > DateWidth {
		return &FieldError{Table: table, Field: "date", Reason: fmt.Sprintf("longer than %d characters", DateWidth)}
	}
	if _, err := time.Parse(DateLayout, date); err != nil {
		return &FieldError{Table: table, Field: "date", Reason: "not a YYYY-MM-DD date"}
	}
	if code == "" {
		return &FieldError{Table: table, Field: "code", Reason: "required"}
	}
	if utf8.RuneCountInString(code) > CodeWidth {
		return &FieldError{Table: table, Field: "code", Reason: fmt.Sprintf("longer than %d characters", CodeWidth)}
	}
	return nil
}

// decimalField pairs a column name with its value for precision checks
type decimalField struct {
	name  string
	value decimal.NullDecimal
	prec  Precision
}

func required(name string, d decimal.Decimal, p Precision) decimalField {
	return decimalField{name: name, value: decimal.NewNullDecimal(d), prec: p}
}

func optional(name string, d decimal.NullDecimal, p Precision) decimalField {
	return decimalField{name: name, value: d, prec: p}
}

func checkDecimals(table Table, fields ...decimalField) error {
	for _, f := range fields {
		if !f.value.Valid {
			continue
		}
		if err := f.prec.Check(f.value.Decimal); err != nil {
			return &FieldError{Table: table, Field: f.name, Reason: err.Error()}
		}
	}
	return nil
}
