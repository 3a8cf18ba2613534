package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DailyIndicator holds the derived technical indicators of a symbol for one day.
// Values are null until the indicator's lookback window is filled.
type DailyIndicator struct {
	Date string `json:"date"`
	Code string `json:"code"`

	// MACD
	Diff decimal.NullDecimal `json:"diff"`
	Dea  decimal.NullDecimal `json:"dea"`
	Macd decimal.NullDecimal `json:"macd"`

	// KDJ
	K decimal.NullDecimal `json:"k"`
	D decimal.NullDecimal `json:"d"`
	J decimal.NullDecimal `json:"j"`

	Cci decimal.NullDecimal `json:"cci"`
	Mfi decimal.NullDecimal `json:"mfi"`

	Ma3  decimal.NullDecimal `json:"ma3"`
	Ma5  decimal.NullDecimal `json:"ma5"`
	Ma10 decimal.NullDecimal `json:"ma10"`
	Ma20 decimal.NullDecimal `json:"ma20"`
	Ma30 decimal.NullDecimal `json:"ma30"`
	Ma60 decimal.NullDecimal `json:"ma60"`
	Ma90 decimal.NullDecimal `json:"ma90"`

	BollUpper  decimal.NullDecimal `json:"boll_upper"`
	BollMiddle decimal.NullDecimal `json:"boll_middle"`
	BollLower  decimal.NullDecimal `json:"boll_lower"`
}

// Key returns the natural key in a loggable form
func (ind *DailyIndicator) Key() string {
	return fmt.Sprintf("date=%s code=%s", ind.Date, ind.Code)
}

// Values returns the indicator columns in table order
func (ind *DailyIndicator) Values() []decimal.NullDecimal {
	return []decimal.NullDecimal{
		ind.Diff, ind.Dea, ind.Macd,
		ind.K, ind.D, ind.J,
		ind.Cci, ind.Mfi,
		ind.Ma3, ind.Ma5, ind.Ma10, ind.Ma20, ind.Ma30, ind.Ma60, ind.Ma90,
		ind.BollUpper, ind.BollMiddle, ind.BollLower,
	}
}

// Fields returns pointers to the indicator columns in table order
func (ind *DailyIndicator) Fields() []*decimal.NullDecimal {
	return []*decimal.NullDecimal{
		&ind.Diff, &ind.Dea, &ind.Macd,
		&ind.K, &ind.D, &ind.J,
		&ind.Cci, &ind.Mfi,
		&ind.Ma3, &ind.Ma5, &ind.Ma10, &ind.Ma20, &ind.Ma30, &ind.Ma60, &ind.Ma90,
		&ind.BollUpper, &ind.BollMiddle, &ind.BollLower,
	}
}

// IndicatorColumns lists the value columns of stock_indicators_1_day in table order
var IndicatorColumns = []string{
	"diff", "dea", "macd",
	"k", "d", "j",
	"cci", "mfi",
	"ma3", "ma5", "ma10", "ma20", "ma30", "ma60", "ma90",
	"boll_upper", "boll_middle", "boll_lower",
}

// Validate checks the record against the column definitions of stock_indicators_1_day
func (ind *DailyIndicator) Validate() error {
	if err := validateKey(TableDailyIndicator, ind.Date, ind.Code); err != nil {
		return err
	}
	values := ind.Values()
	fields := make([]decimalField, len(values))
	for i, v := range values {
		fields[i] = optional(IndicatorColumns[i], v, IndicatorValue)
	}
	return checkDecimals(TableDailyIndicator, fields...)
}
