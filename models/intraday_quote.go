package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IntradayQuote is one 30-minute bar.
// Time uses the provider encoding YYYYMMDDHHMMSSsss; TimeRank orders bars within a day
// starting at 1.
type IntradayQuote struct {
	Date     string          `json:"date"`
	Code     string          `json:"code"`
	Open     decimal.Decimal `json:"open"`
	Close    decimal.Decimal `json:"close"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Volume   int64           `json:"volume"`
	Amount   decimal.Decimal `json:"amount"`
	Time     int64           `json:"time"`
	TimeRank int32           `json:"time_rank"`
}

// Key returns the natural key in a loggable form
func (q *IntradayQuote) Key() string {
	return fmt.Sprintf("date=%s code=%s time=%d", q.Date, q.Code, q.Time)
}

// Validate checks the record against the column definitions of stock_data_30_minute
func (q *IntradayQuote) Validate() error {
	if err := validateKey(TableIntradayQuote, q.Date, q.Code); err != nil {
		return err
	}
	if q.Time <= 0 {
		return &FieldError{Table: TableIntradayQuote, Field: "time", Reason: "required"}
	}
	if q.TimeRank < 1 {
		return &FieldError{Table: TableIntradayQuote, Field: "time_rank", Reason: "must be at least 1"}
	}
	if q.Volume < 0 {
		return &FieldError{Table: TableIntradayQuote, Field: "volume", Reason: "negative"}
	}
	return checkDecimals(TableIntradayQuote,
		required("open", q.Open, IntradayPrice),
		required("close", q.Close, IntradayPrice),
		required("high", q.High, IntradayPrice),
		required("low", q.Low, IntradayPrice),
		required("amount", q.Amount, IntradayPrice),
	)
}
