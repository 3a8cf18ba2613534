package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TradeStatus flags whether a symbol traded on a given day
type TradeStatus int16

const (
	TradeStatusSuspended TradeStatus = 0
	TradeStatusActive    TradeStatus = 1
)

// DailyQuote is one symbol's OHLCV and valuation snapshot for a trading day
type DailyQuote struct {
	Date        string              `json:"date"`
	Code        string              `json:"code"`
	Open        decimal.Decimal     `json:"open"`
	Close       decimal.Decimal     `json:"close"`
	High        decimal.Decimal     `json:"high"`
	Low         decimal.Decimal     `json:"low"`
	Volume      int64               `json:"volume"`
	Amount      decimal.Decimal     `json:"amount"`
	Turn        decimal.NullDecimal `json:"turn"`
	PctChg      decimal.NullDecimal `json:"pct_chg"`
	PeTTM       decimal.NullDecimal `json:"pe_ttm"`
	Pb          decimal.NullDecimal `json:"pb"`
	PsTTM       decimal.NullDecimal `json:"ps_ttm"`
	PcfTTM      decimal.NullDecimal `json:"pcf_ttm"`
	TradeStatus TradeStatus         `json:"trade_status"`
}

// Key returns the natural key in a loggable form
func (q *DailyQuote) Key() string {
	return fmt.Sprintf("date=%s code=%s", q.Date, q.Code)
}

// Validate checks the record against the column definitions of stock_data_1_day
func (q *DailyQuote) Validate() error {
	if err := validateKey(TableDailyQuote, q.Date, q.Code); err != nil {
		return err
	}
	if q.Volume < 0 {
		return &FieldError{Table: TableDailyQuote, Field: "volume", Reason: "negative"}
	}
	if q.TradeStatus != TradeStatusSuspended && q.TradeStatus != TradeStatusActive {
		return &FieldError{Table: TableDailyQuote, Field: "trade_status", Reason: fmt.Sprintf("unknown status %d", q.TradeStatus)}
	}
	return checkDecimals(TableDailyQuote,
		required("open", q.Open, DailyPrice),
		required("close", q.Close, DailyPrice),
		required("high", q.High, DailyPrice),
		required("low", q.Low, DailyPrice),
		required("amount", q.Amount, DailyAmount),
		optional("turn", q.Turn, DailyRate),
		optional("pct_chg", q.PctChg, DailyRate),
		optional("pe_ttm", q.PeTTM, DailyPrice),
		optional("pb", q.Pb, DailyPrice),
		optional("ps_ttm", q.PsTTM, DailyPrice),
		optional("pcf_ttm", q.PcfTTM, DailyPrice),
	)
}
