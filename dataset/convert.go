package dataset

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/shupiange/mephisto-quant/models"
)

// pending is one converted CSV record waiting to be written
type pending struct {
	line  int
	key   string
	err   error // conversion failure; write is nil when set
	write func(ctx context.Context) error
}

var (
	dailyQuoteRequired    = []string{"date", "code", "open", "close", "high", "low", "volume", "amount"}
	intradayQuoteRequired = []string{"date", "code", "open", "close", "high", "low", "volume", "amount", "time"}
	indicatorRequired     = []string{"date", "code"}
)

func (im *Importer) convert(table models.Table, h header, records [][]string, firstLine int) ([]pending, error) {
	switch table {
	case models.TableDailyQuote:
		if err := h.require(dailyQuoteRequired...); err != nil {
			return nil, err
		}
		return im.convertDailyQuotes(h, records, firstLine), nil
	case models.TableIntradayQuote:
		if err := h.require(intradayQuoteRequired...); err != nil {
			return nil, err
		}
		return im.convertIntradayQuotes(h, records, firstLine), nil
	case models.TableDailyIndicator:
		if err := h.require(indicatorRequired...); err != nil {
			return nil, err
		}
		return im.convertIndicators(h, records, firstLine), nil
	default:
		return nil, fmt.Errorf("unknown table %q", table)
	}
}

func (im *Importer) convertDailyQuotes(h header, records [][]string, firstLine int) []pending {
	out := make([]pending, 0, len(records))
	for i, cells := range records {
		r := row{cells: cells, h: h, round: im.opts.Round}
		q, err := dailyQuoteFromRow(r)
		p := pending{line: firstLine + i, key: q.Key(), err: err}
		if err == nil {
			p.write = func(ctx context.Context) error {
				if im.opts.Replace {
					return im.writer.UpsertDailyQuote(ctx, q)
				}
				return im.writer.InsertDailyQuote(ctx, q)
			}
		}
		out = append(out, p)
	}
	return out
}

func dailyQuoteFromRow(r row) (*models.DailyQuote, error) {
	q := &models.DailyQuote{Date: r.str("date"), Code: r.str("code"), TradeStatus: models.TradeStatusActive}
	var err error
	if q.Open, err = r.decimal("open", models.DailyPrice); err != nil {
		return q, err
	}
	if q.Close, err = r.decimal("close", models.DailyPrice); err != nil {
		return q, err
	}
	if q.High, err = r.decimal("high", models.DailyPrice); err != nil {
		return q, err
	}
	if q.Low, err = r.decimal("low", models.DailyPrice); err != nil {
		return q, err
	}
	if q.Volume, err = r.integer("volume"); err != nil {
		return q, err
	}
	if q.Amount, err = r.decimal("amount", models.DailyAmount); err != nil {
		return q, err
	}
	if q.Turn, err = r.nullDecimal("turn", models.DailyRate); err != nil {
		return q, err
	}
	if q.PctChg, err = r.nullDecimal("pct_chg", models.DailyRate); err != nil {
		return q, err
	}
	if q.PeTTM, err = r.nullDecimal("pe_ttm", models.DailyPrice); err != nil {
		return q, err
	}
	if q.Pb, err = r.nullDecimal("pb", models.DailyPrice); err != nil {
		return q, err
	}
	if q.PsTTM, err = r.nullDecimal("ps_ttm", models.DailyPrice); err != nil {
		return q, err
	}
	if q.PcfTTM, err = r.nullDecimal("pcf_ttm", models.DailyPrice); err != nil {
		return q, err
	}
	if r.str("trade_status") != "" {
		status, err := r.integer("trade_status")
		if err != nil {
			return q, err
		}
		q.TradeStatus = models.TradeStatus(status)
	}
	return q, nil
}

func (im *Importer) convertIntradayQuotes(h header, records [][]string, firstLine int) []pending {
	quotes := make([]*models.IntradayQuote, len(records))
	errs := make([]error, len(records))
	for i, cells := range records {
		quotes[i], errs[i] = intradayQuoteFromRow(row{cells: cells, h: h, round: im.opts.Round})
	}

	if !h.has("time_rank") {
		assignTimeRanks(quotes, errs)
	}

	out := make([]pending, 0, len(records))
	for i, q := range quotes {
		p := pending{line: firstLine + i, key: q.Key(), err: errs[i]}
		if p.err == nil {
			p.write = func(ctx context.Context) error {
				if im.opts.Replace {
					return im.writer.UpsertIntradayQuote(ctx, q)
				}
				return im.writer.InsertIntradayQuote(ctx, q)
			}
		}
		out = append(out, p)
	}
	return out
}

func intradayQuoteFromRow(r row) (*models.IntradayQuote, error) {
	q := &models.IntradayQuote{Date: r.str("date"), Code: r.str("code")}
	var err error
	if q.Open, err = r.decimal("open", models.IntradayPrice); err != nil {
		return q, err
	}
	if q.Close, err = r.decimal("close", models.IntradayPrice); err != nil {
		return q, err
	}
	if q.High, err = r.decimal("high", models.IntradayPrice); err != nil {
		return q, err
	}
	if q.Low, err = r.decimal("low", models.IntradayPrice); err != nil {
		return q, err
	}
	if q.Volume, err = r.integer("volume"); err != nil {
		return q, err
	}
	if q.Amount, err = r.decimal("amount", models.IntradayPrice); err != nil {
		return q, err
	}
	if q.Time, err = r.integer("time"); err != nil {
		return q, err
	}
	if r.str("time_rank") != "" {
		rank, err := r.integer("time_rank")
		if err != nil {
			return q, err
		}
		if rank < math.MinInt32 || rank > math.MaxInt32 {
			return q, fmt.Errorf("time_rank: %d out of range", rank)
		}
		q.TimeRank = int32(rank)
	}
	return q, nil
}

// assignTimeRanks numbers the bars of each (code, date) from 1 in ascending
// time order. Rows that failed conversion keep their error and take no rank.
func assignTimeRanks(quotes []*models.IntradayQuote, errs []error) {
	type group struct{ code, date string }
	groups := make(map[group][]*models.IntradayQuote)
	for i, q := range quotes {
		if errs[i] != nil {
			continue
		}
		g := group{q.Code, q.Date}
		groups[g] = append(groups[g], q)
	}
	for _, bars := range groups {
		slices.SortStableFunc(bars, func(a, b *models.IntradayQuote) int {
			return cmp.Compare(a.Time, b.Time)
		})
		for i, q := range bars {
			q.TimeRank = int32(i + 1)
		}
	}
}

func (im *Importer) convertIndicators(h header, records [][]string, firstLine int) []pending {
	out := make([]pending, 0, len(records))
	for i, cells := range records {
		ind, err := indicatorFromRow(row{cells: cells, h: h, round: im.opts.Round})
		p := pending{line: firstLine + i, key: ind.Key(), err: err}
		if err == nil {
			p.write = func(ctx context.Context) error {
				if im.opts.Replace {
					return im.writer.UpsertDailyIndicator(ctx, ind)
				}
				return im.writer.InsertDailyIndicator(ctx, ind)
			}
		}
		out = append(out, p)
	}
	return out
}

func indicatorFromRow(r row) (*models.DailyIndicator, error) {
	ind := &models.DailyIndicator{Date: r.str("date"), Code: r.str("code")}
	for i, f := range ind.Fields() {
		v, err := r.nullDecimal(models.IndicatorColumns[i], models.IndicatorValue)
		if err != nil {
			return ind, err
		}
		*f = v
	}
	return ind, nil
}
