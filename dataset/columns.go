package dataset

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shupiange/mephisto-quant/models"
)

// headerAliases maps the provider's CSV column names (lower-cased) onto
// table column names
var headerAliases = map[string]string{
	"pctchg":      "pct_chg",
	"pettm":       "pe_ttm",
	"pbmrq":       "pb",
	"psttm":       "ps_ttm",
	"pcfncfttm":   "pcf_ttm",
	"tradestatus": "trade_status",
	"timerank":    "time_rank",
	"bollupper":   "boll_upper",
	"bollmiddle":  "boll_middle",
	"bolllower":   "boll_lower",
}

// canonicalColumn normalises a header cell to a table column name
func canonicalColumn(header string) string {
	h := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(header, "\ufeff")))
	if alias, ok := headerAliases[h]; ok {
		return alias
	}
	return h
}

// header indexes CSV columns by table column name. Unknown columns are ignored.
type header map[string]int

func parseHeader(cells []string) header {
	h := make(header, len(cells))
	for i, c := range cells {
		name := canonicalColumn(c)
		if _, dup := h[name]; !dup {
			h[name] = i
		}
	}
	return h
}

func (h header) has(col string) bool {
	_, ok := h[col]
	return ok
}

// require reports the first of cols missing from the header
func (h header) require(cols ...string) error {
	for _, c := range cols {
		if !h.has(c) {
			return fmt.Errorf("missing column %q", c)
		}
	}
	return nil
}

// row reads typed cells out of one CSV record
type row struct {
	cells []string
	h     header
	round bool
}

func (r row) str(col string) string {
	i, ok := r.h[col]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

// decimal parses a required numeric cell
func (r row) decimal(col string, p models.Precision) (decimal.Decimal, error) {
	s := r.str(col)
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("%s: required value is empty", col)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s: %q is not a number", col, s)
	}
	if r.round {
		d = d.Round(p.Scale)
	}
	return d, nil
}

// nullDecimal parses a nullable numeric cell; empty and NaN cells are NULL
func (r row) nullDecimal(col string, p models.Precision) (decimal.NullDecimal, error) {
	s := r.str(col)
	if s == "" || strings.EqualFold(s, "nan") {
		return decimal.NullDecimal{}, nil
	}
	d, err := r.decimal(col, p)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// integer parses an integer cell, accepting the "123.0" form spreadsheets emit
func (r row) integer(col string) (int64, error) {
	s := r.str(col)
	if s == "" {
		return 0, fmt.Errorf("%s: required value is empty", col)
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return 0, fmt.Errorf("%s: %q is not an integer", col, s)
	}
	if !d.BigInt().IsInt64() {
		return 0, fmt.Errorf("%s: %q out of range", col, s)
	}
	return d.IntPart(), nil
}
