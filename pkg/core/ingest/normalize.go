package ingest

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dcf_valuation/pkg/models"
)

// Field is a canonical line item with the column names accepted for it,
// highest priority first.
type Field struct {
	Name    string
	Aliases []string
}

// DefaultFields resolves every alternate column name once, at ingestion.
var DefaultFields = []Field{
	{"revenue", []string{"revenue", "revenues", "total_revenue", "net_sales"}},
	{"cost_of_revenue", []string{"cost_of_revenue", "cost_of_goods_sold", "cogs"}},
	{"operating_income", []string{"operating_income", "income_from_operations"}},
	{"net_income", []string{"net_income"}},
	{"income_tax_expense", []string{"income_tax_expense"}},
	{"interest_expense", []string{"interest_expense"}},
	{"cash", []string{"cash", "cash_and_equivalents"}},
	{"total_debt", []string{"long_term_debt", "total_debt", "debt_current"}},
	{"shares_outstanding", []string{"shares_outstanding", "shares_outstanding_basic", "common_shares_outstanding", "shares_outstanding_diluted"}},
	{"total_assets", []string{"total_assets"}},
	{"total_current_liabilities", []string{"total_current_liabilities"}},
	{"short_term_debt", []string{"short_term_debt"}},
	{"accounts_receivable", []string{"accounts_receivable"}},
	{"inventory", []string{"inventory"}},
	{"accounts_payable", []string{"accounts_payable"}},
	{"depreciation", []string{"depreciation", "depreciation_and_amortization"}},
	{"capex", []string{"capex", "capital_expenditure"}},
}

// DateColumns are tried in order to find the fiscal year end.
var DateColumns = []string{"fiscal_year_end", "date", "period_end", ""}

// ErrInvalidFinancials is returned when a series cannot be valued.
var ErrInvalidFinancials = errors.New("invalid financials")

var (
	nonWord    = regexp.MustCompile(`[^\w]`)
	separators = regexp.MustCompile(`[\s\-]+`)
	moneyChars = regexp.MustCompile(`[€$£,\s]`)
)

// NormalizeColumn lowercases a header and turns it into snake_case.
func NormalizeColumn(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = separators.ReplaceAllString(s, "_")
	return nonWord.ReplaceAllString(s, "")
}

// ParseNumber strips currency symbols and thousands separators. Blanks,
// bare hyphens and unparseable cells report false.
func ParseNumber(s string) (float64, bool) {
	s = moneyChars.ReplaceAllString(s, "")
	if s == "" || s == "-" || strings.EqualFold(s, "nan") {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseDate accepts ISO dates, timestamps and bare years (year end).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339, "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	if y, err := strconv.Atoi(s); err == nil && y > 1900 && y < 3000 {
		return time.Date(y, 12, 31, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func resolve(values map[string]float64, fields []Field, name string) (float64, bool) {
	for _, f := range fields {
		if f.Name != name {
			continue
		}
		for _, alias := range f.Aliases {
			if v, ok := values[alias]; ok {
				return v, true
			}
		}
	}
	return 0, false
}

// BuildRow maps normalised column values onto the canonical record.
func BuildRow(end time.Time, values map[string]float64, fields []Field) models.FinancialRow {
	get := func(name string) float64 {
		v, _ := resolve(values, fields, name)
		return v
	}
	opt := func(name string) *float64 {
		if v, ok := resolve(values, fields, name); ok {
			return models.Float(v)
		}
		return nil
	}
	return models.FinancialRow{
		FiscalYearEnd:           end,
		Revenue:                 get("revenue"),
		CostOfRevenue:           opt("cost_of_revenue"),
		OperatingIncome:         opt("operating_income"),
		NetIncome:               get("net_income"),
		IncomeTaxExpense:        get("income_tax_expense"),
		InterestExpense:         opt("interest_expense"),
		Cash:                    get("cash"),
		TotalDebt:               get("total_debt"),
		SharesOutstanding:       get("shares_outstanding"),
		TotalAssets:             opt("total_assets"),
		TotalCurrentLiabilities: opt("total_current_liabilities"),
		ShortTermDebt:           opt("short_term_debt"),
		AccountsReceivable:      opt("accounts_receivable"),
		Inventory:               opt("inventory"),
		AccountsPayable:         opt("accounts_payable"),
		Depreciation:            opt("depreciation"),
		Capex:                   opt("capex"),
	}
}

// Validate checks that the latest row can anchor a valuation.
func Validate(fin models.Financials) error {
	if len(fin) == 0 {
		return fmt.Errorf("%w: no rows", ErrInvalidFinancials)
	}
	latest := fin.Sorted().Latest()
	if !(latest.Revenue > 0) {
		return fmt.Errorf("%w: latest revenue %.2f must be > 0", ErrInvalidFinancials, latest.Revenue)
	}
	if !(latest.SharesOutstanding > 0) {
		return fmt.Errorf("%w: latest shares outstanding %.2f must be > 0", ErrInvalidFinancials, latest.SharesOutstanding)
	}
	return nil
}
