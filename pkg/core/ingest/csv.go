package ingest

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/gocarina/gocsv"

	"dcf_valuation/pkg/models"
)

// LoadFinancialsCSV reads an annual financials table. Headers are
// normalised and mapped through fields; rows without a parseable date are
// skipped. The result is sorted oldest first.
func LoadFinancialsCSV(r io.Reader, fields []Field) (models.Financials, error) {
	if fields == nil {
		fields = DefaultFields
	}
	records, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, fmt.Errorf("read financials csv: %w", err)
	}

	fin := make(models.Financials, 0, len(records))
	for _, rec := range records {
		values := make(map[string]float64, len(rec))
		raw := make(map[string]string, len(rec))
		for k, v := range rec {
			col := NormalizeColumn(k)
			raw[col] = v
			if n, ok := ParseNumber(v); ok {
				values[col] = n
			}
		}

		end, ok := rowDate(raw)
		if !ok {
			continue
		}
		fin = append(fin, BuildRow(end, values, fields))
	}
	return fin.Sorted(), nil
}

// LoadFinancialsFile opens path and calls LoadFinancialsCSV with the default fields.
func LoadFinancialsFile(path string) (models.Financials, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadFinancialsCSV(f, DefaultFields)
}

func rowDate(raw map[string]string) (time.Time, bool) {
	for _, col := range DateColumns {
		if s, ok := raw[col]; ok && s != "" {
			if t, err := ParseDate(s); err == nil {
				return t, true
			}
		}
	}
	if s, ok := raw["fiscal_year"]; ok {
		if t, err := ParseDate(s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// csvRow is the on-disk shape. Optional items are blank when missing.
type csvRow struct {
	FiscalYearEnd           string `csv:"fiscal_year_end"`
	Revenue                 string `csv:"revenue"`
	CostOfRevenue           string `csv:"cost_of_revenue"`
	OperatingIncome         string `csv:"operating_income"`
	NetIncome               string `csv:"net_income"`
	IncomeTaxExpense        string `csv:"income_tax_expense"`
	InterestExpense         string `csv:"interest_expense"`
	Cash                    string `csv:"cash"`
	TotalDebt               string `csv:"total_debt"`
	SharesOutstanding       string `csv:"shares_outstanding"`
	TotalAssets             string `csv:"total_assets"`
	TotalCurrentLiabilities string `csv:"total_current_liabilities"`
	ShortTermDebt           string `csv:"short_term_debt"`
	AccountsReceivable      string `csv:"accounts_receivable"`
	Inventory               string `csv:"inventory"`
	AccountsPayable         string `csv:"accounts_payable"`
	Depreciation            string `csv:"depreciation"`
	Capex                   string `csv:"capex"`
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func optNum(v *float64) string {
	if v == nil {
		return ""
	}
	return num(*v)
}

// SaveFinancialsCSV writes fin in canonical column order.
func SaveFinancialsCSV(w io.Writer, fin models.Financials) error {
	rows := make([]*csvRow, 0, len(fin))
	for _, r := range fin {
		rows = append(rows, &csvRow{
			FiscalYearEnd:           r.FiscalYearEnd.Format("2006-01-02"),
			Revenue:                 num(r.Revenue),
			CostOfRevenue:           optNum(r.CostOfRevenue),
			OperatingIncome:         optNum(r.OperatingIncome),
			NetIncome:               num(r.NetIncome),
			IncomeTaxExpense:        num(r.IncomeTaxExpense),
			InterestExpense:         optNum(r.InterestExpense),
			Cash:                    num(r.Cash),
			TotalDebt:               num(r.TotalDebt),
			SharesOutstanding:       num(r.SharesOutstanding),
			TotalAssets:             optNum(r.TotalAssets),
			TotalCurrentLiabilities: optNum(r.TotalCurrentLiabilities),
			ShortTermDebt:           optNum(r.ShortTermDebt),
			AccountsReceivable:      optNum(r.AccountsReceivable),
			Inventory:               optNum(r.Inventory),
			AccountsPayable:         optNum(r.AccountsPayable),
			Depreciation:            optNum(r.Depreciation),
			Capex:                   optNum(r.Capex),
		})
	}
	return gocsv.Marshal(rows, w)
}
