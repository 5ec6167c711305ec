package ingest

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"dcf_valuation/pkg/models"
)

// Concept maps one XBRL tag to a column name. When several tags feed the
// same column, the earlier one wins for any given period end.
type Concept struct {
	Tag    string
	Column string
}

// DefaultConceptMap covers the US GAAP tags the valuation needs.
var DefaultConceptMap = []Concept{
	// Income statement
	{"RevenueFromContractWithCustomerExcludingAssessedTax", "revenue"},
	{"Revenues", "revenue"},
	{"SalesRevenueNet", "revenue"},
	{"CostOfGoodsAndServicesSold", "cost_of_revenue"},
	{"CostOfRevenue", "cost_of_revenue"},
	{"OperatingIncomeLoss", "operating_income"},
	{"NetIncomeLoss", "net_income"},
	{"InterestExpense", "interest_expense"},
	{"InterestExpenseDebt", "interest_expense"},
	{"InterestExpenseNonoperating", "interest_expense"},
	{"IncomeTaxExpenseBenefit", "income_tax_expense"},
	// Balance sheet
	{"Assets", "total_assets"},
	{"LiabilitiesCurrent", "total_current_liabilities"},
	{"CashAndCashEquivalentsAtCarryingValue", "cash"},
	{"CashCashEquivalentsAndShortTermInvestments", "cash"},
	{"ShortTermBorrowings", "short_term_debt"},
	{"LongTermDebtNoncurrent", "long_term_debt"},
	{"LongTermDebt", "long_term_debt"},
	{"DebtCurrent", "debt_current"},
	{"DebtLongTermAndShortTermCombinedAmount", "total_debt"},
	{"AccountsReceivableNetCurrent", "accounts_receivable"},
	{"AccountsReceivableNet", "accounts_receivable"},
	{"InventoryNet", "inventory"},
	{"AccountsPayableCurrent", "accounts_payable"},
	{"AccountsPayableAndAccruedLiabilitiesCurrent", "accounts_payable"},
	// Cash flow
	{"PaymentsToAcquirePropertyPlantAndEquipment", "capex"},
	{"DepreciationDepletionAndAmortization", "depreciation"},
	{"Depreciation", "depreciation"},
	{"DepreciationAndAmortization", "depreciation"},
	// Shares
	{"CommonStockSharesOutstanding", "shares_outstanding"},
	{"EntityCommonStockSharesOutstanding", "shares_outstanding"},
	{"WeightedAverageNumberOfSharesOutstandingBasic", "shares_outstanding_basic"},
}

// DefaultAnnualForms are the SEC forms treated as annual reports.
var DefaultAnnualForms = []string{"10-K", "10-K/A", "20-F", "20-F/A"}

// XBRLOptions controls companyfacts extraction. Zero values use defaults.
type XBRLOptions struct {
	Concepts    []Concept
	AnnualForms []string
	YearsToKeep int
	Taxonomy    string // "us-gaap" or "ifrs-full"
	Fields      []Field
}

// CompanyFacts is the extraction result.
type CompanyFacts struct {
	EntityName string
	Financials models.Financials
}

type factEntry struct {
	End  string   `json:"end"`
	Val  *float64 `json:"val"`
	Form string   `json:"form"`
	FY   int      `json:"fy"`
	FP   string   `json:"fp"`
}

type companyFactsDoc struct {
	EntityName string `json:"entityName"`
	Facts      map[string]map[string]struct {
		Units map[string][]factEntry `json:"units"`
	} `json:"facts"`
}

// sparseThreshold is the minimum share of populated columns a period
// needs to be kept. Opening-balance snapshots fall below it.
const sparseThreshold = 0.25

// ParseCompanyFacts turns a companyfacts JSON document into annual rows:
// one per fiscal year, the most complete period winning a year, newest
// YearsToKeep years kept.
func ParseCompanyFacts(data []byte, opts XBRLOptions) (*CompanyFacts, error) {
	if opts.Concepts == nil {
		opts.Concepts = DefaultConceptMap
	}
	if opts.AnnualForms == nil {
		opts.AnnualForms = DefaultAnnualForms
	}
	if opts.Taxonomy == "" {
		opts.Taxonomy = "us-gaap"
	}
	if opts.Fields == nil {
		opts.Fields = DefaultFields
	}

	var doc companyFactsDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse companyfacts: %w", err)
	}
	facts := doc.Facts[opts.Taxonomy]

	annual := make(map[string]bool, len(opts.AnnualForms))
	for _, f := range opts.AnnualForms {
		annual[f] = true
	}

	// 1. Column -> period end -> value, first tag wins
	columns := map[string]map[time.Time]float64{}
	for _, c := range opts.Concepts {
		concept, ok := facts[c.Tag]
		if !ok {
			continue
		}
		col := columns[c.Column]
		if col == nil {
			col = map[time.Time]float64{}
		}
		units := make([]string, 0, len(concept.Units))
		for u := range concept.Units {
			units = append(units, u)
		}
		sort.Strings(units)
		for _, u := range units {
			for _, e := range concept.Units[u] {
				if !annual[e.Form] || e.Val == nil || e.End == "" {
					continue
				}
				end, err := time.Parse("2006-01-02", e.End)
				if err != nil {
					continue
				}
				if _, seen := col[end]; !seen {
					col[end] = *e.Val
				}
			}
		}
		if len(col) > 0 {
			columns[c.Column] = col
		}
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("no %s concepts found in companyfacts", opts.Taxonomy)
	}

	// 2. Pivot to periods and drop sparse snapshots
	periods := map[time.Time]map[string]float64{}
	for name, col := range columns {
		for end, v := range col {
			if periods[end] == nil {
				periods[end] = map[string]float64{}
			}
			periods[end][name] = v
		}
	}
	minCols := int(float64(len(columns)) * sparseThreshold)

	// 3. One period per fiscal year, most complete wins, later end on ties
	best := map[int]time.Time{}
	for end, vals := range periods {
		if len(vals) < minCols {
			continue
		}
		y := end.Year()
		cur, ok := best[y]
		if !ok || len(vals) > len(periods[cur]) || (len(vals) == len(periods[cur]) && end.After(cur)) {
			best[y] = end
		}
	}

	fin := make(models.Financials, 0, len(best))
	for _, end := range best {
		fin = append(fin, BuildRow(end, periods[end], opts.Fields))
	}
	fin = fin.Sorted()
	if opts.YearsToKeep > 0 {
		fin = fin.Trailing(opts.YearsToKeep)
	}
	return &CompanyFacts{EntityName: doc.EntityName, Financials: fin}, nil
}
