package models

import (
	"testing"
	"time"
)

func row(year int, revenue float64) FinancialRow {
	return FinancialRow{
		FiscalYearEnd: time.Date(year, 12, 31, 0, 0, 0, 0, time.UTC),
		Revenue:       revenue,
	}
}

func TestFinancials_SortedAndLatest(t *testing.T) {
	f := Financials{row(2023, 300), row(2021, 100), row(2022, 200)}
	sorted := f.Sorted()

	if sorted.Latest().FiscalYear() != 2023 {
		t.Errorf("expected latest 2023, got %d", sorted.Latest().FiscalYear())
	}
	if f[0].FiscalYear() != 2023 {
		t.Error("Sorted must not reorder the receiver")
	}
	if got := len(sorted.Trailing(2)); got != 2 {
		t.Errorf("expected 2 trailing rows, got %d", got)
	}
	if got := len(sorted.Trailing(10)); got != 3 {
		t.Errorf("expected all 3 rows, got %d", got)
	}
}

func TestFinancialRow_OperatingMargin(t *testing.T) {
	r := row(2024, 1000)
	if _, ok := r.OperatingMargin(); ok {
		t.Error("expected no margin without operating income")
	}

	r.OperatingIncome = Float(250)
	m, ok := r.OperatingMargin()
	if !ok || m != 0.25 {
		t.Errorf("expected 0.25, got %f (ok=%v)", m, ok)
	}

	r.Revenue = 0
	if _, ok := r.OperatingMargin(); ok {
		t.Error("expected no margin with zero revenue")
	}
}

func TestFinancialRow_NetDebt(t *testing.T) {
	r := FinancialRow{TotalDebt: 50, Cash: 80}
	if r.NetDebt() != -30 {
		t.Errorf("expected net cash of -30, got %f", r.NetDebt())
	}
}
