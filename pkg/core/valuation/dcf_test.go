package valuation

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"dcf_valuation/pkg/core/assumption"
	"dcf_valuation/pkg/models"
)

func goldenFinancials() models.Financials {
	return models.Financials{
		{
			FiscalYearEnd:     time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
			Revenue:           10000,
			OperatingIncome:   models.Float(3000),
			NetIncome:         2400,
			IncomeTaxExpense:  600,
			Cash:              500,
			TotalDebt:         500,
			SharesOutstanding: 100,
		},
	}
}

func goldenConfig() assumption.Config {
	cfg := assumption.Config{}
	cfg.Projection.TerminalGrowthRate = 0.025
	cfg.Revenue.LongTermGrowthRate = 0.05
	cfg.Margins.OperatingMargin = 0.30
	cfg.Tax.EffectiveRate = 0.20
	cfg.CapitalIntensity = assumption.CapitalIntensity{
		CapexToRevenue:        0.05,
		DepreciationToRevenue: 0.03,
		NWCToRevenue:          0.02,
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestRunDCF_GoldenScenario(t *testing.T) {
	res, err := RunDCF(goldenConfig(), goldenFinancials(), 0.09, nil)
	if err != nil {
		t.Fatalf("RunDCF failed: %v", err)
	}

	y1 := res.Projection[0]
	if math.Abs(y1.Revenue-10500) > 1e-9 {
		t.Errorf("Expected year-1 revenue 10500, got %f", y1.Revenue)
	}
	if math.Abs(y1.EBIT-3150) > 1e-9 {
		t.Errorf("Expected year-1 EBIT 3150, got %f", y1.EBIT)
	}
	if math.Abs(y1.NOPAT-2520) > 1e-9 {
		t.Errorf("Expected year-1 NOPAT 2520, got %f", y1.NOPAT)
	}
	// 2520 - 10500*(0.05-0.03) - 0.02*500
	if math.Abs(y1.FCFF-2300) > 1e-9 {
		t.Errorf("Expected year-1 FCFF 2300, got %f", y1.FCFF)
	}

	y10 := res.Projection[9]
	if math.Abs(y10.Revenue-16288.95) > 0.01 {
		t.Errorf("Expected year-10 revenue ~16288.95, got %f", y10.Revenue)
	}

	if math.Abs(res.TerminalValue-56265.481) > 0.01 {
		t.Errorf("Expected TV ~56265.481, got %f", res.TerminalValue)
	}
	if math.Abs(res.EV.PVExplicit-17936.395) > 0.01 {
		t.Errorf("Expected PV explicit ~17936.395, got %f", res.EV.PVExplicit)
	}
	if math.Abs(res.EV.EnterpriseValue-41703.542) > 0.01 {
		t.Errorf("Expected EV ~41703.542, got %f", res.EV.EnterpriseValue)
	}
	if math.Abs(res.EV.TerminalPct-56.99) > 0.01 {
		t.Errorf("Expected terminal share ~56.99%%, got %f", res.EV.TerminalPct)
	}
	if res.Equity.NetDebt != 0 {
		t.Errorf("Expected zero net debt, got %f", res.Equity.NetDebt)
	}
	if math.Abs(res.Equity.ValuePerShare-417.035) > 0.001 {
		t.Errorf("Expected VPS ~417.035, got %f", res.Equity.ValuePerShare)
	}
	if res.Market != nil {
		t.Errorf("Expected no market comparison without market data")
	}
}

func TestRunDCF_Idempotent(t *testing.T) {
	cfg := goldenConfig()
	cfg.Revenue.NearTermGrowthRates = []float64{0.12, 0.10}
	fin := goldenFinancials()

	a, err := RunDCF(cfg, fin, 0.09, nil)
	if err != nil {
		t.Fatal(err)
	}
	b, err := RunDCF(cfg, fin, 0.09, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Expected identical results for identical inputs")
	}
}

func TestRunDCF_MarketComparison(t *testing.T) {
	cfg := goldenConfig()
	cfg.Market.FXToReporting = 0.5
	market := &models.MarketData{Ticker: "GLD", MarketCap: 60000}

	res, err := RunDCF(cfg, goldenFinancials(), 0.09, market)
	if err != nil {
		t.Fatal(err)
	}
	if res.Market == nil {
		t.Fatal("Expected market comparison")
	}
	// 60000 * 0.5 / 100 shares
	if math.Abs(res.Market.MarketPrice-300) > 1e-9 {
		t.Errorf("Expected market price 300, got %f", res.Market.MarketPrice)
	}
	want := res.Equity.ValuePerShare/300 - 1
	if math.Abs(res.Market.Upside-want) > 1e-12 {
		t.Errorf("Expected upside %f, got %f", want, res.Market.Upside)
	}
}

func TestRunDCF_PropagatesTerminalGrowthError(t *testing.T) {
	cfg := goldenConfig()
	cfg.Projection.TerminalGrowthRate = 0.09

	_, err := RunDCF(cfg, goldenFinancials(), 0.09, nil)
	if !errors.Is(err, ErrTerminalGrowthAboveWACC) {
		t.Fatalf("Expected ErrTerminalGrowthAboveWACC, got %v", err)
	}
}

func TestRunDCF_NoFinancials(t *testing.T) {
	_, err := RunDCF(goldenConfig(), nil, 0.09, nil)
	if !errors.Is(err, ErrNoFinancials) {
		t.Fatalf("Expected ErrNoFinancials, got %v", err)
	}
}

func TestTerminalValue(t *testing.T) {
	tv, err := TerminalValue(100, 0, 0.08)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(tv-1250) > 1e-9 {
		t.Errorf("Expected TV(g=0) = fcff/wacc = 1250, got %f", tv)
	}

	// Strictly increasing in g below wacc
	prev := tv
	for _, g := range []float64{0.01, 0.03, 0.05, 0.07, 0.079} {
		v, err := TerminalValue(100, g, 0.08)
		if err != nil {
			t.Fatal(err)
		}
		if v <= prev {
			t.Errorf("Expected TV to increase at g=%.3f: %f <= %f", g, v, prev)
		}
		prev = v
	}

	for _, fcff := range []float64{-50, 0, 100} {
		for _, g := range []float64{0.08, 0.10} {
			if _, err := TerminalValue(fcff, g, 0.08); !errors.Is(err, ErrTerminalGrowthAboveWACC) {
				t.Errorf("Expected error for fcff=%.0f g=%.2f, got %v", fcff, g, err)
			}
		}
	}
}

func TestEnterpriseValue_ZeroEV(t *testing.T) {
	ev := EnterpriseValue([]float64{-100, 50}, 0.1, 0, 2)
	if ev.EnterpriseValue >= 0 {
		t.Fatalf("Expected negative EV, got %f", ev.EnterpriseValue)
	}
	if ev.TerminalPct != 0 {
		t.Errorf("Expected terminal share 0 for EV <= 0, got %f", ev.TerminalPct)
	}
	if len(ev.DiscountFactors) != 2 || math.Abs(ev.DiscountFactors[1]-1/1.21) > 1e-12 {
		t.Errorf("Unexpected discount factors %v", ev.DiscountFactors)
	}
}

func TestEquityValuePerShare(t *testing.T) {
	b := EquityValuePerShare(1000, 200, 100)
	if b.EquityValue != 800 {
		t.Errorf("Expected equity 800, got %f", b.EquityValue)
	}
	if b.ValuePerShare != 8.0 {
		t.Errorf("Expected VPS 8.0, got %f", b.ValuePerShare)
	}

	// Net cash adds to equity
	nc := EquityValuePerShare(1000, -200, 100)
	if nc.EquityValue != 1200 {
		t.Errorf("Expected equity 1200 with net cash, got %f", nc.EquityValue)
	}
}
