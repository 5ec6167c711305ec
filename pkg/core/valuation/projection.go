package valuation

import "math"

// ProjectionInput drives the FCFF projector.
// OperatingMargins may hold one value (broadcast) or one per year; a short
// slice repeats its last value.
type ProjectionInput struct {
	BaseRevenue           float64
	GrowthRates           []float64
	OperatingMargins      []float64
	TaxRate               float64
	CapexToRevenue        float64
	DepreciationToRevenue float64
	NWCToRevenue          float64
}

// ProjectionRow is one forecast year.
type ProjectionRow struct {
	Year            int     `json:"year" csv:"year"`
	Revenue         float64 `json:"revenue" csv:"revenue"`
	Growth          float64 `json:"growth" csv:"growth"`
	OperatingMargin float64 `json:"operating_margin" csv:"operating_margin"`
	EBIT            float64 `json:"ebit" csv:"ebit"`
	NOPAT           float64 `json:"nopat" csv:"nopat"`
	Capex           float64 `json:"capex" csv:"capex"`
	Depreciation    float64 `json:"depreciation" csv:"depreciation"`
	NetCapex        float64 `json:"net_capex" csv:"net_capex"`
	DeltaNWC        float64 `json:"delta_nwc" csv:"delta_nwc"`
	FCFF            float64 `json:"fcff" csv:"fcff"`
}

// ProjectFCF builds the year-by-year FCFF table. Inputs are not validated;
// NaNs propagate into the output.
func ProjectFCF(in ProjectionInput) []ProjectionRow {
	rows := make([]ProjectionRow, 0, len(in.GrowthRates))
	prev := in.BaseRevenue

	for i, g := range in.GrowthRates {
		margin := marginAt(in.OperatingMargins, i)

		// 1. Revenue and operating profit
		rev := prev * (1 + g)
		ebit := rev * margin
		nopat := ebit * (1 - in.TaxRate)

		// 2. Reinvestment
		capex := rev * in.CapexToRevenue
		dep := rev * in.DepreciationToRevenue
		netCapex := capex - dep
		deltaNWC := in.NWCToRevenue * (rev - prev)

		rows = append(rows, ProjectionRow{
			Year:            i + 1,
			Revenue:         rev,
			Growth:          g,
			OperatingMargin: margin,
			EBIT:            ebit,
			NOPAT:           nopat,
			Capex:           capex,
			Depreciation:    dep,
			NetCapex:        netCapex,
			DeltaNWC:        deltaNWC,
			FCFF:            nopat - netCapex - deltaNWC,
		})
		prev = rev
	}
	return rows
}

func marginAt(margins []float64, i int) float64 {
	switch {
	case len(margins) == 0:
		return math.NaN()
	case i < len(margins):
		return margins[i]
	default:
		return margins[len(margins)-1]
	}
}

// FCFFSeries extracts the FCFF column.
func FCFFSeries(rows []ProjectionRow) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.FCFF
	}
	return out
}
