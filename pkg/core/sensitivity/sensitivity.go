// Package sensitivity sweeps a scalar valuation over one or two parameters.
// It depends only on the valuation function shape, not on how the value
// is produced.
package sensitivity

import (
	"fmt"
	"math"
	"sort"

	"dcf_valuation/pkg/core/valuation"
)

// Func is any scalar valuation of a parameter set.
type Func func(valuation.Params) (float64, error)

// Table is a two-way grid: Values[i][j] = f(base with X=XValues[i], Y=YValues[j]).
type Table struct {
	Name    string              `json:"name,omitempty"`
	ParamX  valuation.ParamName `json:"param_x"`
	ParamY  valuation.ParamName `json:"param_y"`
	XValues []float64           `json:"x_values"`
	YValues []float64           `json:"y_values"`
	Values  [][]float64         `json:"values"`
}

// TwoWay evaluates f at every (x, y) pair. Ranges are used as given.
// The first failing cell aborts the sweep.
func TwoWay(f Func, base valuation.Params, paramX valuation.ParamName, xs []float64, paramY valuation.ParamName, ys []float64) (*Table, error) {
	t := &Table{
		ParamX:  paramX,
		ParamY:  paramY,
		XValues: append([]float64(nil), xs...),
		YValues: append([]float64(nil), ys...),
		Values:  make([][]float64, len(xs)),
	}
	for i, x := range xs {
		t.Values[i] = make([]float64, len(ys))
		px, err := base.With(paramX, x)
		if err != nil {
			return nil, err
		}
		for j, y := range ys {
			p, err := px.With(paramY, y)
			if err != nil {
				return nil, err
			}
			v, err := f(p)
			if err != nil {
				return nil, fmt.Errorf("%s=%.4f %s=%.4f: %w", paramX, x, paramY, y, err)
			}
			t.Values[i][j] = v
		}
	}
	return t, nil
}

// TornadoSpec is one parameter's low/high test values.
type TornadoSpec struct {
	Param valuation.ParamName `json:"param"`
	Low   float64             `json:"low"`
	High  float64             `json:"high"`
}

// TornadoRecord is one bar of a tornado chart.
type TornadoRecord struct {
	Param      valuation.ParamName `json:"param" csv:"parameter"`
	BaseValue  float64             `json:"base_value" csv:"base_value"`
	LowValue   float64             `json:"low_value" csv:"low_value"`
	HighValue  float64             `json:"high_value" csv:"high_value"`
	LowResult  float64             `json:"low_result" csv:"low_result"`
	HighResult float64             `json:"high_result" csv:"high_result"`
	BaseResult float64             `json:"base_result" csv:"base_result"`
	Swing      float64             `json:"swing" csv:"swing"`
}

// Tornado moves each parameter to its low then high value with all others
// at base, and returns records ordered by swing, largest first. Records
// whose swing is NaN sort last.
func Tornado(f Func, base valuation.Params, specs []TornadoSpec) ([]TornadoRecord, error) {
	baseResult, err := f(base)
	if err != nil {
		return nil, fmt.Errorf("base case: %w", err)
	}

	records := make([]TornadoRecord, 0, len(specs))
	for _, s := range specs {
		baseValue, err := base.Get(s.Param)
		if err != nil {
			return nil, err
		}
		low, err := evalAt(f, base, s.Param, s.Low)
		if err != nil {
			return nil, err
		}
		high, err := evalAt(f, base, s.Param, s.High)
		if err != nil {
			return nil, err
		}
		records = append(records, TornadoRecord{
			Param:      s.Param,
			BaseValue:  baseValue,
			LowValue:   s.Low,
			HighValue:  s.High,
			LowResult:  low,
			HighResult: high,
			BaseResult: baseResult,
			Swing:      math.Abs(high - low),
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].Swing, records[j].Swing
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b
	})
	return records, nil
}

func evalAt(f Func, base valuation.Params, name valuation.ParamName, v float64) (float64, error) {
	p, err := base.With(name, v)
	if err != nil {
		return 0, err
	}
	out, err := f(p)
	if err != nil {
		return 0, fmt.Errorf("%s=%.4f: %w", name, v, err)
	}
	return out, nil
}
