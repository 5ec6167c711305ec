package report

import (
	"io"

	"github.com/gocarina/gocsv"

	"dcf_valuation/pkg/core/sensitivity"
	"dcf_valuation/pkg/core/valuation"
)

// CellRecord is one cell of a two-way table in long form.
type CellRecord struct {
	Table  string              `csv:"table"`
	ParamX valuation.ParamName `csv:"param_x"`
	X      float64             `csv:"x"`
	ParamY valuation.ParamName `csv:"param_y"`
	Y      float64             `csv:"y"`
	Value  float64             `csv:"value_per_share"`
}

// Cells flattens tables into long-form records.
func Cells(tables []*sensitivity.Table) []*CellRecord {
	var out []*CellRecord
	for _, t := range tables {
		for i, x := range t.XValues {
			for j, y := range t.YValues {
				out = append(out, &CellRecord{
					Table:  t.Name,
					ParamX: t.ParamX,
					X:      x,
					ParamY: t.ParamY,
					Y:      y,
					Value:  t.Values[i][j],
				})
			}
		}
	}
	return out
}

// WriteTablesCSV writes sensitivity tables in long form.
func WriteTablesCSV(w io.Writer, tables []*sensitivity.Table) error {
	return gocsv.Marshal(Cells(tables), w)
}

// WriteTornadoCSV writes tornado records in ranked order.
func WriteTornadoCSV(w io.Writer, records []sensitivity.TornadoRecord) error {
	return gocsv.Marshal(records, w)
}

// WriteProjectionCSV writes the explicit-period projection.
func WriteProjectionCSV(w io.Writer, rows []valuation.ProjectionRow) error {
	return gocsv.Marshal(rows, w)
}
