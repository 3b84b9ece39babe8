package export

import (
	"math"
	"strconv"

	"github.com/wricardo/ksp-balance/balance/batch"
	"github.com/wricardo/ksp-balance/balance/engine"
)

// DefaultDigits is the number of significant digits used when none is given.
const DefaultDigits = 4

// Record is one derived part ready for export.
type Record struct {
	Name   string
	Module string
	Index  *int
	Stats  engine.EngineStats
}

// FromResults keeps the successful results of a batch, in order.
func FromResults(results []batch.Result) []Record {
	records := make([]Record, 0, len(results))
	for _, r := range results {
		if !r.OK() {
			continue
		}
		records = append(records, Record{
			Name:   r.Row.Name,
			Module: r.Row.Module,
			Index:  r.Row.Index,
			Stats:  *r.Stats,
		})
	}
	return records
}

// Round rounds v to the given number of significant digits. Non-finite
// values and zero are returned unchanged.
func Round(v float64, digits int) float64 {
	if digits <= 0 {
		digits = DefaultDigits
	}
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(v, 'g', digits, 64), 64)
	if err != nil {
		return v
	}
	return rounded
}

// formatValue renders a rounded value without exponent notation.
func formatValue(v float64, digits int) string {
	return strconv.FormatFloat(Round(v, digits), 'f', -1, 64)
}

func formatIndex(index *int) string {
	if index == nil {
		return ""
	}
	return strconv.Itoa(*index)
}
