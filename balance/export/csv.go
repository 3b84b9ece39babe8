package export

import (
	"encoding/csv"
	"io"
)

var csvHeader = []string{"name", "module", "index", "mass", "thrust", "vac_isp", "atm_isp"}

// CSVWriter writes records as CSV rows under a fixed header.
type CSVWriter struct {
	w      *csv.Writer
	digits int
}

// NewCSVWriter returns a writer rounding values to digits significant digits.
func NewCSVWriter(w io.Writer, digits int) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w), digits: digits}
}

// Write emits the header followed by one row per record and flushes.
func (cw *CSVWriter) Write(records []Record) error {
	if err := cw.w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Name,
			r.Module,
			formatIndex(r.Index),
			formatValue(r.Stats.Mass, cw.digits),
			formatValue(r.Stats.Thrust, cw.digits),
			formatValue(r.Stats.VacIsp, cw.digits),
			formatValue(r.Stats.AtmIsp, cw.digits),
		}
		if err := cw.w.Write(row); err != nil {
			return err
		}
	}
	cw.w.Flush()
	return cw.w.Error()
}
