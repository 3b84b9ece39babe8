package batch

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	ErrMalformedRow = errors.New("malformed row")
)

// Row is one part to derive.
type Row struct {
	Name   string  `json:"name"`
	Size   float64 `json:"size"`
	Config string  `json:"config"`
	Module string  `json:"module"`
	Index  *int    `json:"index,omitempty"`
	Line   int     `json:"line,omitempty"`
}

// RowError reports a row that could not be read.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

type rowErrorJSON struct {
	Line  int    `json:"line,omitempty"`
	Error string `json:"error"`
}

// MarshalJSON renders the wrapped error as a message.
func (e RowError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(rowErrorJSON{Line: e.Line, Error: msg})
}

// UnmarshalJSON restores a RowError written by MarshalJSON. The error
// keeps its message but loses its identity.
func (e *RowError) UnmarshalJSON(data []byte) error {
	var v rowErrorJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	e.Line = v.Line
	e.Err = errors.New(v.Error)
	return nil
}

// ReadRows reads a CSV part list. Rows that fail to parse are returned as
// RowErrors; a read error on the underlying stream ends the list early and
// is reported as the last RowError.
func ReadRows(r io.Reader) ([]Row, []RowError) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		rows []Row
		errs []RowError
	)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				errs = append(errs, RowError{Line: parseErr.Line, Err: fmt.Errorf("%w: %v", ErrMalformedRow, parseErr.Err)})
				continue
			}
			errs = append(errs, RowError{Err: err})
			break
		}
		line, _ := reader.FieldPos(0)

		if len(rows) == 0 && len(errs) == 0 && strings.EqualFold(strings.TrimSpace(record[0]), "name") {
			continue
		}

		row, err := parseRow(record)
		if err != nil {
			errs = append(errs, RowError{Line: line, Err: err})
			continue
		}
		row.Line = line
		rows = append(rows, row)
	}
	return rows, errs
}

func parseRow(record []string) (Row, error) {
	if len(record) < 4 || len(record) > 5 {
		return Row{}, fmt.Errorf("%w: want 4 or 5 columns, got %d", ErrMalformedRow, len(record))
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	row := Row{Name: record[0], Config: record[2], Module: record[3]}
	if row.Name == "" {
		return Row{}, fmt.Errorf("%w: empty name", ErrMalformedRow)
	}
	if row.Config == "" {
		return Row{}, fmt.Errorf("%w: empty config", ErrMalformedRow)
	}

	size, err := strconv.ParseFloat(record[1], 64)
	if err != nil {
		return Row{}, fmt.Errorf("%w: size %q is not a number", ErrMalformedRow, record[1])
	}
	row.Size = size

	if len(record) == 5 && record[4] != "" {
		index, err := strconv.Atoi(record[4])
		if err != nil {
			return Row{}, fmt.Errorf("%w: index %q is not an integer", ErrMalformedRow, record[4])
		}
		row.Index = &index
	}
	return row, nil
}
