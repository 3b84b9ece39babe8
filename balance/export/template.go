package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
)

var ErrInvalidName = errors.New("invalid part name")

// RecordError reports a record that could not be written.
type RecordError struct {
	Name string
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("part %q: %v", e.Name, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// RecordErrors returns the per-record failures combined in err.
func RecordErrors(err error) []*RecordError {
	var out []*RecordError
	for _, e := range multierr.Errors(err) {
		var re *RecordError
		if errors.As(e, &re) {
			out = append(out, re)
		}
	}
	return out
}

// Template renders one config file per record.
type Template struct {
	text   string
	digits int
}

// NewTemplate returns a template for text with values rounded to digits
// significant digits.
func NewTemplate(text string, digits int) *Template {
	return &Template{text: text, digits: digits}
}

// LoadTemplate reads a template from path.
func LoadTemplate(path string, digits int) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	return NewTemplate(string(data), digits), nil
}

// Render substitutes the record's values into the template.
func (t *Template) Render(r Record) string {
	replacer := strings.NewReplacer(
		"$NAME$", r.Name,
		"$MODULE$", r.Module,
		"$INDEX$", formatIndex(r.Index),
		"$MASS$", formatValue(r.Stats.Mass, t.digits),
		"$THRUST$", formatValue(r.Stats.Thrust, t.digits),
		"$VACISP$", formatValue(r.Stats.VacIsp, t.digits),
		"$ATMISP$", formatValue(r.Stats.AtmIsp, t.digits),
	)
	return replacer.Replace(t.text)
}

// FileName is the file a record is written to: <name>.cfg, or
// <name>_<index>.cfg for indexed parts.
func FileName(r Record) (string, error) {
	if r.Name == "" || r.Name == "." || r.Name == ".." || strings.ContainsAny(r.Name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, r.Name)
	}
	if r.Index != nil {
		return fmt.Sprintf("%s_%d.cfg", r.Name, *r.Index), nil
	}
	return r.Name + ".cfg", nil
}

// WriteFiles renders every record into dir, creating it if needed, and
// returns the paths written. A record that cannot be written is skipped and
// its *RecordError is combined into the returned error; the other records
// are still written. Failing to create dir is returned on its own.
func (t *Template) WriteFiles(dir string, records []Record) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var errs error
	paths := make([]string, 0, len(records))
	for _, r := range records {
		name, err := FileName(r)
		if err != nil {
			errs = multierr.Append(errs, &RecordError{Name: r.Name, Err: err})
			continue
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(t.Render(r)), 0644); err != nil {
			errs = multierr.Append(errs, &RecordError{Name: r.Name, Err: err})
			continue
		}
		paths = append(paths, path)
	}
	return paths, errs
}
