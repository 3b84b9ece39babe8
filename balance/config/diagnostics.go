package config

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/wricardo/ksp-balance/balance/engine"
)

var (
	ErrMissingField      = errors.New("missing field")
	ErrInvalidField      = errors.New("invalid field")
	ErrInvalidEntry      = errors.New("invalid entry")
	ErrUnknownTech       = errors.New("unknown tech")
	ErrTechNotFound      = errors.New("tech not found")
	ErrConfigNotFound    = errors.New("configuration not found")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// Kind classifies a loading diagnostic.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindReference     Kind = "reference"
	KindDomain        Kind = "domain"
)

// Diagnostic reports one rejected entry or field.
type Diagnostic struct {
	Kind    Kind
	Source  string
	Section string
	Field   string
	Err     error
}

func (d Diagnostic) Error() string {
	if d.Field != "" {
		return fmt.Sprintf("%s: [%s] %s: %v", d.Source, d.Section, d.Field, d.Err)
	}
	return fmt.Sprintf("%s: [%s]: %v", d.Source, d.Section, d.Err)
}

func (d Diagnostic) Unwrap() error { return d.Err }

// MarshalJSON renders the wrapped error as a message.
func (d Diagnostic) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    Kind   `json:"kind"`
		Source  string `json:"source"`
		Section string `json:"section"`
		Field   string `json:"field,omitempty"`
		Error   string `json:"error"`
	}{d.Kind, d.Source, d.Section, d.Field, d.Err.Error()})
}

// Diagnostics is the ordered list of problems found while loading.
type Diagnostics []Diagnostic

// Err combines every diagnostic into one error, or nil when there are none.
func (ds Diagnostics) Err() error {
	var err error
	for _, d := range ds {
		err = multierr.Append(err, d)
	}
	return err
}

// Sections returns the distinct sections that were rejected, in order.
func (ds Diagnostics) Sections() []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range ds {
		key := d.Source + "\x00" + d.Section
		if !seen[key] {
			seen[key] = true
			out = append(out, d.Section)
		}
	}
	return out
}

// kindOf classifies a curve construction error.
func kindOf(err error) Kind {
	if errors.Is(err, engine.ErrDomain) {
		return KindDomain
	}
	return KindConfiguration
}
