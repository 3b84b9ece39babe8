package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/ksp-balance/balance/engine"
)

// Field names shared by both file formats.
const (
	FieldOptimalTmr           = "optimalTmr"
	FieldTmrScaling           = "tmrScaling"
	FieldMaxIsp               = "maxIsp"
	FieldMinIsp               = "minIsp"
	FieldExponent             = "exponent"
	FieldAtmosphereMultiplier = "atmosphereMultiplier"

	FieldTech              = "tech"
	FieldBaseMass          = "baseMass"
	FieldBaseSize          = "baseSize"
	FieldBaseTmrMultiplier = "baseTmrMultiplier"
	FieldSizeMassExponent  = "sizeMassExponent"
	FieldSizeTmrExponent   = "sizeTmrExponent"
)

// Tier is a named technology tier.
type Tier struct {
	Name  string
	Curve engine.TechCurve
}

// SizedConfig is a named size curve together with the name of the tier it
// was built on.
type SizedConfig struct {
	Name  string
	Tech  string
	Curve engine.SizeCurve
}

// entry is one section of a source file with lower-cased keys. err is set
// when the section could not be read as a set of fields.
type entry struct {
	name   string
	fields map[string]string
	err    error
}

func (e entry) diagnostic(source string) Diagnostic {
	return Diagnostic{Kind: KindConfiguration, Source: source, Section: e.name, Err: e.err}
}

// ParseTechs parses a tech tier file. Entries that fail are skipped and
// reported in the returned Diagnostics. The error is non-nil only when the
// file as a whole cannot be parsed.
func ParseTechs(source string, data []byte) (map[string]engine.TechCurve, Diagnostics, error) {
	entries, err := readEntries(source, data)
	if err != nil {
		return nil, nil, err
	}

	techs := make(map[string]engine.TechCurve, len(entries))
	var diags Diagnostics
	for _, e := range entries {
		if e.err != nil {
			diags = append(diags, e.diagnostic(source))
			continue
		}
		r := fieldReader{source: source, entry: e}
		params := engine.TechParams{
			OptimalTmr:           r.float(FieldOptimalTmr),
			TmrScaling:           r.float(FieldTmrScaling),
			MaxIsp:               r.float(FieldMaxIsp),
			MinIsp:               r.float(FieldMinIsp),
			Exponent:             r.float(FieldExponent),
			AtmosphereMultiplier: r.float(FieldAtmosphereMultiplier),
		}
		if len(r.diags) > 0 {
			diags = append(diags, r.diags...)
			continue
		}

		curve, err := engine.NewTechCurve(params)
		if err != nil {
			diags = append(diags, Diagnostic{Kind: kindOf(err), Source: source, Section: e.name, Err: err})
			continue
		}
		techs[e.name] = curve
	}
	return techs, diags, nil
}

// ParseConfigs parses a size-curve file, resolving each entry's tech against
// techs. The resolved tier is copied into the curve.
func ParseConfigs(source string, data []byte, techs map[string]engine.TechCurve) (map[string]SizedConfig, Diagnostics, error) {
	entries, err := readEntries(source, data)
	if err != nil {
		return nil, nil, err
	}

	configs := make(map[string]SizedConfig, len(entries))
	var diags Diagnostics
	for _, e := range entries {
		if e.err != nil {
			diags = append(diags, e.diagnostic(source))
			continue
		}
		r := fieldReader{source: source, entry: e}
		techName := r.text(FieldTech)
		params := engine.SizeParams{
			BaseMass:          r.float(FieldBaseMass),
			BaseSize:          r.float(FieldBaseSize),
			BaseTmrMultiplier: r.float(FieldBaseTmrMultiplier),
			SizeMassExponent:  r.float(FieldSizeMassExponent),
			SizeTmrExponent:   r.float(FieldSizeTmrExponent),
		}
		if len(r.diags) > 0 {
			diags = append(diags, r.diags...)
			continue
		}

		tech, ok := techs[techName]
		if !ok {
			diags = append(diags, Diagnostic{
				Kind:    KindReference,
				Source:  source,
				Section: e.name,
				Field:   FieldTech,
				Err:     fmt.Errorf("%w: %q", ErrUnknownTech, techName),
			})
			continue
		}

		curve, err := engine.NewSizeCurve(tech, params)
		if err != nil {
			diags = append(diags, Diagnostic{Kind: kindOf(err), Source: source, Section: e.name, Err: err})
			continue
		}
		configs[e.name] = SizedConfig{Name: e.name, Tech: techName, Curve: curve}
	}
	return configs, diags, nil
}

// fieldReader reads typed fields from an entry, collecting a diagnostic for
// every missing or malformed one.
type fieldReader struct {
	source string
	entry  entry
	diags  Diagnostics
}

func (r *fieldReader) lookup(field string) (string, bool) {
	v, ok := r.entry.fields[strings.ToLower(field)]
	if !ok {
		r.diags = append(r.diags, Diagnostic{
			Kind:    KindConfiguration,
			Source:  r.source,
			Section: r.entry.name,
			Field:   field,
			Err:     ErrMissingField,
		})
	}
	return v, ok
}

func (r *fieldReader) text(field string) string {
	v, ok := r.lookup(field)
	if !ok {
		return ""
	}
	v = strings.TrimSpace(v)
	if v == "" {
		r.diags = append(r.diags, Diagnostic{
			Kind:    KindConfiguration,
			Source:  r.source,
			Section: r.entry.name,
			Field:   field,
			Err:     fmt.Errorf("%w: empty value", ErrInvalidField),
		})
	}
	return v
}

func (r *fieldReader) float(field string) float64 {
	v, ok := r.lookup(field)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		r.diags = append(r.diags, Diagnostic{
			Kind:    KindConfiguration,
			Source:  r.source,
			Section: r.entry.name,
			Field:   field,
			Err:     fmt.Errorf("%w: %q is not a number", ErrInvalidField, v),
		})
		return 0
	}
	return f
}

// readEntries decodes source by extension into entries sorted by name.
func readEntries(source string, data []byte) ([]entry, error) {
	var (
		entries []entry
		err     error
	)
	switch strings.ToLower(filepath.Ext(source)) {
	case ".ini", ".cfg":
		entries, err = readINI(data)
	case ".yaml", ".yml":
		entries, err = readYAML(data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries, nil
}

func readINI(data []byte) ([]entry, error) {
	f, err := ini.LoadSources(ini.LoadOptions{InsensitiveKeys: true}, data)
	if err != nil {
		return nil, err
	}

	var entries []entry
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		entries = append(entries, entry{name: sec.Name(), fields: sec.KeysHash()})
	}
	return entries, nil
}

// readYAML decodes the top-level mapping and then each entry on its own, so
// an entry that is not a mapping only marks that entry.
func readYAML(data []byte) ([]entry, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	entries := make([]entry, 0, len(doc))
	for name, node := range doc {
		e := entry{name: name}
		var values map[string]any
		if node.Kind != yaml.MappingNode {
			e.err = fmt.Errorf("%w: line %d is not a mapping of fields", ErrInvalidEntry, node.Line)
		} else if err := node.Decode(&values); err != nil {
			e.err = fmt.Errorf("%w: %v", ErrInvalidEntry, err)
		} else {
			e.fields = make(map[string]string, len(values))
			for k, v := range values {
				if v == nil {
					continue
				}
				e.fields[strings.ToLower(k)] = fmt.Sprint(v)
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}
