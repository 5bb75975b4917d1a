package models

import (
	"fmt"
	"math"
	"strconv"
)

// Bound selects how a raw value is brought into its physical range.
type Bound int

const (
	BoundClip Bound = iota // max(floor, v)
	BoundAbs               // |v|, magnitudes of signed measurements
	BoundNone              // physically unbounded, must still be finite
)

// Column describes one feature column of a dataset.
type Column struct {
	Name      string `json:"name" yaml:"name"`
	Precision int    `json:"precision" yaml:"precision"`
	Integer   bool   `json:"integer,omitempty" yaml:"integer,omitempty"`
	Bound     Bound  `json:"bound" yaml:"bound"`

	// Floor applies when Bound is BoundClip.
	Floor float64 `json:"floor" yaml:"floor"`

	// Ceiling applies when HasCeiling is set.
	Ceiling    float64 `json:"ceiling,omitempty" yaml:"ceiling,omitempty"`
	HasCeiling bool    `json:"has_ceiling,omitempty" yaml:"has_ceiling,omitempty"`
}

// Float returns a column clipped at zero and rounded to precision decimals.
func Float(name string, precision int) Column {
	return Column{Name: name, Precision: precision, Bound: BoundClip}
}

// Count returns a non-negative integer column.
func Count(name string) Column {
	return Column{Name: name, Integer: true, Bound: BoundClip}
}

// Min returns a copy of c clipped at floor instead of zero.
func (c Column) Min(floor float64) Column {
	c.Bound = BoundClip
	c.Floor = floor
	return c
}

// Max returns a copy of c with a ceiling.
func (c Column) Max(ceiling float64) Column {
	c.Ceiling = ceiling
	c.HasCeiling = true
	return c
}

// Abs returns a copy of c that stores magnitudes.
func (c Column) Abs() Column {
	c.Bound = BoundAbs
	return c
}

// Unbounded returns a copy of c with no floor.
func (c Column) Unbounded() Column {
	c.Bound = BoundNone
	return c
}

// NonNegative reports whether every stored value of c is >= 0.
func (c Column) NonNegative() bool {
	switch c.Bound {
	case BoundAbs:
		return true
	case BoundClip:
		return c.Floor >= 0
	}
	return false
}

// Finalize applies the column bound and rounding to a raw value.
// Integer columns truncate toward zero after bounding.
func (c Column) Finalize(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("column %s: non-finite value %v", c.Name, v)
	}

	switch c.Bound {
	case BoundClip:
		v = math.Max(c.Floor, v)
	case BoundAbs:
		v = math.Abs(v)
	}
	if c.HasCeiling {
		v = math.Min(c.Ceiling, v)
	}

	if c.Integer {
		return math.Trunc(v), nil
	}
	return Round(v, c.Precision), nil
}

// Format renders v the way it is stored on disk.
func (c Column) Format(v float64) string {
	if c.Integer {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', c.Precision, 64)
}

// Parse reads a stored value back.
func (c Column) Parse(s string) (float64, error) {
	if c.Integer {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("column %s: %w", c.Name, err)
		}
		return float64(n), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", c.Name, err)
	}
	return v, nil
}

// Round rounds v half away from zero to the given number of decimals.
func Round(v float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(v)
	}
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}

// Schema is the fixed column layout of one domain's dataset.
// The label column always comes last on disk.
type Schema struct {
	Domain      Domain   `json:"domain" yaml:"domain"`
	Columns     []Column `json:"columns" yaml:"columns"`
	LabelColumn string   `json:"label_column" yaml:"label_column"`

	// ClassNames is indexed by label id.
	ClassNames []string `json:"class_names" yaml:"class_names"`
}

// NumClasses returns the size of the label set.
func (s Schema) NumClasses() int {
	return len(s.ClassNames)
}

// ValidLabel reports whether label is in the domain's label set.
func (s Schema) ValidLabel(label int) bool {
	return label >= 0 && label < len(s.ClassNames)
}

// ClassName returns the human name of a label, or its number when unknown.
func (s Schema) ClassName(label int) string {
	if s.ValidLabel(label) {
		return s.ClassNames[label]
	}
	return strconv.Itoa(label)
}

// Header returns the on-disk column names, label last.
func (s Schema) Header() []string {
	h := make([]string, 0, len(s.Columns)+1)
	for _, c := range s.Columns {
		h = append(h, c.Name)
	}
	return append(h, s.LabelColumn)
}

// ColumnIndex returns the position of a feature column, or -1.
func (s Schema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// MatchesHeader reports whether header is exactly this schema's layout.
func (s Schema) MatchesHeader(header []string) bool {
	want := s.Header()
	if len(header) != len(want) {
		return false
	}
	for i := range want {
		if header[i] != want[i] {
			return false
		}
	}
	return true
}

// FinalizeRow bounds and rounds raw values keyed by column name into
// schema order. Every column must be present.
func (s Schema) FinalizeRow(raw map[string]float64) ([]float64, error) {
	out := make([]float64, len(s.Columns))
	for i, c := range s.Columns {
		v, ok := raw[c.Name]
		if !ok {
			return nil, fmt.Errorf("column %s: no value produced", c.Name)
		}
		fv, err := c.Finalize(v)
		if err != nil {
			return nil, err
		}
		out[i] = fv
	}
	return out, nil
}
