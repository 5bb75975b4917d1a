package dataset

import (
	"fmt"
	"math"

	"github.com/nvandessel/battsim/internal/models"
)

// MaxIssues caps how many issues a report keeps. Further issues are only counted.
const MaxIssues = 100

// Issue describes one value that violates the schema.
type Issue struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Value   string `json:"value"`
	Problem string `json:"problem"` // "non-finite", "below-floor", "above-ceiling", "not-integer", "precision", "label", "width"
}

// String returns a human-readable description of the issue.
func (i Issue) String() string {
	return fmt.Sprintf("row %d: %s in %s (value %s)", i.Row, i.Problem, i.Column, i.Value)
}

// Report is the outcome of validating a dataset.
type Report struct {
	Domain      models.Domain `json:"domain"`
	Rows        int           `json:"rows"`
	LabelCounts []int         `json:"label_counts"`
	Issues      []Issue       `json:"issues,omitempty"`

	// TotalIssues counts every issue, including those beyond MaxIssues.
	TotalIssues int `json:"total_issues"`
}

// OK reports whether no issues were found.
func (r *Report) OK() bool {
	return r.TotalIssues == 0
}

func (r *Report) add(i Issue) {
	r.TotalIssues++
	if len(r.Issues) < MaxIssues {
		r.Issues = append(r.Issues, i)
	}
}

// Validate checks every value of ds against its schema: finiteness,
// bounds, integrality, stored precision and the label set.
func Validate(ds *models.Dataset) *Report {
	schema := ds.Schema
	r := &Report{Domain: schema.Domain, Rows: ds.Len(), LabelCounts: ds.LabelCounts()}

	for row, s := range ds.Samples {
		if len(s.Features) != len(schema.Columns) {
			r.add(Issue{Row: row, Column: "*", Value: fmt.Sprint(len(s.Features)), Problem: "width"})
			continue
		}
		for i, c := range schema.Columns {
			if p := checkValue(c, s.Features[i]); p != "" {
				r.add(Issue{Row: row, Column: c.Name, Value: fmt.Sprint(s.Features[i]), Problem: p})
			}
		}
		if !schema.ValidLabel(s.Label) {
			r.add(Issue{Row: row, Column: schema.LabelColumn, Value: fmt.Sprint(s.Label), Problem: "label"})
		}
	}
	return r
}

func checkValue(c models.Column, v float64) string {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return "non-finite"
	case c.Bound == models.BoundClip && v < c.Floor:
		return "below-floor"
	case c.Bound == models.BoundAbs && v < 0:
		return "below-floor"
	case c.HasCeiling && v > c.Ceiling:
		return "above-ceiling"
	case c.Integer && v != math.Trunc(v):
		return "not-integer"
	case !c.Integer && v != models.Round(v, c.Precision):
		return "precision"
	}
	return ""
}

// ValidateFile reads and validates a dataset file. Files that cannot be
// parsed against any schema are returned as errors, not issues.
func ValidateFile(path string) (*Report, error) {
	ds, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Validate(ds), nil
}
