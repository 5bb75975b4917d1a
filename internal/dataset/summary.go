package dataset

import (
	"math"
	"sort"

	"github.com/nvandessel/battsim/internal/models"
)

// FeatureStats summarizes one feature column.
type FeatureStats struct {
	Column string  `json:"column"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`

	// ClassMeans is indexed by stored label.
	ClassMeans []float64 `json:"class_means"`
}

// TraceStats counts generation events. Only present for traced datasets.
type TraceStats struct {
	Faulted   int            `json:"faulted"`
	Relabeled int            `json:"relabeled"`
	Changed   int            `json:"changed"`
	Scenarios map[string]int `json:"scenarios,omitempty"`
}

// Summary describes the shape of a dataset.
type Summary struct {
	Domain      models.Domain  `json:"domain"`
	Rows        int            `json:"rows"`
	ClassNames  []string       `json:"class_names"`
	LabelCounts []int          `json:"label_counts"`
	Features    []FeatureStats `json:"features"`
	Trace       *TraceStats    `json:"trace,omitempty"`
}

// LabelShare returns the fraction of rows with label, or 0 for an empty dataset.
func (s *Summary) LabelShare(label int) float64 {
	if s.Rows == 0 || label < 0 || label >= len(s.LabelCounts) {
		return 0
	}
	return float64(s.LabelCounts[label]) / float64(s.Rows)
}

// ScenarioNames returns the scenarios seen, sorted by name.
func (t *TraceStats) ScenarioNames() []string {
	names := make([]string, 0, len(t.Scenarios))
	for name := range t.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summarize computes label distribution and per-feature statistics.
func Summarize(ds *models.Dataset) *Summary {
	schema := ds.Schema
	k := schema.NumClasses()
	sum := &Summary{
		Domain:      schema.Domain,
		Rows:        ds.Len(),
		ClassNames:  schema.ClassNames,
		LabelCounts: ds.LabelCounts(),
	}

	for i, c := range schema.Columns {
		fs := FeatureStats{Column: c.Name, Min: math.Inf(1), Max: math.Inf(-1), ClassMeans: make([]float64, k)}
		var total, totalSq float64
		for _, s := range ds.Samples {
			v := s.Features[i]
			total += v
			totalSq += v * v
			fs.Min = math.Min(fs.Min, v)
			fs.Max = math.Max(fs.Max, v)
			if schema.ValidLabel(s.Label) {
				fs.ClassMeans[s.Label] += v
			}
		}
		if n := float64(ds.Len()); n > 0 {
			fs.Mean = total / n
			fs.Std = math.Sqrt(math.Max(0, totalSq/n-fs.Mean*fs.Mean))
		} else {
			fs.Min, fs.Max = 0, 0
		}
		for label := range fs.ClassMeans {
			if sum.LabelCounts[label] > 0 {
				fs.ClassMeans[label] /= float64(sum.LabelCounts[label])
			}
		}
		sum.Features = append(sum.Features, fs)
	}

	if ds.Traced {
		ts := &TraceStats{Scenarios: map[string]int{}}
		for _, s := range ds.Samples {
			if s.Trace.Faulted {
				ts.Faulted++
			}
			if s.Trace.Relabeled {
				ts.Relabeled++
			}
			if s.Label != s.Trace.SourceLabel {
				ts.Changed++
			}
			if s.Trace.Scenario != "" {
				ts.Scenarios[s.Trace.Scenario]++
			}
		}
		sum.Trace = ts
	}
	return sum
}
