package synth

import (
	"fmt"
	"maps"
	"slices"

	"github.com/nvandessel/battsim/internal/models"
)

// ColumnInfo is a readable view of one schema column.
type ColumnInfo struct {
	Name      string `json:"name"`
	Precision int    `json:"precision"`
	Integer   bool   `json:"integer,omitempty"`
	Range     string `json:"range"`
}

// ScenarioInfo is a readable view of an overlap scenario.
type ScenarioInfo struct {
	Name        string            `json:"name"`
	Probability float64           `json:"probability"`
	Overrides   map[string]string `json:"overrides"`
}

// ClassInfo is a readable view of one class profile.
type ClassInfo struct {
	Label     int               `json:"label"`
	Name      string            `json:"name"`
	Prior     float64           `json:"prior"`
	Features  map[string]string `json:"features"`
	Scenarios []ScenarioInfo    `json:"scenarios,omitempty"`
}

// Description summarizes a domain's schema and generative profile.
type Description struct {
	Domain       models.Domain `json:"domain"`
	FilePrefix   string        `json:"file_prefix"`
	LabelColumn  string        `json:"label_column"`
	Columns      []ColumnInfo  `json:"columns"`
	Classes      []ClassInfo   `json:"classes"`
	Fault        string        `json:"fault"`
	MislabelProb float64       `json:"mislabel_prob"`
	Boundary     *Boundary     `json:"boundary,omitempty"`
}

// Describe returns the description of d's schema and profile.
func Describe(d Domain) Description {
	schema := d.Schema()
	p := d.Profile()

	desc := Description{
		Domain:       schema.Domain,
		FilePrefix:   schema.Domain.FilePrefix(),
		LabelColumn:  schema.LabelColumn,
		Fault:        fmt.Sprintf("%s ±%g with p=%g", p.Fault.Feature, p.Fault.Magnitude, p.Fault.Probability),
		MislabelProb: p.MislabelProb,
		Boundary:     p.Boundary,
	}
	for _, c := range schema.Columns {
		desc.Columns = append(desc.Columns, ColumnInfo{
			Name:      c.Name,
			Precision: c.Precision,
			Integer:   c.Integer,
			Range:     columnRange(c),
		})
	}
	for i, cp := range p.Classes {
		ci := ClassInfo{
			Label:    cp.Label,
			Name:     cp.Name,
			Prior:    p.Prior[i],
			Features: distStrings(cp.Features),
		}
		for _, s := range cp.Scenarios {
			ci.Scenarios = append(ci.Scenarios, ScenarioInfo{
				Name:        s.Name,
				Probability: s.Probability,
				Overrides:   distStrings(s.Overrides),
			})
		}
		desc.Classes = append(desc.Classes, ci)
	}
	return desc
}

// FeatureNames returns the class feature names, sorted.
func (d Description) FeatureNames() []string {
	if len(d.Classes) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(d.Classes[0].Features))
}

func distStrings(m map[string]Dist) map[string]string {
	out := make(map[string]string, len(m))
	for k, d := range m {
		out[k] = d.String()
	}
	return out
}

func columnRange(c models.Column) string {
	var lo string
	switch c.Bound {
	case models.BoundClip:
		lo = fmt.Sprintf(">= %g", c.Floor)
	case models.BoundAbs:
		lo = "magnitude"
	default:
		lo = "unbounded"
	}
	if c.HasCeiling {
		return fmt.Sprintf("%s, <= %g", lo, c.Ceiling)
	}
	return lo
}
