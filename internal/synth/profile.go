package synth

import (
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/nvandessel/battsim/internal/models"
)

// Scenario is an overlap sub-mode of a class: with Probability the class
// borrows distributions that look like another class.
type Scenario struct {
	Name        string          `json:"name" yaml:"name"`
	Probability float64         `json:"probability" yaml:"probability"`
	Overrides   map[string]Dist `json:"overrides" yaml:"overrides"`
}

// ClassProfile holds the base feature distributions for one label.
type ClassProfile struct {
	Label    int             `json:"label" yaml:"label"`
	Name     string          `json:"name" yaml:"name"`
	Features map[string]Dist `json:"features" yaml:"features"`

	// Scenarios are rolled in order; the first that fires wins.
	Scenarios []Scenario `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`
}

// FaultSpec describes the sensor fault injected into one reading.
// Feature names a base feature, so every reading derived from it carries
// the fault, or a schema column when the faulty reading is itself derived.
type FaultSpec struct {
	Feature     string  `json:"feature" yaml:"feature"`
	Magnitude   float64 `json:"magnitude" yaml:"magnitude"`
	Probability float64 `json:"probability" yaml:"probability"`
}

// Boundary is a soft decision boundary on a latent variable: the
// probability of the positive class is sigmoid((Center-x)/Softness).
type Boundary struct {
	Center   float64 `json:"center" yaml:"center"`
	Softness float64 `json:"softness" yaml:"softness"`
}

// PositiveProb returns the probability that latent value x is labeled
// with the positive class.
func (b Boundary) PositiveProb(x float64) float64 {
	return 1 / (1 + math.Exp(-(b.Center-x)/b.Softness))
}

// Profile is the full generative description of one domain.
type Profile struct {
	Domain models.Domain `json:"domain" yaml:"domain"`

	// Prior is the label distribution, indexed by label id.
	Prior []float64 `json:"prior" yaml:"prior"`

	// BaseOrder fixes the order in which class features are drawn.
	BaseOrder []string       `json:"base_order" yaml:"base_order"`
	Classes   []ClassProfile `json:"classes" yaml:"classes"`

	// Shared are class-independent draws used by derived features.
	Shared map[string]Dist `json:"shared,omitempty" yaml:"shared,omitempty"`

	// Noise maps a derived quantity to its injector level.
	Noise map[string]float64 `json:"noise,omitempty" yaml:"noise,omitempty"`

	Fault        FaultSpec `json:"fault" yaml:"fault"`
	MislabelProb float64   `json:"mislabel_prob" yaml:"mislabel_prob"`

	// Boundary is set for domains labeled by a latent variable.
	Boundary *Boundary `json:"boundary,omitempty" yaml:"boundary,omitempty"`
}

// Clone returns a deep copy that can be overridden without touching p.
func (p *Profile) Clone() *Profile {
	c := *p
	c.Prior = slices.Clone(p.Prior)
	c.BaseOrder = slices.Clone(p.BaseOrder)
	c.Shared = maps.Clone(p.Shared)
	c.Noise = maps.Clone(p.Noise)
	if p.Boundary != nil {
		b := *p.Boundary
		c.Boundary = &b
	}
	c.Classes = make([]ClassProfile, len(p.Classes))
	for i, cp := range p.Classes {
		cp.Features = maps.Clone(cp.Features)
		scenarios := make([]Scenario, len(cp.Scenarios))
		for j, s := range cp.Scenarios {
			s.Overrides = maps.Clone(s.Overrides)
			scenarios[j] = s
		}
		cp.Scenarios = scenarios
		c.Classes[i] = cp
	}
	return &c
}

// DrawShared draws a named class-independent quantity.
func (p *Profile) DrawShared(rng *rand.Rand, name string) (float64, error) {
	d, ok := p.Shared[name]
	if !ok {
		return 0, fmt.Errorf("%s profile has no shared distribution %q", p.Domain, name)
	}
	return d.Sample(rng), nil
}

// NoiseLevel returns the injector level for a derived quantity, falling
// back to the default level.
func (p *Profile) NoiseLevel(name string, fallback float64) float64 {
	if lvl, ok := p.Noise[name]; ok {
		return lvl
	}
	return fallback
}

// Validate checks the profile against the schema it feeds.
func (p *Profile) Validate(schema models.Schema) error {
	if len(p.Classes) != schema.NumClasses() {
		return configErrorf("%s profile has %d classes, schema has %d", p.Domain, len(p.Classes), schema.NumClasses())
	}
	if len(p.Prior) != len(p.Classes) {
		return configErrorf("%s prior has %d entries for %d classes", p.Domain, len(p.Prior), len(p.Classes))
	}
	var sum float64
	for i, w := range p.Prior {
		if !validProb(w) {
			return configErrorf("%s prior[%d] = %g is not a probability", p.Domain, i, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		return configErrorf("%s prior sums to %g, want 1", p.Domain, sum)
	}

	for i, cp := range p.Classes {
		if cp.Label != i {
			return configErrorf("%s class %d declared with label %d", p.Domain, i, cp.Label)
		}
		for _, name := range p.BaseOrder {
			d, ok := cp.Features[name]
			if !ok {
				return configErrorf("%s class %s has no distribution for %s", p.Domain, cp.Name, name)
			}
			if err := d.Validate(); err != nil {
				return wrapField(err, p.Domain, cp.Name+"."+name)
			}
		}
		for name := range cp.Features {
			if !slices.Contains(p.BaseOrder, name) {
				return configErrorf("%s class %s: unknown feature %q", p.Domain, cp.Name, name)
			}
		}
		for _, s := range cp.Scenarios {
			if !validProb(s.Probability) {
				return configErrorf("%s scenario %s probability %g is not a probability", p.Domain, s.Name, s.Probability)
			}
			for name, d := range s.Overrides {
				if !slices.Contains(p.BaseOrder, name) {
					return configErrorf("%s scenario %s overrides unknown feature %q", p.Domain, s.Name, name)
				}
				if err := d.Validate(); err != nil {
					return wrapField(err, p.Domain, s.Name+"."+name)
				}
			}
		}
	}

	for name, d := range p.Shared {
		if err := d.Validate(); err != nil {
			return wrapField(err, p.Domain, name)
		}
	}
	for name, lvl := range p.Noise {
		if lvl < 0 || math.IsNaN(lvl) || math.IsInf(lvl, 0) {
			return configErrorf("%s noise level for %s must be a finite non-negative number, got %g", p.Domain, name, lvl)
		}
	}

	if !p.faultsBase() && schema.ColumnIndex(p.Fault.Feature) < 0 {
		return configErrorf("%s fault targets unknown feature %q", p.Domain, p.Fault.Feature)
	}
	if !validProb(p.Fault.Probability) {
		return configErrorf("%s fault probability %g is not a probability", p.Domain, p.Fault.Probability)
	}
	if p.Fault.Magnitude < 0 || math.IsInf(p.Fault.Magnitude, 0) || math.IsNaN(p.Fault.Magnitude) {
		return configErrorf("%s fault magnitude must be finite and non-negative, got %g", p.Domain, p.Fault.Magnitude)
	}
	if !validProb(p.MislabelProb) {
		return configErrorf("%s mislabel probability %g is not a probability", p.Domain, p.MislabelProb)
	}

	if p.Boundary != nil && !(p.Boundary.Softness > 0) {
		return configErrorf("%s boundary softness must be positive, got %g", p.Domain, p.Boundary.Softness)
	}
	return nil
}

// faultsBase reports whether the fault target is a base feature.
func (p *Profile) faultsBase() bool {
	return slices.Contains(p.BaseOrder, p.Fault.Feature)
}

func validProb(p float64) bool {
	return p >= 0 && p <= 1
}

func wrapField(err error, domain models.Domain, field string) error {
	return configErrorf("%s %s: %v", domain, field, unwrapConfig(err))
}

// unwrapConfig strips the sentinel prefix so it is not repeated.
func unwrapConfig(err error) string {
	return strings.TrimPrefix(err.Error(), ErrInvalidConfig.Error()+": ")
}
