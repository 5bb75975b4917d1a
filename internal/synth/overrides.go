package synth

import (
	"slices"
	"strings"
)

// Overrides adjusts a default profile from configuration. Nil and empty
// fields leave the profile untouched.
type Overrides struct {
	FaultProb      *float64 `json:"fault_prob,omitempty" yaml:"fault_prob,omitempty"`
	FaultMagnitude *float64 `json:"fault_magnitude,omitempty" yaml:"fault_magnitude,omitempty"`
	MislabelProb   *float64 `json:"mislabel_prob,omitempty" yaml:"mislabel_prob,omitempty"`

	// Scenarios maps a scenario name to a new trigger probability.
	Scenarios map[string]float64 `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`

	// Classes maps a class name to per-feature distribution replacements.
	Classes map[string]map[string]Dist `json:"classes,omitempty" yaml:"classes,omitempty"`

	// Shared replaces class-independent distributions.
	Shared map[string]Dist `json:"shared,omitempty" yaml:"shared,omitempty"`

	// Noise replaces derived-feature injector levels.
	Noise map[string]float64 `json:"noise,omitempty" yaml:"noise,omitempty"`

	// Boundary replaces the latent label boundary of domains that have one.
	Boundary *Boundary `json:"boundary,omitempty" yaml:"boundary,omitempty"`
}

// IsZero reports whether o changes nothing.
func (o Overrides) IsZero() bool {
	return o.FaultProb == nil && o.FaultMagnitude == nil && o.MislabelProb == nil &&
		len(o.Scenarios) == 0 && len(o.Classes) == 0 && len(o.Shared) == 0 && len(o.Noise) == 0 && o.Boundary == nil
}

// Apply returns a copy of p with o applied. Names that do not exist in
// the profile are configuration errors. The result is not validated.
func (p *Profile) Apply(o Overrides) (*Profile, error) {
	c := p.Clone()

	if o.FaultProb != nil {
		c.Fault.Probability = *o.FaultProb
	}
	if o.FaultMagnitude != nil {
		c.Fault.Magnitude = *o.FaultMagnitude
	}
	if o.MislabelProb != nil {
		c.MislabelProb = *o.MislabelProb
	}

	for name, prob := range o.Scenarios {
		found := false
		for i := range c.Classes {
			for j := range c.Classes[i].Scenarios {
				if c.Classes[i].Scenarios[j].Name == name {
					c.Classes[i].Scenarios[j].Probability = prob
					found = true
				}
			}
		}
		if !found {
			return nil, configErrorf("%s has no scenario %q", p.Domain, name)
		}
	}

	for className, features := range o.Classes {
		idx := slices.IndexFunc(c.Classes, func(cp ClassProfile) bool {
			return strings.EqualFold(cp.Name, className)
		})
		if idx < 0 {
			return nil, configErrorf("%s has no class %q", p.Domain, className)
		}
		for name, d := range features {
			if !slices.Contains(c.BaseOrder, name) {
				return nil, configErrorf("%s class %s has no feature %q (valid: %s)",
					p.Domain, c.Classes[idx].Name, name, strings.Join(c.BaseOrder, ", "))
			}
			c.Classes[idx].Features[name] = d
		}
	}

	for name, d := range o.Shared {
		if _, ok := c.Shared[name]; !ok {
			return nil, configErrorf("%s has no shared distribution %q", p.Domain, name)
		}
		c.Shared[name] = d
	}

	for name, lvl := range o.Noise {
		if _, ok := c.Noise[name]; !ok {
			return nil, configErrorf("%s has no noise level %q", p.Domain, name)
		}
		c.Noise[name] = lvl
	}

	if o.Boundary != nil {
		if c.Boundary == nil {
			return nil, configErrorf("%s has no latent label boundary", p.Domain)
		}
		b := *o.Boundary
		c.Boundary = &b
	}

	return c, nil
}
