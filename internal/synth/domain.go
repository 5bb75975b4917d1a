package synth

import (
	"fmt"
	"math/rand/v2"

	"github.com/nvandessel/battsim/internal/models"
)

// Domain synthesizes records for one diagnostic domain.
type Domain interface {
	// Schema returns the column layout the records conform to.
	Schema() models.Schema

	// Profile returns the generative profile in use. Callers must not modify it.
	Profile() *Profile

	// Synthesize produces one finalized record whose features were drawn
	// for label. The stored label may differ when annotation noise fires.
	Synthesize(rng *rand.Rand, label int) (models.Sample, error)
}

type sampleFunc func(rng *rand.Rand, label int, p *Profile) (Draw, error)

// deriveFunc turns a base draw into the full raw row keyed by column name.
type deriveFunc func(rng *rand.Rand, p *Profile, d Draw) (map[string]float64, error)

type synthesizer struct {
	schema  models.Schema
	profile *Profile
	sample  sampleFunc
	derive  deriveFunc
}

func (s *synthesizer) Schema() models.Schema { return s.schema }
func (s *synthesizer) Profile() *Profile     { return s.profile }

func (s *synthesizer) Synthesize(rng *rand.Rand, label int) (models.Sample, error) {
	domain := s.schema.Domain

	draw, err := s.sample(rng, label, s.profile)
	if err != nil {
		return models.Sample{}, NewError(domain, StageSampling, err)
	}

	// A faulty base sensor must reach every reading derived from it.
	var outcome FaultOutcome
	base := s.profile.faultsBase()
	if base {
		if outcome, err = ApplyFaults(rng, draw.Values, label, s.profile); err != nil {
			return models.Sample{}, NewError(domain, StageFault, err)
		}
	}

	raw, err := s.derive(rng, s.profile, draw)
	if err != nil {
		return models.Sample{}, NewError(domain, StageSampling, fmt.Errorf("deriving features: %w", err))
	}

	if !base {
		if outcome, err = ApplyFaults(rng, raw, label, s.profile); err != nil {
			return models.Sample{}, NewError(domain, StageFault, err)
		}
	}

	features, err := s.schema.FinalizeRow(raw)
	if err != nil {
		return models.Sample{}, NewError(domain, StageSampling, err)
	}

	return models.Sample{
		Features: features,
		Label:    outcome.Label,
		Trace: models.Trace{
			SourceLabel: label,
			Scenario:    draw.Scenario,
			Faulted:     outcome.Faulted,
			Relabeled:   outcome.Relabeled,
		},
	}, nil
}

// DefaultProfile returns a fresh copy of the built-in profile for d.
func DefaultProfile(d models.Domain) (*Profile, error) {
	switch d {
	case models.DomainSafety:
		return SafetyProfile(), nil
	case models.DomainHealth:
		return HealthProfile(), nil
	case models.DomainDriver:
		return DriverProfile(), nil
	}
	return nil, NewError(d, StageConfig, configErrorf("unknown domain %q", d))
}

// New returns the synthesizer for d with its built-in profile.
func New(d models.Domain) (Domain, error) {
	return NewWithOverrides(d, Overrides{})
}

// NewWithOverrides returns the synthesizer for d with o applied to the
// built-in profile. The resulting profile is validated.
func NewWithOverrides(d models.Domain, o Overrides) (Domain, error) {
	base, err := DefaultProfile(d)
	if err != nil {
		return nil, err
	}
	p, err := base.Apply(o)
	if err != nil {
		return nil, NewError(d, StageConfig, err)
	}
	return NewFromProfile(p)
}

// NewFromProfile returns a synthesizer for a caller-built profile of one
// of the known domains.
func NewFromProfile(p *Profile) (Domain, error) {
	schema, err := models.SchemaFor(p.Domain)
	if err != nil {
		return nil, NewError(p.Domain, StageConfig, fmt.Errorf("%w: %v", ErrInvalidConfig, err))
	}
	if err := p.Validate(schema); err != nil {
		return nil, NewError(p.Domain, StageConfig, err)
	}

	s := &synthesizer{schema: schema, profile: p, sample: SampleFeatures}
	switch p.Domain {
	case models.DomainSafety:
		s.derive = deriveSafety
	case models.DomainHealth:
		if p.Boundary == nil {
			return nil, NewError(p.Domain, StageConfig, configErrorf("health profile needs a latent label boundary"))
		}
		s.sample = sampleHealth
		s.derive = deriveHealth
	case models.DomainDriver:
		s.derive = deriveDriver
	}
	return s, nil
}

// sharedDraws pulls class-independent draws in call order and keeps the
// first error so derive functions read straight through.
type sharedDraws struct {
	rng *rand.Rand
	p   *Profile
	err error
}

func (s *sharedDraws) draw(name string) float64 {
	if s.err != nil {
		return 0
	}
	v, err := s.p.DrawShared(s.rng, name)
	if err != nil {
		s.err = err
	}
	return v
}
