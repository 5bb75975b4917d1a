package synth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nvandessel/battsim/internal/constants"
	"github.com/nvandessel/battsim/internal/models"
)

// RowHook is called after each row is synthesized. It runs on worker
// goroutines and must be safe for concurrent use.
type RowHook func(row int, s models.Sample)

type genOptions struct {
	workers int
	hook    RowHook
}

// Option configures Generate.
type Option func(*genOptions)

// WithWorkers sets how many goroutines synthesize rows. Values below one
// mean serial generation. Output does not depend on the worker count.
func WithWorkers(n int) Option {
	return func(o *genOptions) { o.workers = n }
}

// WithRowHook registers a per-row callback, used for trace logging.
func WithRowHook(h RowHook) Option {
	return func(o *genOptions) { o.hook = h }
}

// Generate synthesizes n rows for d from seed. Row i's label and features
// come only from RowStream(seed, i), so the result is identical for any
// worker count. The first row error aborts the run.
func Generate(ctx context.Context, d Domain, n int, seed int64, opts ...Option) (*models.Dataset, error) {
	o := genOptions{workers: constants.DefaultWorkers}
	for _, opt := range opts {
		opt(&o)
	}

	schema := d.Schema()
	if n <= 0 || n > constants.MaxSamples {
		return nil, NewError(schema.Domain, StageConfig,
			configErrorf("sample count must be in [1, %d], got %d", constants.MaxSamples, n))
	}

	samples := make([]models.Sample, n)
	if o.workers <= 1 {
		for i := range n {
			if err := ctx.Err(); err != nil {
				return nil, NewError(schema.Domain, StageSampling, fmt.Errorf("generation cancelled at row %d: %w", i, err))
			}
			s, err := synthesizeRow(d, seed, i)
			if err != nil {
				return nil, err
			}
			samples[i] = s
			if o.hook != nil {
				o.hook(i, s)
			}
		}
		return &models.Dataset{Schema: schema, Samples: samples, Traced: true}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := synthesizeRow(d, seed, i)
			if err != nil {
				return err
			}
			samples[i] = s
			if o.hook != nil {
				o.hook(i, s)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var se *Error
		if errors.As(err, &se) {
			return nil, err
		}
		return nil, NewError(schema.Domain, StageSampling, fmt.Errorf("generation cancelled: %w", err))
	}
	// The parent context may have been cancelled between scheduling and Wait.
	if err := ctx.Err(); err != nil {
		return nil, NewError(schema.Domain, StageSampling, fmt.Errorf("generation cancelled: %w", err))
	}
	return &models.Dataset{Schema: schema, Samples: samples, Traced: true}, nil
}

// GenerateDomain builds the default synthesizer for domain and generates n rows.
func GenerateDomain(ctx context.Context, domain models.Domain, n int, seed int64, opts ...Option) (*models.Dataset, error) {
	d, err := New(domain)
	if err != nil {
		return nil, err
	}
	return Generate(ctx, d, n, seed, opts...)
}

// SynthesizeRow regenerates row i of the dataset Generate would produce
// for (d, seed).
func SynthesizeRow(d Domain, seed int64, i int) (models.Sample, error) {
	return synthesizeRow(d, seed, i)
}

func synthesizeRow(d Domain, seed int64, i int) (models.Sample, error) {
	rng := RowStream(seed, i)
	label := DrawLabel(rng, d.Profile().Prior)
	s, err := d.Synthesize(rng, label)
	if err != nil {
		return models.Sample{}, withRow(d.Schema().Domain, i, err)
	}
	return s, nil
}

func withRow(domain models.Domain, row int, err error) error {
	var se *Error
	if errors.As(err, &se) {
		cp := *se
		cp.Row = row
		return &cp
	}
	return &Error{Domain: domain, Stage: StageSampling, Row: row, Err: err}
}
