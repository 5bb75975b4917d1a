package synth

import (
	"errors"
	"fmt"

	"github.com/nvandessel/battsim/internal/models"
)

// ErrInvalidConfig marks configuration problems: bad sample counts,
// distribution parameters outside their domain, unknown overrides.
var ErrInvalidConfig = errors.New("invalid configuration")

// Stage names the part of a domain run that failed.
type Stage string

const (
	StageConfig   Stage = "config"
	StageSampling Stage = "sampling"
	StageFault    Stage = "fault"
	StageIO       Stage = "io"
	StagePublish  Stage = "publish"
	StageCatalog  Stage = "catalog"
)

// Error is a domain-scoped failure with the stage it happened in.
// Row is the zero-based row index, or -1 when the failure is not tied to a row.
type Error struct {
	Domain models.Domain
	Stage  Stage
	Row    int
	Err    error
}

// NewError wraps err for a domain and stage with no row attached.
func NewError(domain models.Domain, stage Stage, err error) *Error {
	return &Error{Domain: domain, Stage: stage, Row: -1, Err: err}
}

func (e *Error) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("%s: %s failed at row %d: %v", e.Domain, e.Stage, e.Row, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Domain, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StageOf returns the stage recorded in err, or "" when err carries none.
func StageOf(err error) Stage {
	var se *Error
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// configErrorf builds an ErrInvalidConfig-wrapped error.
func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
