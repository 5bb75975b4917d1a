package pipeline

import (
	"log/slog"

	"github.com/nvandessel/battsim/internal/models"
)

// Observer receives progress events. Calls happen on the goroutine
// running the domain.
type Observer interface {
	DomainStarted(domain models.Domain, samples int)
	DomainFinished(result Result)
}

// Observers fans events out to several observers in order.
type Observers []Observer

func (o Observers) DomainStarted(domain models.Domain, samples int) {
	for _, obs := range o {
		obs.DomainStarted(domain, samples)
	}
}

func (o Observers) DomainFinished(result Result) {
	for _, obs := range o {
		obs.DomainFinished(result)
	}
}

// LogObserver reports progress through a slog.Logger.
type LogObserver struct {
	Logger *slog.Logger
}

// DomainStarted logs the start of a domain run.
func (l LogObserver) DomainStarted(domain models.Domain, samples int) {
	l.Logger.Info("generating dataset", "domain", domain, "samples", samples)
}

// DomainFinished logs the outcome of a domain run.
func (l LogObserver) DomainFinished(r Result) {
	if r.Err != nil {
		l.Logger.Error("domain failed",
			"domain", r.Domain,
			"run_id", r.RunID,
			"stage", r.Stage,
			"error", r.Err,
		)
		return
	}
	l.Logger.Info("dataset written",
		"domain", r.Domain,
		"path", r.Path,
		"rows", r.Samples,
		"labels", r.LabelCounts,
		"checksum", r.Checksum,
		"duration", r.Duration,
	)
}
