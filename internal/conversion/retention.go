package conversion

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"waveconv/entity"
	"waveconv/internal/telemetry/metric"
	"waveconv/pkg/logger"
)

// Sweeper deletes inputs and outputs older than maxAge.
type Sweeper struct {
	store    entity.ArtifactStore
	l        logger.Interface
	m        *metric.Metrics
	interval time.Duration
	maxAge   time.Duration
	prefixes []string
}

func NewSweeper(store entity.ArtifactStore, l logger.Interface, m *metric.Metrics, interval, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		l:        l,
		m:        m,
		interval: interval,
		maxAge:   maxAge,
		prefixes: []string{entity.InputPrefix, entity.OutputPrefix},
	}
}

// Run sweeps once immediately and then every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.l.Info("conversion - Sweeper - every %s, max age %s", s.interval, s.maxAge)

	for {
		if n, err := s.Sweep(ctx, time.Now()); err != nil {
			s.l.Error(err, "conversion - Sweeper - swept %d artifacts with errors", n)
		} else if n > 0 {
			s.l.Info("conversion - Sweeper - removed %d expired artifacts", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep deletes every artifact modified before now-maxAge and returns how
// many were deleted. A failure on one artifact does not stop the others.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "Sweep")
	defer span.End()

	cutoff := now.Add(-s.maxAge)
	deleted := 0
	var errs []error

	for _, prefix := range s.prefixes {
		items, err := s.store.List(ctx, prefix)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, it := range items {
			if !it.ModTime.Before(cutoff) {
				continue
			}
			if err := s.store.Delete(ctx, it.Key); err != nil {
				errs = append(errs, err)
				continue
			}
			deleted++
			s.l.Debug("conversion - Sweep - removed %s", it.Key)
		}
	}

	span.SetAttributes(attribute.Int("deleted", deleted))
	s.m.RecordRetention(deleted)

	return deleted, errors.Join(errs...)
}
