// Package jobs runs the service's scheduled maintenance work.
package jobs

import (
	"context"
	"time"

	"github.com/mileusna/crontab"
	"github.com/rs/zerolog"

	"chat-service/internal/observability"
)

const JobTimeout = 5 * time.Minute

// TranscriptPruner deletes research transcript entries older than a cutoff.
type TranscriptPruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// TranscriptCleanup keeps research history within its retention window.
type TranscriptCleanup struct {
	ctab      *crontab.Crontab
	store     TranscriptPruner
	retention time.Duration
	schedule  string
	log       zerolog.Logger
	now       func() time.Time
}

func NewTranscriptCleanup(store TranscriptPruner, retention time.Duration, schedule string, log zerolog.Logger) *TranscriptCleanup {
	return &TranscriptCleanup{
		ctab:      crontab.New(),
		store:     store,
		retention: retention,
		schedule:  schedule,
		log:       log.With().Str("component", "transcript-cleanup").Logger(),
		now:       time.Now,
	}
}

// PruneOnce deletes entries older than the retention window.
func (j *TranscriptCleanup) PruneOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	n, err := j.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	observability.AddTranscriptsPruned(n)
	j.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("pruned research transcripts")
	return n, nil
}

// Run prunes once at start, then on schedule until ctx is done.
func (j *TranscriptCleanup) Run(ctx context.Context) error {
	if _, err := j.PruneOnce(ctx); err != nil {
		j.log.Error().Err(err).Msg("initial transcript prune failed")
	}

	if err := j.ctab.AddJob(j.schedule, func() {
		jobCtx, cancel := context.WithTimeout(context.Background(), JobTimeout)
		defer cancel()
		if _, err := j.PruneOnce(jobCtx); err != nil {
			j.log.Error().Err(err).Msg("scheduled transcript prune failed")
		}
	}); err != nil {
		j.ctab.Shutdown()
		return err
	}
	j.log.Info().Str("schedule", j.schedule).Dur("retention", j.retention).Msg("transcript cleanup scheduled")

	<-ctx.Done()
	j.ctab.Shutdown()
	return nil
}
