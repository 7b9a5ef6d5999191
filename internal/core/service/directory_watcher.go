package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/presencectl/internal/api/metrics"
	"github.com/99minutos/presencectl/internal/core/domain"
	"github.com/99minutos/presencectl/internal/core/ports"
)

const defaultPollInterval = 5 * time.Second

// DirectoryDiff lists the records that appeared and disappeared between two
// consecutive snapshots.
type DirectoryDiff struct {
	Joined []domain.ConnectionRecord
	Left   []domain.ConnectionRecord
}

// Empty reports whether nothing changed.
func (d DirectoryDiff) Empty() bool {
	return len(d.Joined) == 0 && len(d.Left) == 0
}

// Diff compares two snapshots. Joined keeps the order of next, Left the order
// of prev.
func Diff(prev, next []domain.ConnectionRecord) DirectoryDiff {
	before := make(map[string]struct{}, len(prev))
	for _, r := range prev {
		before[r.Key()] = struct{}{}
	}
	after := make(map[string]struct{}, len(next))
	for _, r := range next {
		after[r.Key()] = struct{}{}
	}

	var d DirectoryDiff
	for _, r := range next {
		if _, ok := before[r.Key()]; !ok {
			d.Joined = append(d.Joined, r)
		}
	}
	for _, r := range prev {
		if _, ok := after[r.Key()]; !ok {
			d.Left = append(d.Left, r)
		}
	}
	return d
}

// DirectoryWatcher polls the presence directory and reports changes. The
// directory is a read-only snapshot fetched on demand, so refreshing is the
// only way to follow it.
type DirectoryWatcher struct {
	source   ports.DirectorySource
	interval time.Duration
	log      zerolog.Logger

	// OnChange is called after every successful poll whose snapshot differs
	// from the previous one, and always after the first successful poll.
	OnChange func(snapshot []domain.ConnectionRecord, diff DirectoryDiff)
}

func NewDirectoryWatcher(source ports.DirectorySource, interval time.Duration, log zerolog.Logger) *DirectoryWatcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &DirectoryWatcher{source: source, interval: interval, log: log}
}

// Run polls until ctx is cancelled or the session can no longer read the
// directory. It returns nil on cancellation.
func (w *DirectoryWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var (
		prev  []domain.ConnectionRecord
		first = true
	)
	for {
		records, err := w.source.ListConnections(ctx)
		switch {
		case err == nil:
			diff := Diff(prev, records)
			metrics.DirectorySize.Set(float64(len(records)))
			if first || !diff.Empty() {
				w.log.Debug().
					Int("connected", len(records)).
					Int("joined", len(diff.Joined)).
					Int("left", len(diff.Left)).
					Msg("directory changed")
				if w.OnChange != nil {
					w.OnChange(records, diff)
				}
			}
			prev, first = records, false
		case ctx.Err() != nil:
			return nil
		case isTerminal(err):
			return err
		case errors.Is(err, domain.ErrStaleResponse):
			w.log.Debug().Msg("stale directory reply skipped")
		default:
			w.log.Warn().Err(err).Msg("directory refresh failed, keeping last snapshot")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func isTerminal(err error) bool {
	return errors.Is(err, domain.ErrNotAuthenticated) ||
		errors.Is(err, domain.ErrUnauthorized) ||
		errors.Is(err, domain.ErrInsufficientRole)
}
