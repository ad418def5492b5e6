// Package poller is the reader side of the pipeline: it watches a resume
// record through the store until a terminal condition or its own attempt
// budget, and never mutates the record.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/resumer-app/resumer/internal/logger"
	"github.com/resumer-app/resumer/internal/record"
	"github.com/resumer-app/resumer/internal/utils"
	"go.uber.org/zap"
)

const (
	DefaultInterval    = 3 * time.Second
	DefaultMaxAttempts = 30
)

var (
	// ErrTimeout reports an exhausted attempt budget without a terminal
	// record state. Callers should message this differently from an explicit
	// failure.
	ErrTimeout = errors.New("job matching is taking longer than expected")
	// ErrMatchingFailed reports an explicit failed status on the record.
	ErrMatchingFailed = errors.New("job matching failed")
)

// Snapshot is one observation of the record. Missing marks a record that has
// not been created yet; Err carries a store I/O failure and always ends the
// sequence.
type Snapshot struct {
	Attempt int
	Record  *record.ResumeRecord
	Missing bool
	Err     error
}

// Terminal reports whether this snapshot satisfies a terminal condition:
// jobs present or an explicit failed status.
func (s Snapshot) Terminal() bool {
	if s.Record == nil {
		return false
	}
	return len(s.Record.Jobs) > 0 || s.Record.FetchStatus == record.StatusFailed
}

type Watcher struct {
	repo        *record.Repository
	Interval    time.Duration
	MaxAttempts int
	logger      *zap.Logger
}

func New(repo *record.Repository, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}

	return &Watcher{
		repo:        repo,
		Interval:    DefaultInterval,
		MaxAttempts: DefaultMaxAttempts,
		logger:      log,
	}
}

// Watch produces a lazy, finite sequence of snapshots for the record. The
// sequence ends after a terminal snapshot, a store error, the attempt budget,
// or caller cancellation; abandoning consumption simply stops polling. It is
// not restartable.
func (w *Watcher) Watch(ctx context.Context, id string) <-chan Snapshot {
	out := make(chan Snapshot)

	go func() {
		defer close(out)

		log := logger.WithFields(w.logger, zap.String(logger.FieldResumeID, id))

		for attempt := 1; attempt <= w.MaxAttempts; attempt++ {
			rec, ok, err := w.repo.Load(ctx, id)

			snap := Snapshot{
				Attempt: attempt,
				Record:  rec,
				Missing: err == nil && !ok,
				Err:     err,
			}

			status := ""
			if rec != nil {
				status = string(rec.FetchStatus)
			}
			log.Debug("poll attempt",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", w.MaxAttempts),
				zap.Bool("missing", snap.Missing),
				zap.String(logger.FieldStatus, status),
			)

			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}

			if err != nil || snap.Terminal() {
				return
			}

			if attempt == w.MaxAttempts {
				return
			}

			if err := utils.WaitFor(ctx, w.Interval); err != nil {
				return
			}
		}
	}()

	return out
}

// Await consumes Watch to completion and classifies the outcome: the record
// on jobs present, ErrMatchingFailed (with the record) on explicit failure,
// ErrTimeout on budget exhaustion, the context error on cancellation, or the
// store error as is.
func (w *Watcher) Await(ctx context.Context, id string) (*record.ResumeRecord, error) {
	var last *record.ResumeRecord

	for snap := range w.Watch(ctx, id) {
		if snap.Err != nil {
			return last, snap.Err
		}

		if snap.Record == nil {
			continue
		}
		last = snap.Record

		if len(snap.Record.Jobs) > 0 {
			return snap.Record, nil
		}
		if snap.Record.FetchStatus == record.StatusFailed {
			return snap.Record, ErrMatchingFailed
		}
	}

	if ctx.Err() != nil {
		return last, ctx.Err()
	}

	return last, ErrTimeout
}
