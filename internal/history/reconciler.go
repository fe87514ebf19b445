package history

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jo-hoe/skinscan/internal/prediction"
)

const (
	DefaultRefreshDelay   = time.Second
	DefaultRefreshTimeout = 30 * time.Second
)

type Options struct {
	// RefreshDelay is the wait between a successful submission and the
	// scheduled refresh.
	RefreshDelay time.Duration
	// RefreshTimeout bounds a scheduled refresh.
	RefreshTimeout time.Duration
	Clock          func() time.Time
	NewID          func() string
	Logger         *slog.Logger
}

// Reconciler owns the most-recent-first scan history of one subject.
//
// Optimistic records are prepended right after a submission; a later refresh
// replaces the whole list with the store's confirmed records. Every
// RecordOptimistic bumps the list generation and every refresh is stamped with
// the generation it intends to replace, so a refresh that was overtaken by a newer
// submission is discarded instead of wiping that submission's records.
type Reconciler struct {
	store     Store
	subjectID int
	opts      Options
	logger    *slog.Logger

	mu          sync.Mutex
	records     []ScanRecord
	generation  uint64
	invalidated bool
	timers      map[*time.Timer]struct{}
	pending     sync.WaitGroup
}

func NewReconciler(store Store, subjectID int, opts Options) *Reconciler {
	if opts.RefreshDelay < 0 {
		opts.RefreshDelay = 0
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = DefaultRefreshTimeout
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:     store,
		subjectID: subjectID,
		opts:      opts,
		logger:    logger.With("component", "history", "subject_id", subjectID),
		timers:    make(map[*time.Timer]struct{}),
	}
}

func (r *Reconciler) SubjectID() int {
	return r.subjectID
}

// Records returns a copy of the current list, most recent first.
func (r *Reconciler) Records() []ScanRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ScanRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Generation returns the current list generation.
func (r *Reconciler) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// RecordOptimistic prepends one optimistic record per prediction, in prediction
// order, and returns them. It does not touch the network.
func (r *Reconciler) RecordOptimistic(predictions []prediction.Prediction) []ScanRecord {
	if len(predictions) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.invalidated {
		r.logger.Warn("ignoring optimistic insert for invalidated history")
		return nil
	}

	now := r.opts.Clock()
	added := make([]ScanRecord, len(predictions))
	for i, p := range predictions {
		added[i] = ScanRecord{
			ID:         r.opts.NewID(),
			Disease:    p.Disease,
			Confidence: p.Confidence,
			Timestamp:  now,
			Image:      p.Image,
			Provenance: Optimistic,
		}
	}

	records := make([]ScanRecord, 0, len(added)+len(r.records))
	records = append(records, added...)
	records = append(records, r.records...)
	r.records = records
	r.generation++

	r.logger.Debug("recorded optimistic scans", "count", len(added), "generation", r.generation)

	out := make([]ScanRecord, len(added))
	copy(out, added)
	return out
}

// Refresh fetches the confirmed history and replaces the list with it. The result
// is discarded with ErrStaleRefresh when RecordOptimistic ran while fetching.
// Failures are logged, returned as *ReconciliationError and leave the list as is.
func (r *Reconciler) Refresh(ctx context.Context) error {
	r.mu.Lock()
	generation := r.generation
	invalidated := r.invalidated
	r.mu.Unlock()

	if invalidated {
		return ErrInvalidated
	}
	return r.refreshGeneration(ctx, generation)
}

func (r *Reconciler) refreshGeneration(ctx context.Context, generation uint64) error {
	fetched, err := r.store.FetchHistory(ctx, r.subjectID)
	if err != nil {
		r.logger.Error("history refresh failed", "error", err)
		return &ReconciliationError{SubjectID: r.subjectID, Err: err}
	}

	records := make([]ScanRecord, len(fetched))
	for i, record := range fetched {
		record.Provenance = Confirmed
		records[i] = record
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.invalidated {
		return ErrInvalidated
	}
	if r.generation != generation {
		r.logger.Debug("discarding stale history refresh",
			"stamped_generation", generation,
			"current_generation", r.generation)
		return ErrStaleRefresh
	}
	r.records = records

	r.logger.Debug("history replaced with confirmed records", "count", len(records), "generation", generation)
	return nil
}

// ScheduleRefresh runs a refresh after the configured delay, stamped with the
// current generation.
func (r *Reconciler) ScheduleRefresh() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.invalidated {
		return
	}

	generation := r.generation
	r.pending.Add(1)

	var timer *time.Timer
	timer = time.AfterFunc(r.opts.RefreshDelay, func() {
		defer r.pending.Done()

		r.mu.Lock()
		delete(r.timers, timer)
		r.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), r.opts.RefreshTimeout)
		defer cancel()

		// failures are logged by refreshGeneration; the optimistic list stays visible
		_ = r.refreshGeneration(ctx, generation)
	})
	r.timers[timer] = struct{}{}
}

// Wait blocks until every scheduled refresh has run or was stopped, or until
// ctx is done.
func (r *Reconciler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Invalidate clears the list and stops all pending and future refreshes. It is
// used when the subject's password changes or the account is deleted.
func (r *Reconciler) Invalidate() {
	r.mu.Lock()
	r.invalidated = true
	r.records = nil
	r.generation++
	r.stopTimersLocked()
	r.mu.Unlock()

	r.logger.Info("history invalidated")
}

// Close stops pending refreshes and waits for running ones to finish.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.stopTimersLocked()
	r.mu.Unlock()
	r.pending.Wait()
}

func (r *Reconciler) stopTimersLocked() {
	for timer := range r.timers {
		if timer.Stop() {
			r.pending.Done()
		}
		delete(r.timers, timer)
	}
}
