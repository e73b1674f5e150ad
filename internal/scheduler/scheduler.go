package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/maheshrc27/instaflow/internal/publisher"
)

var (
	ErrNotRecovered = errors.New("scheduler: recovery has not completed")
	ErrStopped      = errors.New("scheduler: stopped")
)

// StuckContent describes an item whose persisted status could not be brought
// in line with the pipeline's decision. It stays Scheduled with no timer.
type StuckContent struct {
	ID     int64
	Update *models.StatusUpdate
	Reason string
	Err    error
}

// Alerter is the operator channel for inconsistencies the pipeline cannot resolve itself.
type Alerter interface {
	ContentStuck(ctx context.Context, stuck StuckContent)
}

type logAlerter struct{}

func (logAlerter) ContentStuck(ctx context.Context, stuck StuckContent) {
	slog.Error("content stuck in scheduled", "content_id", stuck.ID, "reason", stuck.Reason, "error", stuck.Err)
}

// LogAlerter reports stuck content to the process log only.
func LogAlerter() Alerter {
	return logAlerter{}
}

type Options struct {
	Clock          Clock
	Alerter        Alerter
	Logger         *slog.Logger
	PublishTimeout time.Duration
	WriteTimeout   time.Duration
}

// RecoveryReport summarises one RecoverAll pass.
type RecoveryReport struct {
	Armed   int
	Elapsed int
	Errors  int
}

// Scheduler arms one timer per scheduled content item and, when it fires,
// runs the publish transition and writes the outcome back to the repository.
type Scheduler struct {
	content      ContentRepository
	registry     *Registry
	transition   *Transition
	clock        Clock
	alerter      Alerter
	log          *slog.Logger
	writeTimeout time.Duration

	scheduling *keyLock
	running    *keyLock

	recoverMu sync.Mutex
	mu        sync.Mutex
	recovered bool
	stopped   bool
	inflight  sync.WaitGroup
}

func New(content ContentRepository, accounts AccountRepository, resolver MediaResolver, adapter publisher.Adapter, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Alerter == nil {
		opts.Alerter = LogAlerter()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Scheduler{
		content:      content,
		registry:     NewRegistry(opts.Clock),
		transition:   NewTransition(content, accounts, resolver, adapter, opts.Clock, opts.PublishTimeout),
		clock:        opts.Clock,
		alerter:      opts.Alerter,
		log:          opts.Logger.With("component", "scheduler"),
		writeTimeout: opts.WriteTimeout,
		scheduling:   newKeyLock(),
		running:      newKeyLock(),
	}
}

// Schedule arms the publish timer for item, replacing any timer already armed
// for the same id. Items whose time has already passed are marked Failed
// instead. Items not in Scheduled status only lose their timer.
func (s *Scheduler) Schedule(ctx context.Context, item *models.Content) error {
	if err := s.accepting(); err != nil {
		return err
	}
	_, err := s.schedule(ctx, item)
	return err
}

// Reschedule re-reads id from the repository and arms its timer from the
// stored row. Concurrent edits of one item therefore always converge on the
// last persisted scheduled date. A missing row only loses its timer.
func (s *Scheduler) Reschedule(ctx context.Context, id int64) error {
	if err := s.accepting(); err != nil {
		return err
	}
	return s.reschedule(ctx, id)
}

func (s *Scheduler) reschedule(ctx context.Context, id int64) error {
	unlock := s.scheduling.Lock(id)
	defer unlock()

	item, err := s.content.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load content %d: %w", id, err)
	}
	if item == nil {
		if s.registry.Disarm(id) {
			s.log.Info("disarmed deleted content", "content_id", id)
		}
		return nil
	}
	_, err = s.scheduleLocked(ctx, item)
	return err
}

func (s *Scheduler) accepting() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}
	if !s.recovered {
		return ErrNotRecovered
	}
	return nil
}

// schedule reports whether a timer was armed.
func (s *Scheduler) schedule(ctx context.Context, item *models.Content) (bool, error) {
	if item == nil {
		return false, errors.New("scheduler: nil content")
	}

	unlock := s.scheduling.Lock(item.ID)
	defer unlock()
	return s.scheduleLocked(ctx, item)
}

// scheduleLocked expects the scheduling lock for item.ID to be held.
func (s *Scheduler) scheduleLocked(ctx context.Context, item *models.Content) (bool, error) {
	if item.Status != models.StatusScheduled {
		if s.registry.Disarm(item.ID) {
			s.log.Info("disarmed content no longer scheduled", "content_id", item.ID, "status", item.Status)
		}
		return false, nil
	}

	if item.ScheduledAt.Before(s.clock.Now()) {
		s.registry.Disarm(item.ID)
		s.log.Warn("scheduled date is in the past, marking as failed", "content_id", item.ID, "scheduled_at", item.ScheduledAt)
		update := models.StatusUpdate{Status: models.StatusFailed, Reason: models.ReasonElapsed, At: s.clock.Now()}
		if err := s.apply(ctx, Outcome{ID: item.ID, Update: update}); err != nil {
			return false, err
		}
		return false, nil
	}

	id := item.ID
	s.registry.Arm(id, item.ScheduledAt, func() { s.fire(id) })
	s.log.Info("scheduled content", "content_id", id, "kind", item.Kind, "at", item.ScheduledAt.UTC().Format(time.RFC3339))
	return true, nil
}

// Cancel disarms the timer for id. It does not touch the persisted status and
// cannot stop a publish that is already running.
func (s *Scheduler) Cancel(id int64) bool {
	unlock := s.scheduling.Lock(id)
	defer unlock()

	if !s.registry.Disarm(id) {
		return false
	}
	s.log.Info("cancelled scheduled content", "content_id", id)
	return true
}

// RecoverAll re-arms every persisted Scheduled item. It must complete before
// Schedule is accepted; once it has succeeded further calls are no-ops.
func (s *Scheduler) RecoverAll(ctx context.Context) (RecoveryReport, error) {
	var report RecoveryReport

	s.recoverMu.Lock()
	defer s.recoverMu.Unlock()

	s.mu.Lock()
	if s.recovered {
		s.mu.Unlock()
		s.log.Debug("recovery already completed")
		return report, nil
	}
	if s.stopped {
		s.mu.Unlock()
		return report, ErrStopped
	}
	s.mu.Unlock()

	items, err := s.content.ListScheduled(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list scheduled content: %w", err)
	}

	for _, item := range items {
		armed, err := s.schedule(ctx, item)
		switch {
		case err != nil:
			report.Errors++
		case armed:
			report.Armed++
		default:
			report.Elapsed++
		}
	}

	s.mu.Lock()
	s.recovered = true
	s.mu.Unlock()

	s.log.Info("recovered scheduled content", "armed", report.Armed, "elapsed", report.Elapsed, "errors", report.Errors)
	return report, nil
}

func (s *Scheduler) Armed(id int64) bool {
	return s.registry.Armed(id)
}

func (s *Scheduler) ArmedCount() int {
	return s.registry.Len()
}

// Stop disarms every timer and waits for running publishes to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	n := s.registry.DisarmAll()
	s.log.Info("scheduler stopping", "disarmed", n)

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) fire(id int64) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	unlock := s.running.Lock(id)
	defer unlock()

	ctx := context.Background()
	out := s.transition.Run(ctx, id)
	if out.NotDue {
		s.log.Info("timer fired before stored scheduled date, re-arming", "content_id", id, "note", out.Note)
		if err := s.reschedule(ctx, id); err != nil {
			s.log.Error("failed to re-arm content", "content_id", id, "error", err)
			s.alerter.ContentStuck(ctx, StuckContent{ID: id, Reason: "re-arm failed", Err: err})
		}
		return
	}
	if out.Skipped {
		s.log.Info("skipped publish", "content_id", id, "note", out.Note)
		return
	}

	if out.Update.Status == models.StatusPublished {
		s.log.Info("published content", "content_id", id, "remote_id", out.Update.RemoteID)
	} else {
		s.log.Warn("failed to publish content", "content_id", id, "reason", out.Update.Reason)
	}
	_ = s.apply(ctx, out)
}

// apply writes the outcome. A failed write leaves the item Scheduled without a
// timer, so it is reported to the operator channel.
func (s *Scheduler) apply(ctx context.Context, out Outcome) error {
	writeCtx := ctx
	if s.writeTimeout > 0 {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(ctx, s.writeTimeout)
		defer cancel()
	}

	if err := s.content.UpdateStatus(writeCtx, out.ID, out.Update); err != nil {
		s.log.Error("failed to persist content status", "content_id", out.ID, "status", out.Update.Status, "error", err)
		update := out.Update
		s.alerter.ContentStuck(ctx, StuckContent{
			ID:     out.ID,
			Update: &update,
			Reason: "status write failed",
			Err:    err,
		})
		return fmt.Errorf("failed to update status for content %d: %w", out.ID, err)
	}
	return nil
}
