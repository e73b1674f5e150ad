package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maheshrc27/instaflow/internal/media"
	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/maheshrc27/instaflow/internal/publisher"
)

// ContentRepository is the durable store the pipeline reads and reconciles into.
// GetByID returns nil, nil when the item no longer exists.
type ContentRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Content, error)
	ListScheduled(ctx context.Context) ([]*models.Content, error)
	UpdateStatus(ctx context.Context, id int64, update models.StatusUpdate) error
}

// AccountRepository returns nil, nil for unknown accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
}

type MediaResolver interface {
	Resolve(ctx context.Context, ref string) (*media.Resolved, error)
}

// Outcome is the decision of one publish attempt. A skipped outcome carries no
// status write. NotDue marks a skip because the persisted time is still ahead,
// so the caller should arm again from the stored row.
type Outcome struct {
	ID      int64
	Skipped bool
	NotDue  bool
	Note    string
	Update  models.StatusUpdate
}

// Transition runs the Scheduled -> Published|Failed step for one item and
// reports the result without writing it.
type Transition struct {
	content  ContentRepository
	accounts AccountRepository
	media    MediaResolver
	adapter  publisher.Adapter
	clock    Clock
	timeout  time.Duration
}

func NewTransition(content ContentRepository, accounts AccountRepository, resolver MediaResolver, adapter publisher.Adapter, clock Clock, timeout time.Duration) *Transition {
	if clock == nil {
		clock = RealClock()
	}
	return &Transition{
		content:  content,
		accounts: accounts,
		media:    resolver,
		adapter:  adapter,
		clock:    clock,
		timeout:  timeout,
	}
}

func (t *Transition) Run(ctx context.Context, id int64) Outcome {
	item, err := t.content.GetByID(ctx, id)
	if err != nil {
		return t.failed(id, fmt.Sprintf("failed to load content: %v", err))
	}
	if item == nil {
		return Outcome{ID: id, Skipped: true, Note: "content no longer exists"}
	}
	if item.Status != models.StatusScheduled {
		return Outcome{ID: id, Skipped: true, Note: fmt.Sprintf("status is %s", item.Status)}
	}
	if item.ScheduledAt.After(t.clock.Now()) {
		return Outcome{ID: id, Skipped: true, NotDue: true, Note: "scheduled date moved to " + item.ScheduledAt.UTC().Format(time.RFC3339)}
	}

	account, err := t.accounts.GetByID(ctx, item.AccountID)
	if err != nil {
		return t.failed(id, fmt.Sprintf("failed to load account: %v", err))
	}
	if account == nil {
		return t.failed(id, models.ReasonAccountMissing)
	}

	resolved, err := t.resolve(ctx, item.MediaRef)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrNotFound):
			return t.failed(id, models.ReasonMediaMissing)
		case errors.Is(err, context.DeadlineExceeded):
			return t.failed(id, models.ReasonTimeout)
		}
		return t.failed(id, fmt.Sprintf("failed to resolve media: %v", err))
	}
	defer resolved.Cleanup()

	res, err := t.invoke(ctx, item, account, resolved)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return t.failed(id, models.ReasonTimeout)
	case err != nil:
		return t.failed(id, err.Error())
	case !res.Success:
		reason := res.Reason
		if reason == "" {
			reason = models.ReasonUnknown
		}
		return t.failed(id, reason)
	}

	return Outcome{ID: id, Update: models.StatusUpdate{
		Status:   models.StatusPublished,
		RemoteID: res.RemoteID,
		At:       t.clock.Now(),
	}}
}

// resolve is bounded by the same timeout as the adapter call.
func (t *Transition) resolve(ctx context.Context, ref string) (*media.Resolved, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.media.Resolve(ctx, ref)
}

func (t *Transition) invoke(ctx context.Context, item *models.Content, account *models.Account, m *media.Resolved) (res publisher.Result, err error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("publishing adapter panicked: %v", p)
		}
	}()

	if item.Kind == models.KindStory {
		return t.adapter.CreateStory(ctx, account.Session, m, item.Caption)
	}
	return t.adapter.CreatePost(ctx, account.Session, m, item.Caption, item.PostOptions())
}

func (t *Transition) failed(id int64, reason string) Outcome {
	return Outcome{ID: id, Update: models.StatusUpdate{
		Status: models.StatusFailed,
		Reason: reason,
		At:     t.clock.Now(),
	}}
}
