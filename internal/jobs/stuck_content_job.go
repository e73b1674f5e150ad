package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/maheshrc27/instaflow/internal/scheduler"
)

const ReasonNoTimer = "stuck in scheduled without timer"

type OverdueLister interface {
	ListOverdue(ctx context.Context, before time.Time) ([]*models.Content, error)
}

type ArmChecker interface {
	Armed(id int64) bool
}

// StuckContentJob reports scheduled items that are past due and have no timer.
// It never publishes or changes status.
type StuckContentJob struct {
	content OverdueLister
	armed   ArmChecker
	alerter scheduler.Alerter
	grace   time.Duration
	now     func() time.Time
	timeout time.Duration
}

func NewStuckContentJob(content OverdueLister, armed ArmChecker, alerter scheduler.Alerter, grace time.Duration) *StuckContentJob {
	return &StuckContentJob{
		content: content,
		armed:   armed,
		alerter: alerter,
		grace:   grace,
		now:     time.Now,
		timeout: 30 * time.Second,
	}
}

// Audit is registered with cron and returns the number of items reported.
func (j *StuckContentJob) Audit() int {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	cutoff := j.now().Add(-j.grace)
	items, err := j.content.ListOverdue(ctx, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return 0
	}

	reported := 0
	for _, item := range items {
		if j.armed.Armed(item.ID) {
			continue
		}
		j.alerter.ContentStuck(ctx, scheduler.StuckContent{ID: item.ID, Reason: ReasonNoTimer})
		reported++
	}

	if reported > 0 {
		slog.Warn("stuck content audit found items", "count", reported)
	}
	return reported
}

func (j *StuckContentJob) Run() {
	j.Audit()
}
