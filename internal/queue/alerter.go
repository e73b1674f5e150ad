package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/instaflow/internal/scheduler"
)

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Alerter forwards stuck content to the reconcile queue. Reports without a
// pending status update are logged only.
type Alerter struct {
	client   enqueuer
	maxRetry int
}

func NewAlerter(client *asynq.Client, maxRetry int) *Alerter {
	return &Alerter{client: client, maxRetry: maxRetry}
}

func (a *Alerter) ContentStuck(ctx context.Context, stuck scheduler.StuckContent) {
	slog.Error("content stuck in scheduled", "content_id", stuck.ID, "reason", stuck.Reason, "error", stuck.Err)
	if stuck.Update == nil {
		return
	}

	payload := ReconcilePayload{
		ContentID: stuck.ID,
		Update:    *stuck.Update,
		Reason:    stuck.Reason,
		FailedAt:  time.Now().UTC(),
	}
	if err := EnqueueReconcile(ctx, a.client, payload, a.maxRetry); err != nil {
		slog.Error("failed to enqueue reconcile task", "content_id", stuck.ID, "error", err)
	}
}

func EnqueueReconcile(ctx context.Context, client enqueuer, payload ReconcilePayload, maxRetry int) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypeReconcileContent, taskPayload)
	_, err = client.EnqueueContext(ctx, task, asynq.MaxRetry(maxRetry))
	if err != nil {
		return err
	}

	slog.Info("reconcile task enqueued", "content_id", payload.ContentID, "status", payload.Update.Status)
	return nil
}
