package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// HandleReconcileTask re-applies a lost status write. Returning an error makes
// asynq retry the task.
func (q *Queue) HandleReconcileTask(ctx context.Context, task *asynq.Task) error {
	var payload ReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid reconcile payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.ContentID == 0 || !payload.Update.Status.Terminal() {
		return fmt.Errorf("reconcile payload for content %d has no terminal status: %w", payload.ContentID, asynq.SkipRetry)
	}

	applied, err := q.content.UpdateStatusIfScheduled(ctx, payload.ContentID, payload.Update)
	if err != nil {
		slog.Warn("reconcile attempt failed", "content_id", payload.ContentID, "error", err)
		return err
	}

	if !applied {
		slog.Info("content no longer scheduled, nothing to reconcile", "content_id", payload.ContentID)
		return nil
	}
	slog.Info("reconciled content status", "content_id", payload.ContentID, "status", payload.Update.Status)
	return nil
}
