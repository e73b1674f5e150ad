package queue

import (
	"context"
	"time"

	"github.com/maheshrc27/instaflow/internal/models"
)

const TaskTypeReconcileContent = "content:reconcile"

// ReconcilePayload carries a status decision that could not be persisted.
type ReconcilePayload struct {
	ContentID int64               `json:"content_id"`
	Update    models.StatusUpdate `json:"update"`
	Reason    string              `json:"reason"`
	FailedAt  time.Time           `json:"failed_at"`
}

// ReconcileRepository applies a status update only while the item is still scheduled.
type ReconcileRepository interface {
	UpdateStatusIfScheduled(ctx context.Context, id int64, update models.StatusUpdate) (bool, error)
}

type Queue struct {
	content ReconcileRepository
}

func NewQueue(content ReconcileRepository) *Queue {
	return &Queue{content: content}
}
