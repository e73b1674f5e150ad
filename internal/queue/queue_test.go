package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/maheshrc27/instaflow/internal/scheduler"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

type fakeRepo struct {
	calls   int
	applied bool
	err     error
	last    models.StatusUpdate
}

func (f *fakeRepo) UpdateStatusIfScheduled(ctx context.Context, id int64, update models.StatusUpdate) (bool, error) {
	f.calls++
	f.last = update
	return f.applied, f.err
}

func TestAlerterEnqueuesPendingUpdate(t *testing.T) {
	enq := &fakeEnqueuer{}
	a := &Alerter{client: enq, maxRetry: 3}

	update := models.StatusUpdate{Status: models.StatusPublished, RemoteID: "r-1", At: time.Now()}
	a.ContentStuck(context.Background(), scheduler.StuckContent{ID: 9, Update: &update, Reason: "status write failed", Err: errors.New("db down")})

	if len(enq.tasks) != 1 {
		t.Fatalf("enqueued %d tasks, want 1", len(enq.tasks))
	}
	task := enq.tasks[0]
	if task.Type() != TaskTypeReconcileContent {
		t.Fatalf("task type = %q", task.Type())
	}
	var payload ReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.ContentID != 9 || payload.Update.Status != models.StatusPublished || payload.Update.RemoteID != "r-1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestAlerterWithoutUpdateOnlyLogs(t *testing.T) {
	enq := &fakeEnqueuer{}
	a := &Alerter{client: enq}
	a.ContentStuck(context.Background(), scheduler.StuckContent{ID: 4, Reason: "stuck in scheduled without timer"})
	if len(enq.tasks) != 0 {
		t.Fatalf("enqueued %d tasks, want 0", len(enq.tasks))
	}

	enq.err = errors.New("redis down")
	update := models.StatusUpdate{Status: models.StatusFailed}
	a.ContentStuck(context.Background(), scheduler.StuckContent{ID: 4, Update: &update})
}

func TestHandleReconcileTask(t *testing.T) {
	failed := models.StatusUpdate{Status: models.StatusFailed, Reason: models.ReasonMediaMissing}
	valid, _ := json.Marshal(ReconcilePayload{ContentID: 5, Update: failed})
	pending, _ := json.Marshal(ReconcilePayload{ContentID: 5, Update: models.StatusUpdate{Status: models.StatusScheduled}})

	tests := []struct {
		name      string
		payload   []byte
		repo      *fakeRepo
		wantErr   bool
		skipRetry bool
		wantCalls int
	}{
		{"applied", valid, &fakeRepo{applied: true}, false, false, 1},
		{"already resolved", valid, &fakeRepo{}, false, false, 1},
		{"repository down retries", valid, &fakeRepo{err: errors.New("down")}, true, false, 1},
		{"malformed payload", []byte("{"), &fakeRepo{}, true, true, 0},
		{"non terminal status", pending, &fakeRepo{}, true, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue(tt.repo)
			err := q.HandleReconcileTask(context.Background(), asynq.NewTask(TaskTypeReconcileContent, tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, asynq.SkipRetry) != tt.skipRetry {
				t.Fatalf("SkipRetry = %v, want %v", errors.Is(err, asynq.SkipRetry), tt.skipRetry)
			}
			if tt.repo.calls != tt.wantCalls {
				t.Fatalf("repo calls = %d, want %d", tt.repo.calls, tt.wantCalls)
			}
			if tt.wantCalls > 0 && tt.repo.last.Reason != models.ReasonMediaMissing {
				t.Fatalf("update not forwarded: %+v", tt.repo.last)
			}
		})
	}
}
