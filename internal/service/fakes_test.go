package service

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/instaflow/internal/models"
)

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 32)...)

type memContent struct {
	mu      sync.Mutex
	nextID  int64
	items   map[int64]*models.Content
	failNew bool
}

func newMemContent() *memContent {
	return &memContent{items: map[int64]*models.Content{}}
}

func (m *memContent) Create(ctx context.Context, c *models.Content) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNew {
		return 0, errors.New("insert failed")
	}
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	cp := *c
	m.items[c.ID] = &cp
	return c.ID, nil
}

func (m *memContent) GetByID(ctx context.Context, id int64) (*models.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memContent) List(ctx context.Context) ([]*models.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Content
	for _, c := range m.items {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memContent) ListScheduled(ctx context.Context) ([]*models.Content, error) {
	return nil, nil
}

func (m *memContent) ListOverdue(ctx context.Context, before time.Time) ([]*models.Content, error) {
	return nil, nil
}

func (m *memContent) Update(ctx context.Context, c *models.Content) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[c.ID]
	if !ok || cur.Status != models.StatusScheduled {
		return false, nil
	}
	cp := *c
	cp.Status = cur.Status
	m.items[c.ID] = &cp
	return true, nil
}

func (m *memContent) UpdateStatus(ctx context.Context, id int64, u models.StatusUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.items[id]; ok {
		c.Status = u.Status
		c.FailureReason = u.Reason
	}
	return nil
}

func (m *memContent) UpdateStatusIfScheduled(ctx context.Context, id int64, u models.StatusUpdate) (bool, error) {
	return false, nil
}

func (m *memContent) Remove(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

type memAccounts struct {
	accounts map[int64]*models.Account
	err      error
}

func (m *memAccounts) Create(ctx context.Context, a *models.Account) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	a.ID = int64(len(m.accounts) + 1)
	m.accounts[a.ID] = a
	return a.ID, nil
}

func (m *memAccounts) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return m.accounts[id], nil
}

func (m *memAccounts) List(ctx context.Context) ([]*models.Account, error) {
	var out []*models.Account
	for _, a := range m.accounts {
		out = append(out, a)
	}
	return out, nil
}

var duplicateUsername = &pq.Error{Code: "23505", Message: "duplicate key value"}

// fakeScheduler marks past items failed the way the real scheduler does.
type fakeScheduler struct {
	content     *memContent
	now         time.Time
	scheduled   []int64
	rescheduled []time.Time
	cancelled   []int64
	err         error
}

func (f *fakeScheduler) Schedule(ctx context.Context, item *models.Content) error {
	if f.err != nil {
		return f.err
	}
	if item.ScheduledAt.Before(f.now) {
		return f.content.UpdateStatus(ctx, item.ID, models.StatusUpdate{Status: models.StatusFailed, Reason: models.ReasonElapsed})
	}
	f.scheduled = append(f.scheduled, item.ID)
	return nil
}

func (f *fakeScheduler) Reschedule(ctx context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	item, err := f.content.GetByID(ctx, id)
	if err != nil || item == nil {
		return err
	}
	f.rescheduled = append(f.rescheduled, item.ScheduledAt)
	if item.ScheduledAt.Before(f.now) {
		return f.content.UpdateStatus(ctx, id, models.StatusUpdate{Status: models.StatusFailed, Reason: models.ReasonElapsed})
	}
	return nil
}

func (f *fakeScheduler) Cancel(id int64) bool {
	f.cancelled = append(f.cancelled, id)
	return true
}

// fileHeader builds a multipart upload the way fiber hands it to handlers.
func fileHeader(t *testing.T, name string, data []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("media", name)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)
	w.Close()

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["media"][0]
}
