package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/instaflow/internal/media"
	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/maheshrc27/instaflow/internal/publisher"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves virtual time forward and runs due timers in order on the caller's goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeContent struct {
	mu        sync.Mutex
	items     map[int64]*models.Content
	updates   []models.StatusUpdate
	getErr    error
	listErr   error
	updateErr error
}

func newFakeContent(items ...*models.Content) *fakeContent {
	f := &fakeContent{items: map[int64]*models.Content{}}
	for _, it := range items {
		f.items[it.ID] = it
	}
	return f
}

func (f *fakeContent) GetByID(ctx context.Context, id int64) (*models.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	it, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	cp := *it
	return &cp, nil
}

func (f *fakeContent) ListScheduled(ctx context.Context) ([]*models.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.Content
	for _, it := range f.items {
		if it.Status == models.StatusScheduled {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeContent) UpdateStatus(ctx context.Context, id int64, u models.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if it, ok := f.items[id]; ok {
		it.Status = u.Status
		it.FailureReason = u.Reason
		it.RemoteID = u.RemoteID
	}
	f.updates = append(f.updates, u)
	return nil
}

func (f *fakeContent) get(id int64) models.Content {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.items[id]
}

func (f *fakeContent) setStatus(id int64, st models.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id].Status = st
}

func (f *fakeContent) setScheduledAt(id int64, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id].ScheduledAt = at
}

type fakeAccounts struct {
	accounts map[int64]*models.Account
	err      error
}

func (f *fakeAccounts) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.accounts[id], nil
}

type fakeResolver struct {
	missing map[string]bool
	err     error
	hang    bool
}

func (f *fakeResolver) Resolve(ctx context.Context, ref string) (*media.Resolved, error) {
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.missing[ref] {
		return nil, media.ErrNotFound
	}
	return &media.Resolved{Ref: ref, Path: ref, MIME: "image/jpeg"}, nil
}

type fakeAdapter struct {
	mu      sync.Mutex
	posts   int
	stories int
	lastOpt models.PostOptions
	session models.Session
	result  publisher.Result
	err     error
	entered chan struct{}
	release chan struct{}
	fn      func(ctx context.Context) (publisher.Result, error)
}

func (f *fakeAdapter) CreatePost(ctx context.Context, session models.Session, m *media.Resolved, caption string, opts models.PostOptions) (publisher.Result, error) {
	f.mu.Lock()
	f.posts++
	f.lastOpt = opts
	f.session = session
	f.mu.Unlock()
	return f.respond(ctx)
}

func (f *fakeAdapter) CreateStory(ctx context.Context, session models.Session, m *media.Resolved, caption string) (publisher.Result, error) {
	f.mu.Lock()
	f.stories++
	f.session = session
	f.mu.Unlock()
	return f.respond(ctx)
}

func (f *fakeAdapter) respond(ctx context.Context) (publisher.Result, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.release != nil {
		<-f.release
	}
	if f.fn != nil {
		return f.fn(ctx)
	}
	return f.result, f.err
}

func (f *fakeAdapter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts + f.stories
}

type recordingAlerter struct {
	mu    sync.Mutex
	stuck []StuckContent
}

func (r *recordingAlerter) ContentStuck(ctx context.Context, s StuckContent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stuck = append(r.stuck, s)
}

func (r *recordingAlerter) all() []StuckContent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StuckContent(nil), r.stuck...)
}

var errDown = errors.New("connection refused")

func post(id int64, at time.Time) *models.Content {
	return &models.Content{
		ID:          id,
		AccountID:   7,
		Kind:        models.KindPost,
		Caption:     "caption",
		MediaRef:    "/uploads/a.jpg",
		ScheduledAt: at,
		Status:      models.StatusScheduled,
	}
}

func defaultAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: map[int64]*models.Account{
		7: {ID: 7, Username: "demo", Session: models.Session{"sessionid": "abc"}},
	}}
}
