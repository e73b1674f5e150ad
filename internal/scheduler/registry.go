package scheduler

import (
	"sync"
	"time"
)

// Registry is the in-memory table of armed publish timers keyed by content id.
// At most one timer is armed per id; arming again replaces the previous one.
// It never touches persisted state.
type Registry struct {
	clock Clock

	mu   sync.Mutex
	jobs map[int64]*job
}

type job struct {
	at    time.Time
	timer Timer
}

func NewRegistry(clock Clock) *Registry {
	if clock == nil {
		clock = RealClock()
	}
	return &Registry{clock: clock, jobs: map[int64]*job{}}
}

// Arm cancels any timer already armed for id and arms a new one that calls fn at when.
// A when in the past fires as soon as the clock allows.
func (r *Registry) Arm(id int64, when time.Time, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.jobs[id]; ok {
		prev.timer.Stop()
		delete(r.jobs, id)
	}

	delay := when.Sub(r.clock.Now())
	if delay < 0 {
		delay = 0
	}

	j := &job{at: when}
	j.timer = r.clock.AfterFunc(delay, func() {
		// a replaced or disarmed job may still fire if Stop lost the race
		r.mu.Lock()
		if r.jobs[id] != j {
			r.mu.Unlock()
			return
		}
		delete(r.jobs, id)
		r.mu.Unlock()

		fn()
	})
	r.jobs[id] = j
}

// Disarm cancels the timer for id. It reports whether a timer was armed.
func (r *Registry) Disarm(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return false
	}
	j.timer.Stop()
	delete(r.jobs, id)
	return true
}

func (r *Registry) Armed(id int64) bool {
	r.mu.Lock()
	_, ok := r.jobs[id]
	r.mu.Unlock()
	return ok
}

// When returns the instant the timer for id is armed for.
func (r *Registry) When(id int64) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return time.Time{}, false
	}
	return j.at, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// DisarmAll stops every armed timer and returns how many were stopped.
func (r *Registry) DisarmAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.jobs)
	for id, j := range r.jobs {
		j.timer.Stop()
		delete(r.jobs, id)
	}
	return n
}
