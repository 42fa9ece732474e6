package store

import (
	"sort"
	"sync"
	"time"
)

// Timer is a user-set reminder. The poller collects due timers and delivers
// a notification to the owner.
type Timer struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"createdAt"`
	EndsAt    time.Time `json:"endsAt"`
}

// Timers is the durable set of pending reminders. Unlike rally expiry tasks,
// timers survive a restart: they live here and the poller re-discovers them.
type Timers struct {
	mu     sync.Mutex
	path   string
	timers map[string]Timer
}

// OpenTimers loads pending timers from disk.
func OpenTimers(path string) (*Timers, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	t := &Timers{
		path:   path,
		timers: make(map[string]Timer),
	}
	if err := loadJSON(path, &t.timers); err != nil {
		return nil, err
	}
	return t, nil
}

// Add stores a new timer and persists before returning.
func (t *Timers) Add(timer Timer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.timers[timer.ID] = timer
	if err := saveJSON(t.path, t.timers); err != nil {
		delete(t.timers, timer.ID)
		return err
	}
	return nil
}

// Remove deletes a timer. Removing an unknown id is a no-op.
func (t *Timers) Remove(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	timer, ok := t.timers[id]
	if !ok {
		return nil
	}
	delete(t.timers, id)
	if err := saveJSON(t.path, t.timers); err != nil {
		t.timers[id] = timer
		return err
	}
	return nil
}

// Due returns all timers that have reached their end time, soonest first.
func (t *Timers) Due(now time.Time) []Timer {
	t.mu.Lock()
	defer t.mu.Unlock()

	var due []Timer
	for _, timer := range t.timers {
		if !timer.EndsAt.After(now) {
			due = append(due, timer)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].EndsAt.Before(due[j].EndsAt) })
	return due
}

// ByUser returns a user's pending timers, soonest first.
func (t *Timers) ByUser(userID string) []Timer {
	t.mu.Lock()
	defer t.mu.Unlock()

	var timers []Timer
	for _, timer := range t.timers {
		if timer.UserID == userID {
			timers = append(timers, timer)
		}
	}
	sort.Slice(timers, func(i, j int) bool { return timers[i].EndsAt.Before(timers[j].EndsAt) })
	return timers
}
