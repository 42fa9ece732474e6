package rally

import (
	"sync"
	"time"
)

// Scheduler arms one expiry timer per rally. A timer fires at most once;
// cancelling a fired or unknown timer is a no-op. Pending timers are not
// persisted: a rally in flight across a restart is never auto-expired and
// stays joinable until someone cancels it.
type Scheduler struct {
	mu     sync.Mutex
	fire   func(id string)
	timers map[string]*time.Timer
}

// NewScheduler creates a scheduler that invokes fire when a timer elapses.
func NewScheduler(fire func(id string)) *Scheduler {
	return &Scheduler{
		fire:   fire,
		timers: make(map[string]*time.Timer),
	}
}

// Schedule arms the expiry timer for a rally. Scheduling an id that already
// has a timer does nothing.
func (s *Scheduler) Schedule(id string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.timers[id]; ok {
		return
	}
	s.timers[id] = time.AfterFunc(d, func() { s.fired(id) })
}

func (s *Scheduler) fired(id string) {
	s.mu.Lock()
	if _, ok := s.timers[id]; !ok {
		// Cancelled between the timer firing and this goroutine running.
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	s.mu.Unlock()

	s.fire(id)
}

// Cancel disarms a rally's timer if it has not fired yet.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
}

// Stop disarms every pending timer.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}
