package rally

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Ledger records rally activity durably. A failed write must leave the
// ledger unchanged, so the registry can abort the whole transition.
type Ledger interface {
	RecordCreated(userID string) error
	RecordJoined(userID string, points int) error
}

// Bindings resolves the channel a guild posts rallies to.
type Bindings interface {
	Channel(guildID string) (string, bool)
}

// Registry owns all open rallies and serialises their state transitions.
// One mutex guards the whole table; the per-guild load here does not justify
// per-rally locking.
type Registry struct {
	mu      sync.Mutex
	rallies map[string]*Rally

	ledger   Ledger
	bindings Bindings
	notifier Notifier
	sched    *Scheduler
	log      zerolog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// NewRegistry creates the rally registry and its expiry scheduler.
func NewRegistry(ledger Ledger, bindings Bindings, notifier Notifier, log zerolog.Logger) *Registry {
	g := &Registry{
		rallies:  make(map[string]*Rally),
		ledger:   ledger,
		bindings: bindings,
		notifier: notifier,
		log:      log,
		now:      time.Now,
	}
	g.sched = NewScheduler(g.Expire)
	return g
}

// Close disarms all pending expiry timers.
func (g *Registry) Close() {
	g.sched.Stop()
}

// Create opens a new rally. The creator's ledger entry is updated before the
// rally becomes visible; if the ledger write fails nothing is created.
func (g *Registry) Create(guildID, creatorID string, level int, timeLimit time.Duration) (Rally, error) {
	info, ok := LookupLevel(level)
	if !ok {
		return Rally{}, ErrInvalidLevel
	}
	if !validTimeLimit(timeLimit) {
		return Rally{}, ErrInvalidTimeLimit
	}
	channelID, ok := g.bindings.Channel(guildID)
	if !ok {
		return Rally{}, ErrNotConfigured
	}

	g.mu.Lock()
	if err := g.ledger.RecordCreated(creatorID); err != nil {
		g.mu.Unlock()
		return Rally{}, fmt.Errorf("failed to record rally creation: %w", err)
	}
	now := g.now()
	r := &Rally{
		ID:        uuid.NewString(),
		GuildID:   guildID,
		CreatorID: creatorID,
		Level:     level,
		LevelName: info.Name,
		Capacity:  info.Capacity,
		Points:    info.Points,
		CreatedAt: now,
		ExpiresAt: now.Add(timeLimit),
		ChannelID: channelID,
	}
	g.rallies[r.ID] = r
	snap := r.snapshot()
	g.mu.Unlock()

	g.sched.Schedule(snap.ID, timeLimit)
	g.log.Info().Str("rally", snap.ID).Int("level", level).Dur("timeLimit", timeLimit).Msg("rally created")
	g.notify(EventCreated, snap)
	return snap, nil
}

// JoinResult reports the outcome of a successful join.
type JoinResult struct {
	Rally Rally
	// Completed is true when this join filled the last slot. The rally has
	// already been removed and its expiry timer disarmed; the caller owes
	// the completion notification and the delayed removal of the post.
	Completed bool
}

// Join adds a user to a rally. The capacity check and the append happen
// under the same lock, so two joiners can never share the last slot.
func (g *Registry) Join(id, userID string) (JoinResult, error) {
	g.mu.Lock()
	r, ok := g.rallies[id]
	if !ok {
		g.mu.Unlock()
		return JoinResult{}, ErrNotFound
	}
	if userID == r.CreatorID {
		g.mu.Unlock()
		return JoinResult{}, ErrSelfJoin
	}
	for _, p := range r.Participants {
		if p == userID {
			g.mu.Unlock()
			return JoinResult{}, ErrAlreadyJoined
		}
	}
	if len(r.Participants) >= r.Capacity {
		g.mu.Unlock()
		return JoinResult{}, ErrFull
	}
	if err := g.ledger.RecordJoined(userID, r.Points); err != nil {
		g.mu.Unlock()
		return JoinResult{}, fmt.Errorf("failed to record join: %w", err)
	}
	r.Participants = append(r.Participants, userID)
	completed := len(r.Participants) == r.Capacity
	if completed {
		// Removing the rally here is what makes a late expiry fire a no-op.
		delete(g.rallies, id)
	}
	snap := r.snapshot()
	g.mu.Unlock()

	if completed {
		g.sched.Cancel(id)
		g.log.Info().Str("rally", id).Int("participants", len(snap.Participants)).Msg("rally full")
		g.notify(EventFull, snap)
	} else {
		g.log.Debug().Str("rally", id).Str("user", userID).Msg("user joined rally")
		g.notify(EventJoined, snap)
	}
	return JoinResult{Rally: snap, Completed: completed}, nil
}

// Cancel removes a rally on request of its creator or an admin. The ledger
// is untouched.
func (g *Registry) Cancel(id, requesterID string, isAdmin bool) (Rally, error) {
	g.mu.Lock()
	r, ok := g.rallies[id]
	if !ok {
		g.mu.Unlock()
		return Rally{}, ErrNotFound
	}
	if requesterID != r.CreatorID && !isAdmin {
		g.mu.Unlock()
		return Rally{}, ErrPermissionDenied
	}
	delete(g.rallies, id)
	snap := r.snapshot()
	g.mu.Unlock()

	g.sched.Cancel(id)
	g.log.Info().Str("rally", id).Str("requester", requesterID).Msg("rally cancelled")
	g.notify(EventCancelled, snap)
	return snap, nil
}

// Expire drives a still-recruiting rally into the expired state. It is
// normally invoked by the scheduler; calling it for a rally that already
// completed or was cancelled does nothing, which is how the race between a
// filling join and a firing timer resolves.
func (g *Registry) Expire(id string) {
	g.mu.Lock()
	r, ok := g.rallies[id]
	if !ok {
		g.mu.Unlock()
		return
	}
	delete(g.rallies, id)
	snap := r.snapshot()
	g.mu.Unlock()

	// Disarm in case Expire was invoked directly while the timer is pending.
	g.sched.Cancel(id)
	g.log.Info().Str("rally", id).Int("participants", len(snap.Participants)).Int("capacity", snap.Capacity).Msg("rally expired")
	g.notify(EventExpired, snap)
}

// SetMessage records the public post for a rally once it has been sent.
// Returns false when the rally already resolved in the meantime.
func (g *Registry) SetMessage(id, messageID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rallies[id]
	if !ok {
		return false
	}
	r.MessageID = messageID
	return true
}

// Get returns a snapshot of an open rally.
func (g *Registry) Get(id string) (Rally, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	r, ok := g.rallies[id]
	if !ok {
		return Rally{}, false
	}
	return r.snapshot(), true
}

func (g *Registry) notify(kind EventKind, r Rally) {
	if g.notifier == nil {
		return
	}
	g.notifier.Notify(Event{Kind: kind, Rally: r})
}
