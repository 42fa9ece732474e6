package rally

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeLedger struct {
	mu      sync.Mutex
	created map[string]int
	joined  map[string]int
	points  map[string]int
	fail    error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		created: make(map[string]int),
		joined:  make(map[string]int),
		points:  make(map[string]int),
	}
}

func (f *fakeLedger) RecordCreated(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.created[userID]++
	return nil
}

func (f *fakeLedger) RecordJoined(userID string, points int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.joined[userID]++
	f.points[userID] += points
	return nil
}

type fakeBindings map[string]string

func (f fakeBindings) Channel(guildID string) (string, bool) {
	channelID, ok := f[guildID]
	return channelID, ok
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (f *fakeNotifier) Notify(ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeNotifier) count(kind EventKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ev := range f.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeNotifier) last(kind EventKind) (Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].Kind == kind {
			return f.events[i], true
		}
	}
	return Event{}, false
}

func newTestRegistry(t *testing.T) (*Registry, *fakeLedger, *fakeNotifier) {
	t.Helper()
	ledger := newFakeLedger()
	notifier := &fakeNotifier{}
	g := NewRegistry(ledger, fakeBindings{"guild-1": "channel-1"}, notifier, zerolog.Nop())
	t.Cleanup(g.Close)
	return g, ledger, notifier
}

func TestCreateMatchesLevelTable(t *testing.T) {
	want := map[int]LevelInfo{
		1: {Capacity: 1, Points: 10},
		2: {Capacity: 1, Points: 20},
		3: {Capacity: 2, Points: 30},
		4: {Capacity: 3, Points: 45},
		5: {Capacity: 4, Points: 50},
		6: {Capacity: 5, Points: 60},
	}

	g, _, _ := newTestRegistry(t)
	for level, info := range want {
		r, err := g.Create("guild-1", "creator", level, 5*time.Minute)
		if err != nil {
			t.Fatalf("create level %d: %v", level, err)
		}
		if r.Capacity != info.Capacity {
			t.Fatalf("level %d capacity = %d, want %d", level, r.Capacity, info.Capacity)
		}
		if r.Points != info.Points {
			t.Fatalf("level %d points = %d, want %d", level, r.Points, info.Points)
		}
		if r.ChannelID != "channel-1" {
			t.Fatalf("level %d channel = %s, want channel-1", level, r.ChannelID)
		}
	}
}

func TestCreateValidation(t *testing.T) {
	g, ledger, _ := newTestRegistry(t)

	if _, err := g.Create("guild-1", "creator", 0, 5*time.Minute); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("level 0: err = %v, want ErrInvalidLevel", err)
	}
	if _, err := g.Create("guild-1", "creator", 7, 5*time.Minute); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("level 7: err = %v, want ErrInvalidLevel", err)
	}
	if _, err := g.Create("guild-1", "creator", 3, 7*time.Minute); !errors.Is(err, ErrInvalidTimeLimit) {
		t.Fatalf("bad time limit: err = %v, want ErrInvalidTimeLimit", err)
	}
	if _, err := g.Create("guild-2", "creator", 3, 5*time.Minute); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("unbound guild: err = %v, want ErrNotConfigured", err)
	}
	if len(ledger.created) != 0 {
		t.Fatalf("rejected creates mutated the ledger: %v", ledger.created)
	}
}

func TestCreateLedgerFailureAborts(t *testing.T) {
	g, ledger, notifier := newTestRegistry(t)
	ledger.fail = errors.New("disk full")

	if _, err := g.Create("guild-1", "creator", 1, 5*time.Minute); err == nil {
		t.Fatal("create succeeded despite ledger failure")
	}
	if len(g.rallies) != 0 {
		t.Fatalf("registry holds %d rallies after aborted create", len(g.rallies))
	}
	if notifier.count(EventCreated) != 0 {
		t.Fatal("aborted create emitted a created event")
	}
}

func TestJoinSelfJoin(t *testing.T) {
	g, ledger, _ := newTestRegistry(t)

	r, err := g.Create("guild-1", "creator", 2, 5*time.Minute)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := g.Join(r.ID, "creator"); !errors.Is(err, ErrSelfJoin) {
		t.Fatalf("self join err = %v, want ErrSelfJoin", err)
	}
	if len(ledger.joined) != 0 {
		t.Fatalf("self join mutated the ledger: %v", ledger.joined)
	}
	if got, ok := g.Get(r.ID); !ok || len(got.Participants) != 0 {
		t.Fatalf("rally state changed after rejected join: ok=%v participants=%v", ok, got.Participants)
	}
}

func TestJoinAlreadyJoined(t *testing.T) {
	g, ledger, _ := newTestRegistry(t)

	r, _ := g.Create("guild-1", "creator", 3, 5*time.Minute)
	if _, err := g.Join(r.ID, "user-a"); err != nil {
		t.Fatalf("first join: %v", err)
	}
	if _, err := g.Join(r.ID, "user-a"); !errors.Is(err, ErrAlreadyJoined) {
		t.Fatalf("second join err = %v, want ErrAlreadyJoined", err)
	}
	if ledger.joined["user-a"] != 1 {
		t.Fatalf("user-a joined count = %d, want 1", ledger.joined["user-a"])
	}
}

func TestJoinFillsAndCompletes(t *testing.T) {
	g, ledger, notifier := newTestRegistry(t)

	// Level 3: capacity 2, 30 points.
	r, _ := g.Create("guild-1", "creator", 3, 5*time.Minute)

	res, err := g.Join(r.ID, "user-a")
	if err != nil {
		t.Fatalf("join a: %v", err)
	}
	if res.Completed {
		t.Fatal("first join reported completion at 1/2")
	}

	res, err = g.Join(r.ID, "user-b")
	if err != nil {
		t.Fatalf("join b: %v", err)
	}
	if !res.Completed {
		t.Fatal("filling join did not report completion")
	}
	if got := res.Rally.Participants; len(got) != 2 || got[0] != "user-a" || got[1] != "user-b" {
		t.Fatalf("participants = %v, want [user-a user-b]", got)
	}

	if _, ok := g.Get(r.ID); ok {
		t.Fatal("full rally still present in registry")
	}
	if ledger.points["user-a"] != 30 || ledger.points["user-b"] != 30 {
		t.Fatalf("points = %v, want 30 each", ledger.points)
	}
	if notifier.count(EventFull) != 1 {
		t.Fatalf("full events = %d, want 1", notifier.count(EventFull))
	}

	// A third joiner finds nothing to join.
	if _, err := g.Join(r.ID, "user-c"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("join after full err = %v, want ErrNotFound", err)
	}
}

func TestExpireIdempotent(t *testing.T) {
	g, _, notifier := newTestRegistry(t)

	r, _ := g.Create("guild-1", "creator", 1, 5*time.Minute)

	g.Expire(r.ID)
	g.Expire(r.ID)

	if got := notifier.count(EventExpired); got != 1 {
		t.Fatalf("expired events = %d, want 1", got)
	}
	if _, ok := g.Get(r.ID); ok {
		t.Fatal("expired rally still present")
	}
}

func TestExpireReportsParticipantsReached(t *testing.T) {
	g, _, notifier := newTestRegistry(t)

	// Scenario A: level 1, nobody joins.
	r, _ := g.Create("guild-1", "creator", 1, 5*time.Minute)
	g.Expire(r.ID)

	ev, ok := notifier.last(EventExpired)
	if !ok {
		t.Fatal("no expired event emitted")
	}
	if len(ev.Rally.Participants) != 0 || ev.Rally.Capacity != 1 {
		t.Fatalf("expired payload = %d/%d participants, want 0/1",
			len(ev.Rally.Participants), ev.Rally.Capacity)
	}
}

func TestExpireAfterFullIsNoop(t *testing.T) {
	g, _, notifier := newTestRegistry(t)

	r, _ := g.Create("guild-1", "creator", 2, 5*time.Minute)
	if _, err := g.Join(r.ID, "user-a"); err != nil {
		t.Fatalf("join: %v", err)
	}

	// Simulates the timer firing after the filling join won the race.
	g.Expire(r.ID)

	if notifier.count(EventExpired) != 0 {
		t.Fatal("expire after completion emitted an expired event")
	}
}

func TestCancelPermissions(t *testing.T) {
	g, _, notifier := newTestRegistry(t)

	r, _ := g.Create("guild-1", "creator", 3, 5*time.Minute)

	if _, err := g.Cancel(r.ID, "stranger", false); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("stranger cancel err = %v, want ErrPermissionDenied", err)
	}
	// Rally remains recruiting and joinable.
	if _, err := g.Join(r.ID, "user-a"); err != nil {
		t.Fatalf("join after denied cancel: %v", err)
	}

	if _, err := g.Cancel(r.ID, "stranger", true); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}
	if notifier.count(EventCancelled) != 1 {
		t.Fatalf("cancelled events = %d, want 1", notifier.count(EventCancelled))
	}
	if _, err := g.Cancel(r.ID, "creator", false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cancel twice err = %v, want ErrNotFound", err)
	}
}

func TestConcurrentJoinsNeverOversubscribe(t *testing.T) {
	g, ledger, _ := newTestRegistry(t)

	// Level 6: capacity 5. Launch capacity + 4 joiners.
	r, _ := g.Create("guild-1", "creator", 6, 5*time.Minute)

	const joiners = 9
	var wg sync.WaitGroup
	results := make([]error, joiners)
	var filled Rally
	var filledMu sync.Mutex

	for n := 0; n < joiners; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res, err := g.Join(r.ID, string(rune('a'+n)))
			results[n] = err
			if err == nil && res.Completed {
				filledMu.Lock()
				filled = res.Rally
				filledMu.Unlock()
			}
		}(n)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		}
	}
	if successes != r.Capacity {
		t.Fatalf("successful joins = %d, want %d", successes, r.Capacity)
	}
	if len(filled.Participants) != r.Capacity {
		t.Fatalf("filled rally has %d participants, want %d", len(filled.Participants), r.Capacity)
	}
	if len(ledger.joined) != r.Capacity {
		t.Fatalf("ledger recorded %d joiners, want %d", len(ledger.joined), r.Capacity)
	}
	for _, p := range filled.Participants {
		if p == "creator" {
			t.Fatal("creator appeared in participants")
		}
	}
}

func TestJoinLedgerFailureAborts(t *testing.T) {
	g, ledger, _ := newTestRegistry(t)

	r, _ := g.Create("guild-1", "creator", 3, 5*time.Minute)
	ledger.fail = errors.New("disk full")

	if _, err := g.Join(r.ID, "user-a"); err == nil {
		t.Fatal("join succeeded despite ledger failure")
	}
	got, ok := g.Get(r.ID)
	if !ok {
		t.Fatal("rally vanished after aborted join")
	}
	if len(got.Participants) != 0 {
		t.Fatalf("participants = %v after aborted join, want none", got.Participants)
	}

	// The rally recovers once persistence does.
	ledger.fail = nil
	if _, err := g.Join(r.ID, "user-a"); err != nil {
		t.Fatalf("join after recovery: %v", err)
	}
}

func TestSetMessage(t *testing.T) {
	g, _, _ := newTestRegistry(t)

	r, _ := g.Create("guild-1", "creator", 1, 5*time.Minute)
	if !g.SetMessage(r.ID, "msg-1") {
		t.Fatal("SetMessage failed for open rally")
	}
	got, _ := g.Get(r.ID)
	if got.MessageID != "msg-1" {
		t.Fatalf("message id = %s, want msg-1", got.MessageID)
	}

	g.Expire(r.ID)
	if g.SetMessage(r.ID, "msg-2") {
		t.Fatal("SetMessage succeeded for resolved rally")
	}
}
