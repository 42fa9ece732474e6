package store

import (
	"sort"
	"sync"
)

// Record holds a user's cumulative rally counters. Counters only ever grow;
// records are created lazily and never deleted.
type Record struct {
	RalliesJoined  int `json:"ralliesJoined"`
	RalliesCreated int `json:"ralliesCreated"`
	PointsEarned   int `json:"pointsEarned"`
	TotalRallies   int `json:"totalRallies"`

	// Seq is the order in which the user was first recorded; it breaks
	// leaderboard ties in favour of the earlier user.
	Seq int `json:"seq"`
}

// Entry pairs a user with their record for leaderboard output.
type Entry struct {
	UserID string
	Record
}

// Ledger is the durable participation ledger. Every mutation persists
// synchronously; a failed write rolls the in-memory counters back so the
// ledger on disk and the ledger in memory never diverge.
type Ledger struct {
	mu      sync.Mutex
	path    string
	records map[string]*Record
	nextSeq int
}

// OpenLedger loads the participation ledger from disk.
func OpenLedger(path string) (*Ledger, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	l := &Ledger{
		path:    path,
		records: make(map[string]*Record),
	}
	if err := loadJSON(path, &l.records); err != nil {
		return nil, err
	}
	for _, rec := range l.records {
		if rec.Seq >= l.nextSeq {
			l.nextSeq = rec.Seq + 1
		}
	}
	return l, nil
}

// RecordCreated counts a rally creation for the user.
func (l *Ledger) RecordCreated(userID string) error {
	return l.update(userID, func(rec *Record) {
		rec.RalliesCreated++
		rec.TotalRallies++
	})
}

// RecordJoined counts a successful join and the points it earned.
func (l *Ledger) RecordJoined(userID string, points int) error {
	return l.update(userID, func(rec *Record) {
		rec.RalliesJoined++
		rec.PointsEarned += points
		rec.TotalRallies++
	})
}

func (l *Ledger) update(userID string, mutate func(*Record)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[userID]
	if !ok {
		rec = &Record{Seq: l.nextSeq}
		l.records[userID] = rec
		l.nextSeq++
	}
	before := *rec
	mutate(rec)

	if err := saveJSON(l.path, l.records); err != nil {
		if !ok {
			delete(l.records, userID)
			l.nextSeq--
		} else {
			*rec = before
		}
		return err
	}
	return nil
}

// Stats returns the user's record, reporting whether one exists.
func (l *Ledger) Stats(userID string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[userID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// TopN returns up to n entries ordered by points earned, highest first.
// Ties go to the user recorded first.
func (l *Ledger) TopN(n int) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]Entry, 0, len(l.records))
	for userID, rec := range l.records {
		entries = append(entries, Entry{UserID: userID, Record: *rec})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].PointsEarned != entries[j].PointsEarned {
			return entries[i].PointsEarned > entries[j].PointsEarned
		}
		return entries[i].Seq < entries[j].Seq
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
